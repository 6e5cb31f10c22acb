package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/drift/internal/common"
	"github.com/ternarybob/drift/internal/interfaces"
	"github.com/ternarybob/drift/internal/models"
)

// Classifier implements the classifier and event search gateways over a Generator
type Classifier struct {
	generator Generator
	config    *common.GeminiConfig
	logger    arbor.ILogger
	now       func() time.Time
}

var (
	_ interfaces.ClassifierGateway  = (*Classifier)(nil)
	_ interfaces.EventSearchGateway = (*Classifier)(nil)
)

// NewClassifier creates a classifier. Temperatures come from the Gemini section
// and apply to whichever provider serves the call.
func NewClassifier(generator Generator, config *common.GeminiConfig, logger arbor.ILogger) *Classifier {
	return &Classifier{
		generator: generator,
		config:    config,
		logger:    logger,
		now:       time.Now,
	}
}

// Interpret reads a free-text vibe into a normalized interpretation
func (c *Classifier) Interpret(ctx context.Context, query string) (models.VibeInterpretation, error) {
	resp, err := c.generator.GenerateContent(ctx, &ContentRequest{
		SystemInstruction: interpretSystemInstruction,
		Prompt:            query,
		Temperature:       c.config.InterpretTemp,
		OutputSchema:      VibeSchema,
	})
	if err != nil {
		return models.VibeInterpretation{}, fmt.Errorf("failed to interpret vibe: %w", err)
	}

	var v models.VibeInterpretation
	if err := decodeModelJSON(resp.Text, &v); err != nil {
		return models.VibeInterpretation{}, fmt.Errorf("failed to parse interpretation: %w", err)
	}

	v = v.Normalize(query)
	c.logger.Debug().
		Strs("search_queries", v.SearchQueries).
		Str("mood_color", v.MoodColor).
		Str("model", resp.Model).
		Msg("Vibe interpreted")
	return v, nil
}

// photoScore tolerates fractional scores
type photoScore struct {
	VibeScore        float64  `json:"vibe_score"`
	MatchingElements []string `json:"matching_elements"`
	VibeDescription  string   `json:"vibe_description"`
	StandoutDetail   string   `json:"standout_detail"`
}

// ScorePhoto rates one image against the interpreted vibe
func (c *Classifier) ScorePhoto(ctx context.Context, photo *models.PhotoData, attributes []string, summary string) (models.PhotoAnalysis, error) {
	if photo == nil || len(photo.Data) == 0 {
		return models.PhotoAnalysis{}, fmt.Errorf("photo is empty")
	}

	resp, err := c.generator.GenerateContent(ctx, &ContentRequest{
		Prompt:       photoPrompt(attributes, summary),
		Image:        photo,
		Temperature:  c.config.PhotoTemp,
		OutputSchema: PhotoSchema,
	})
	if err != nil {
		return models.PhotoAnalysis{}, fmt.Errorf("failed to score photo: %w", err)
	}

	var raw photoScore
	if err := decodeModelJSON(resp.Text, &raw); err != nil {
		return models.PhotoAnalysis{}, fmt.Errorf("failed to parse photo analysis: %w", err)
	}

	analysis := models.PhotoAnalysis{
		VibeScore:        models.ClampScore(raw.VibeScore),
		MatchingElements: raw.MatchingElements,
		VibeDescription:  strings.TrimSpace(raw.VibeDescription),
		StandoutDetail:   strings.TrimSpace(raw.StandoutDetail),
	}
	if analysis.MatchingElements == nil {
		analysis.MatchingElements = []string{}
	}
	return analysis, nil
}

// FindEvents runs one Google Search grounded call for live events
func (c *Classifier) FindEvents(ctx context.Context, query interfaces.EventQuery) ([]models.DriftEvent, error) {
	maxEvents := query.MaxEvents
	if maxEvents <= 0 {
		maxEvents = 6
	}

	resp, err := c.generator.GenerateContent(ctx, &ContentRequest{
		Provider:     ProviderGemini,
		Prompt:       eventsPrompt(query.VibeSummary, query.PlaceNames, query.Latitude, query.Longitude, maxEvents, c.now()),
		Temperature:  c.config.EventsTemp,
		GoogleSearch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search events: %w", err)
	}

	events, err := parseEvents(resp.Text)
	if err != nil {
		return nil, err
	}

	out := make([]models.DriftEvent, 0, len(events))
	for _, e := range events {
		e.Name = strings.TrimSpace(e.Name)
		e.Venue = strings.TrimSpace(e.Venue)
		if e.Name == "" {
			continue
		}
		out = append(out, e)
		if len(out) == maxEvents {
			break
		}
	}

	c.logger.Debug().
		Int("events", len(out)).
		Int("grounding_sources", len(resp.Sources)).
		Msg("Events search completed")
	return out, nil
}

// parseEvents accepts {"events":[...]} or a bare array
func parseEvents(text string) ([]models.DriftEvent, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse events: %w", err)
	}

	if strings.HasPrefix(raw, "[") {
		var events []models.DriftEvent
		if err := json.Unmarshal([]byte(raw), &events); err != nil {
			return nil, fmt.Errorf("failed to parse events: %w", err)
		}
		return events, nil
	}

	var wrapped struct {
		Events []models.DriftEvent `json:"events"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse events: %w", err)
	}
	return wrapped.Events, nil
}

func decodeModelJSON(text string, v interface{}) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), v)
}
