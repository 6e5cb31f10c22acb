// Package drift runs the discovery pipeline: interpret a vibe, aggregate
// places, score their photos, look up live events and stream every step.
package drift

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/drift/internal/common"
	"github.com/ternarybob/drift/internal/interfaces"
	"github.com/ternarybob/drift/internal/models"
	"github.com/ternarybob/drift/internal/stream"
)

// Settings are the pipeline limits
type Settings struct {
	MaxQueries        int
	DefaultRadius     int
	EventsWaitTimeout time.Duration
	MaxDuration       time.Duration
}

// SettingsFromConfig derives Settings from the [drift] config section
func SettingsFromConfig(cfg *common.DriftConfig) Settings {
	return Settings{
		MaxQueries:        cfg.MaxQueries,
		DefaultRadius:     cfg.DefaultRadius,
		EventsWaitTimeout: common.ParseDurationOr(cfg.EventsWaitTimeout, 10*time.Second),
		MaxDuration:       common.ParseDurationOr(cfg.MaxDuration, 60*time.Second),
	}
}

// Result summarizes one run
type Result struct {
	RequestID   string
	TotalPlaces int
	Analyzed    int
	Events      int
	FailedPhase models.Phase
	Err         error
}

// Pipeline orchestrates one discovery request onto a FrameWriter
type Pipeline struct {
	classifier   interfaces.ClassifierGateway
	aggregator   *Aggregator
	scheduler    *Scheduler
	events       *EventFinder
	eventService interfaces.EventService
	settings     Settings
	logger       arbor.ILogger
}

// NewPipeline creates a Pipeline. eventService may be nil.
func NewPipeline(
	classifier interfaces.ClassifierGateway,
	aggregator *Aggregator,
	scheduler *Scheduler,
	events *EventFinder,
	eventService interfaces.EventService,
	settings Settings,
	logger arbor.ILogger,
) *Pipeline {
	if settings.MaxQueries < 1 || settings.MaxQueries > models.MaxSearchQueries {
		settings.MaxQueries = models.MaxSearchQueries
	}
	if settings.DefaultRadius <= 0 {
		settings.DefaultRadius = models.DefaultRadius
	}
	if settings.EventsWaitTimeout <= 0 {
		settings.EventsWaitTimeout = 10 * time.Second
	}
	if settings.MaxDuration <= 0 {
		settings.MaxDuration = 60 * time.Second
	}
	return &Pipeline{
		classifier:   classifier,
		aggregator:   aggregator,
		scheduler:    scheduler,
		events:       events,
		eventService: eventService,
		settings:     settings,
		logger:       logger,
	}
}

// DefaultRadius is the radius applied when a request omits one
func (p *Pipeline) DefaultRadius() int {
	return p.settings.DefaultRadius
}

// Run validates body and executes it. Invalid input becomes a single error
// frame in the interpreting phase.
func (p *Pipeline) Run(ctx context.Context, body models.SearchRequestBody, w interfaces.FrameWriter) Result {
	req, err := body.Validate(p.settings.DefaultRadius)
	if err != nil {
		result := Result{RequestID: uuid.New().String(), FailedPhase: models.PhaseInterpreting, Err: err}
		p.write(p.logger, w, stream.ErrorFrame{Message: err.Error(), Phase: models.PhaseInterpreting})
		return result
	}
	return p.Execute(ctx, req, w)
}

// Execute streams a validated request. Exactly one terminal frame is written.
// Only an interpretation failure is fatal; later failures shrink the output.
func (p *Pipeline) Execute(ctx context.Context, req models.SearchRequest, w interfaces.FrameWriter) (result Result) {
	result.RequestID = uuid.New().String()
	logger := p.logger.WithCorrelationId(result.RequestID)
	started := time.Now()

	ctx, cancel := context.WithTimeout(ctx, p.settings.MaxDuration)
	defer cancel()

	p.publish(ctx, interfaces.EventDriftStarted, map[string]interface{}{
		"request_id": result.RequestID,
		"query":      req.Query,
	})

	interpreted := false
	terminated := false
	defer func() {
		r := recover()
		if r == nil || terminated {
			return
		}
		logger.Error().Str("panic", toString(r)).Msg("Pipeline panicked")
		if !interpreted {
			result.FailedPhase = models.PhaseInterpreting
			result.Err = fmt.Errorf("pipeline panic: %v", r)
			p.fail(ctx, logger, w, result, "Interpretation failed")
			return
		}
		p.finish(ctx, logger, w, &result, started)
	}()

	logger.Info().Str("query", req.Query).Float64("lat", req.Latitude).Float64("lng", req.Longitude).
		Int("radius", req.Radius).Msg("Discovery started")

	interp, err := p.classifier.Interpret(ctx, req.Query)
	if err != nil {
		logger.Error().Err(err).Msg("Vibe interpretation failed")
		result.FailedPhase = models.PhaseInterpreting
		result.Err = err
		terminated = true
		p.fail(ctx, logger, w, result, interpretMessage(err))
		return result
	}
	interp = interp.Normalize(req.Query)
	interpreted = true
	p.write(logger, w, stream.InterpretingFrame{Interpretation: interp})
	p.phase(ctx, result.RequestID, models.PhaseInterpreting, len(interp.SearchQueries))

	queries := interp.SearchQueries
	if len(queries) > p.settings.MaxQueries {
		queries = queries[:p.settings.MaxQueries]
	}
	places := p.aggregator.Aggregate(ctx, queries, req.Center(), req.Radius)
	result.TotalPlaces = len(places)
	p.write(logger, w, stream.SearchingFrame{Places: places})
	p.phase(ctx, result.RequestID, models.PhaseSearching, len(places))
	logger.Info().Int("queries", len(queries)).Int("places", len(places)).Msg("Places aggregated")

	eventsCh := make(chan []models.DriftEvent, 1)
	common.SafeGo(logger, "drift-events", func() {
		var found []models.DriftEvent
		defer func() { eventsCh <- found }()

		var err error
		found, err = p.events.Find(ctx, interp.VibeSummary, places, req.Center())
		if err != nil {
			logger.Warn().Err(err).Msg("Event lookup failed")
		}
	})

	outcomes := p.scheduler.AnalyzeAll(ctx, places, interp)

	for outcomes != nil {
		select {
		case o, ok := <-outcomes:
			if !ok {
				outcomes = nil
				continue
			}
			if !o.OK() {
				logger.Warn().Err(o.Err).Str("place_id", o.PlaceID).Msg("Photo analysis failed")
				continue
			}
			result.Analyzed++
			p.write(logger, w, stream.AnalyzingFrame{Update: models.PlaceUpdate{PlaceID: o.PlaceID, VibeAnalysis: o.Analysis}})
		case found := <-eventsCh:
			eventsCh = nil
			p.emitEvents(ctx, logger, w, &result, found)
		case <-ctx.Done():
			logger.Warn().Err(ctx.Err()).Msg("Pipeline deadline reached during analysis")
			outcomes = nil
		}
	}
	p.phase(ctx, result.RequestID, models.PhaseAnalyzing, result.Analyzed)

	if eventsCh != nil && ctx.Err() == nil {
		timer := time.NewTimer(p.settings.EventsWaitTimeout)
		select {
		case found := <-eventsCh:
			p.emitEvents(ctx, logger, w, &result, found)
		case <-timer.C:
			logger.Warn().Str("waited", p.settings.EventsWaitTimeout.String()).Msg("Event lookup timed out, completing without events")
		case <-ctx.Done():
		}
		timer.Stop()
	}

	terminated = true
	p.finish(ctx, logger, w, &result, started)
	return result
}

func (p *Pipeline) emitEvents(ctx context.Context, logger arbor.ILogger, w interfaces.FrameWriter, result *Result, found []models.DriftEvent) {
	if len(found) == 0 {
		return
	}
	result.Events = len(found)
	p.write(logger, w, stream.EventsFrame{Events: found})
	p.phase(ctx, result.RequestID, models.PhaseEvents, len(found))
}

func (p *Pipeline) finish(ctx context.Context, logger arbor.ILogger, w interfaces.FrameWriter, result *Result, started time.Time) {
	p.write(logger, w, stream.CompleteFrame{TotalPlaces: result.TotalPlaces})
	elapsed := time.Since(started)
	logger.Info().
		Int("total_places", result.TotalPlaces).
		Int("analyzed", result.Analyzed).
		Int("events", result.Events).
		Int64("duration_ms", elapsed.Milliseconds()).
		Msg("Discovery complete")
	p.publish(ctx, interfaces.EventDriftCompleted, map[string]interface{}{
		"request_id":   result.RequestID,
		"total_places": result.TotalPlaces,
		"analyzed":     result.Analyzed,
		"events":       result.Events,
		"duration_ms":  elapsed.Milliseconds(),
	})
}

func (p *Pipeline) fail(ctx context.Context, logger arbor.ILogger, w interfaces.FrameWriter, result Result, message string) {
	p.write(logger, w, stream.ErrorFrame{Message: message, Phase: result.FailedPhase})
	p.publish(ctx, interfaces.EventDriftFailed, map[string]interface{}{
		"request_id": result.RequestID,
		"phase":      string(result.FailedPhase),
		"error":      message,
	})
}

// write sends one frame. Delivery errors are logged and otherwise ignored;
// the writer goes quiet once its consumer disconnects.
func (p *Pipeline) write(logger arbor.ILogger, w interfaces.FrameWriter, frame stream.Frame) {
	if err := w.WriteFrame(frame); err != nil {
		logger.Debug().Err(err).Str("frame", string(frame.Type())).Msg("Frame not delivered")
	}
}

func (p *Pipeline) phase(ctx context.Context, requestID string, phase models.Phase, count int) {
	p.publish(ctx, interfaces.EventDriftPhase, map[string]interface{}{
		"request_id": requestID,
		"phase":      string(phase),
		"count":      count,
	})
}

func (p *Pipeline) publish(ctx context.Context, eventType interfaces.EventType, payload map[string]interface{}) {
	if p.eventService == nil {
		return
	}
	// Subscribers must not inherit the request deadline
	if err := p.eventService.Publish(context.WithoutCancel(ctx), interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		p.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to publish event")
	}
}

// interpretMessage is the client-facing text of an interpretation failure
func interpretMessage(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "Vibe interpretation timed out"
	case errors.Is(err, context.Canceled):
		return "Vibe interpretation cancelled"
	default:
		return fmt.Sprintf("Failed to interpret vibe: %v", err)
	}
}

func toString(v interface{}) string {
	return fmt.Sprintf("%v", v)
}
