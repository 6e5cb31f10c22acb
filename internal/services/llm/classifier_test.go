package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/drift/internal/common"
	"github.com/ternarybob/drift/internal/interfaces"
	"github.com/ternarybob/drift/internal/models"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) GenerateContent(ctx context.Context, request *ContentRequest) (*ContentResponse, error) {
	args := m.Called(ctx, request)
	if resp, ok := args.Get(0).(*ContentResponse); ok {
		return resp, args.Error(1)
	}
	return nil, args.Error(1)
}

func newTestClassifier(gen Generator) *Classifier {
	cfg := common.NewDefaultConfig().Gemini
	c := NewClassifier(gen, &cfg, arbor.NewLogger())
	c.now = func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestClassifier_Interpret(t *testing.T) {
	gen := new(mockGenerator)
	gen.On("GenerateContent", mock.Anything, mock.MatchedBy(func(r *ContentRequest) bool {
		return r.Prompt == "cozy rainy day with coffee" &&
			r.SystemInstruction == interpretSystemInstruction &&
			r.Temperature == 0.7 &&
			r.OutputSchema != nil
	})).Return(&ContentResponse{Text: `{
		"search_queries": ["cozy cafe with fireplace", "", "quiet tea room", "bookstore cafe", "window seat cafe", "extra"],
		"place_types": ["cafe"],
		"vibe_attributes": ["warm lighting", "rain on windows"],
		"vibe_summary": "A warm refuge from the rain",
		"mood_color": "#C08552"
	}`, Model: "gemini-2.5-flash"}, nil)

	v, err := newTestClassifier(gen).Interpret(t.Context(), "cozy rainy day with coffee")
	require.NoError(t, err)
	assert.Equal(t, []string{"cozy cafe with fireplace", "quiet tea room", "bookstore cafe", "window seat cafe"}, v.SearchQueries)
	assert.Equal(t, "#C08552", v.MoodColor)
	gen.AssertExpectations(t)
}

func TestClassifier_Interpret_Error(t *testing.T) {
	gen := new(mockGenerator)
	gen.On("GenerateContent", mock.Anything, mock.Anything).Return(nil, errors.New("503 unavailable"))

	_, err := newTestClassifier(gen).Interpret(t.Context(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestClassifier_ScorePhoto(t *testing.T) {
	photo := &models.PhotoData{Data: []byte{0xff, 0xd8}, MimeType: "image/jpeg"}

	gen := new(mockGenerator)
	gen.On("GenerateContent", mock.Anything, mock.MatchedBy(func(r *ContentRequest) bool {
		return r.Image == photo && r.Temperature == 0.3
	})).Return(&ContentResponse{Text: "```json\n{\"vibe_score\": 104.2, \"vibe_description\": \" glowing \", \"standout_detail\": \"lamp\"}\n```"}, nil)

	a, err := newTestClassifier(gen).ScorePhoto(t.Context(), photo, []string{"warm"}, "cozy")
	require.NoError(t, err)
	assert.Equal(t, 100, a.VibeScore)
	assert.Equal(t, "glowing", a.VibeDescription)
	assert.NotNil(t, a.MatchingElements)
}

func TestClassifier_ScorePhoto_Empty(t *testing.T) {
	_, err := newTestClassifier(new(mockGenerator)).ScorePhoto(t.Context(), nil, nil, "")
	assert.Error(t, err)
}

func TestClassifier_FindEvents(t *testing.T) {
	gen := new(mockGenerator)
	gen.On("GenerateContent", mock.Anything, mock.MatchedBy(func(r *ContentRequest) bool {
		return r.GoogleSearch && r.Provider == ProviderGemini && r.OutputSchema == nil
	})).Run(func(args mock.Arguments) {
		r := args.Get(1).(*ContentRequest)
		assert.Contains(t, r.Prompt, "Today is Sunday, October 18, 2026.")
		assert.Contains(t, r.Prompt, "Moss Cafe, Night Owl")
		assert.Contains(t, r.Prompt, "Return up to 2 events.")
	}).Return(&ContentResponse{Text: `Here is what I found:
{"events":[
 {"name":"Jazz Night","venue":"Night Owl","date":"Tonight 8pm","description":"Trio","url":"https://e.example/1"},
 {"name":"","venue":"x","date":"y","description":"z"},
 {"name":"Poetry Slam","venue":"Moss Cafe","date":"Tue","description":"Open mic"},
 {"name":"Third","venue":"v","date":"d","description":"dd"}
]}`}, nil)

	events, err := newTestClassifier(gen).FindEvents(t.Context(), interfaces.EventQuery{
		VibeSummary: "late-night jazz",
		PlaceNames:  []string{"Moss Cafe", "Night Owl"},
		Latitude:    49.28,
		Longitude:   -123.12,
		MaxEvents:   2,
	})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Jazz Night", events[0].Name)
	assert.Equal(t, "Poetry Slam", events[1].Name)
}

func TestParseEvents_BareArray(t *testing.T) {
	events, err := parseEvents(`[{"name":"A","venue":"B","date":"C","description":"D"}]`)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	_, err = parseEvents("no events found this week")
	assert.Error(t, err)
}
