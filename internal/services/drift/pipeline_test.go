package drift

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/drift/internal/interfaces"
	"github.com/ternarybob/drift/internal/models"
	"github.com/ternarybob/drift/internal/services/events"
	"github.com/ternarybob/drift/internal/stream"
)

func floatPtr(v float64) *float64 { return &v }

func cozyInterpretation() models.VibeInterpretation {
	return models.VibeInterpretation{
		SearchQueries:  []string{"cozy cafe", "book cafe", "tea room"},
		PlaceTypes:     []string{"cafe"},
		VibeAttributes: []string{"warm lighting", "rain on windows"},
		VibeSummary:    "A snug cafe on a rainy afternoon",
		MoodColor:      "#6B4F3A",
	}
}

func newTestPipeline(places *fakePlaces, classifier *fakeClassifier, finder *fakeEvents, settings Settings) *Pipeline {
	logger := arbor.NewLogger()
	return NewPipeline(
		classifier,
		NewAggregator(places, 12, 8, 800, logger),
		NewScheduler(places, classifier, 4, 400, logger),
		NewEventFinder(finder, 6, 5),
		nil,
		settings,
		logger,
	)
}

func cozyRequest() models.SearchRequest {
	return models.SearchRequest{Query: "cozy rainy day with coffee", Latitude: 49.28, Longitude: -123.12, Radius: 5000}
}

func framesOf[T stream.Frame](frames []stream.Frame) []T {
	var out []T
	for _, f := range frames {
		if typed, ok := f.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}

func TestPipeline_FullStream(t *testing.T) {
	places := &fakePlaces{results: map[string][]models.Place{
		"cozy cafe": {place("a", "Alpha Cafe", "ref-a"), place("b", "Bean There", "")},
		"book cafe": {place("c", "Chapters", "ref-c"), place("a", "Alpha Cafe (dup)", "ref-dup")},
		"tea room":  {place("d", "Dewdrop Tea", "ref-d")},
	}}
	classifier := &fakeClassifier{interp: cozyInterpretation(), scores: map[string]int{"ref-a": 80, "ref-c": 65, "ref-d": 40}}
	finder := &fakeEvents{events: []models.DriftEvent{{Name: "Jazz Night", Venue: "Alpha Cafe", Date: "Fri 8pm"}}}
	p := newTestPipeline(places, classifier, finder, Settings{})

	rec := &stream.Recorder{}
	result := p.Execute(context.Background(), cozyRequest(), rec)
	require.NoError(t, result.Err)

	frames := rec.Frames()
	require.GreaterOrEqual(t, len(frames), 3)
	assert.Equal(t, stream.TypeInterpreting, frames[0].Type())
	assert.Equal(t, stream.TypeSearching, frames[1].Type())
	assert.Equal(t, stream.TypeComplete, frames[len(frames)-1].Type())

	searching := framesOf[stream.SearchingFrame](frames)
	require.Len(t, searching, 1)
	ids := make([]string, 0, len(searching[0].Places))
	for _, pl := range searching[0].Places {
		ids = append(ids, pl.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
	assert.Equal(t, "Alpha Cafe", searching[0].Places[0].Name, "first seen version wins")
	assert.Equal(t, "https://photos.test/ref-a?w=800", searching[0].Places[0].PhotoDisplayURL)
	assert.Empty(t, searching[0].Places[1].PhotoDisplayURL)

	analyzed := map[string]int{}
	for _, f := range framesOf[stream.AnalyzingFrame](frames) {
		analyzed[f.Update.PlaceID] = f.Update.VibeAnalysis.VibeScore
	}
	assert.Equal(t, map[string]int{"a": 80, "c": 65, "d": 40}, analyzed)
	assert.ElementsMatch(t, []string{"ref-a", "ref-c", "ref-d"}, places.fetchedRefs())

	evs := framesOf[stream.EventsFrame](frames)
	require.Len(t, evs, 1)
	assert.Equal(t, "Jazz Night", evs[0].Events[0].Name)

	complete := framesOf[stream.CompleteFrame](frames)
	require.Len(t, complete, 1)
	assert.Equal(t, len(searching[0].Places), complete[0].TotalPlaces)
	assert.Equal(t, 4, result.TotalPlaces)
	assert.Equal(t, 3, result.Analyzed)
	assert.Equal(t, 1, result.Events)

	q := finder.lastQuery()
	assert.Equal(t, "A snug cafe on a rainy afternoon", q.VibeSummary)
	assert.Equal(t, []string{"Alpha Cafe", "Bean There", "Chapters", "Dewdrop Tea"}, q.PlaceNames)
	assert.Equal(t, 49.28, q.Latitude)
}

func TestPipeline_InterpretFailureIsFatal(t *testing.T) {
	places := &fakePlaces{}
	classifier := &fakeClassifier{interpErr: errors.New("model unavailable")}
	p := newTestPipeline(places, classifier, &fakeEvents{}, Settings{})

	rec := &stream.Recorder{}
	result := p.Execute(context.Background(), cozyRequest(), rec)

	require.Error(t, result.Err)
	assert.Equal(t, models.PhaseInterpreting, result.FailedPhase)
	frames := rec.Frames()
	require.Len(t, frames, 1)
	errFrame, ok := frames[0].(stream.ErrorFrame)
	require.True(t, ok)
	assert.Equal(t, models.PhaseInterpreting, errFrame.Phase)
	assert.Contains(t, errFrame.Message, "model unavailable")
	assert.Empty(t, places.fetchedRefs())
}

func TestPipeline_PhotoFailureIsIsolated(t *testing.T) {
	places := &fakePlaces{
		results: map[string][]models.Place{
			"cozy cafe": {place("x", "Xenia", "ref-x"), place("y", "Yarrow", "ref-y")},
		},
		photoErr: map[string]error{"ref-x": errors.New("403 forbidden")},
	}
	classifier := &fakeClassifier{interp: cozyInterpretation(), scores: map[string]int{"ref-y": 77}}
	p := newTestPipeline(places, classifier, &fakeEvents{}, Settings{})

	rec := &stream.Recorder{}
	result := p.Execute(context.Background(), cozyRequest(), rec)
	require.NoError(t, result.Err)

	analyzing := framesOf[stream.AnalyzingFrame](rec.Frames())
	require.Len(t, analyzing, 1)
	assert.Equal(t, "y", analyzing[0].Update.PlaceID)
	assert.Equal(t, 77, analyzing[0].Update.VibeAnalysis.VibeScore)

	types := rec.Types()
	assert.Equal(t, stream.TypeComplete, types[len(types)-1])
	assert.NotContains(t, types, stream.TypeError)
	assert.NotContains(t, types, stream.TypeEvents, "empty event list is not emitted")
}

func TestPipeline_ClassifierPanicIsIsolated(t *testing.T) {
	places := &fakePlaces{results: map[string][]models.Place{
		"cozy cafe": {place("x", "Xenia", "ref-x"), place("y", "Yarrow", "ref-y")},
	}}
	classifier := &fakeClassifier{interp: cozyInterpretation(), scores: map[string]int{"ref-y": 50}, panicOn: "ref-x"}
	p := newTestPipeline(places, classifier, &fakeEvents{}, Settings{})

	rec := &stream.Recorder{}
	p.Execute(context.Background(), cozyRequest(), rec)

	analyzing := framesOf[stream.AnalyzingFrame](rec.Frames())
	require.Len(t, analyzing, 1)
	assert.Equal(t, "y", analyzing[0].Update.PlaceID)
	assert.Equal(t, stream.TypeComplete, rec.Types()[len(rec.Types())-1])
}

func TestPipeline_EventsWaitIsBounded(t *testing.T) {
	places := &fakePlaces{results: map[string][]models.Place{"cozy cafe": {place("a", "Alpha", "ref-a")}}}
	classifier := &fakeClassifier{interp: cozyInterpretation()}
	p := newTestPipeline(places, classifier, &fakeEvents{block: true}, Settings{EventsWaitTimeout: 50 * time.Millisecond})

	rec := &stream.Recorder{}
	start := time.Now()
	p.Execute(context.Background(), cozyRequest(), rec)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, []stream.FrameType{
		stream.TypeInterpreting,
		stream.TypeSearching,
		stream.TypeAnalyzing,
		stream.TypeComplete,
	}, rec.Types())
}

func TestPipeline_FailedQueriesContributeNothing(t *testing.T) {
	places := &fakePlaces{
		results:   map[string][]models.Place{"tea room": {place("d", "Dewdrop", "")}},
		searchErr: map[string]error{"cozy cafe": errors.New("quota"), "book cafe": errors.New("quota")},
	}
	classifier := &fakeClassifier{interp: cozyInterpretation()}
	p := newTestPipeline(places, classifier, &fakeEvents{}, Settings{})

	rec := &stream.Recorder{}
	result := p.Execute(context.Background(), cozyRequest(), rec)

	assert.Equal(t, 1, result.TotalPlaces)
	assert.Equal(t, []stream.FrameType{stream.TypeInterpreting, stream.TypeSearching, stream.TypeComplete}, rec.Types())
}

func TestPipeline_WriterErrorsDoNotStopPipeline(t *testing.T) {
	places := &fakePlaces{results: map[string][]models.Place{"cozy cafe": {place("a", "Alpha", "ref-a")}}}
	classifier := &fakeClassifier{interp: cozyInterpretation()}
	p := newTestPipeline(places, classifier, &fakeEvents{}, Settings{})

	calls := 0
	w := stream.FuncWriter(func(f stream.Frame) error {
		calls++
		return errors.New("client gone")
	})
	result := p.Execute(context.Background(), cozyRequest(), w)

	assert.NoError(t, result.Err)
	assert.Equal(t, 4, calls)
}

func TestPipeline_RunRejectsInvalidRequest(t *testing.T) {
	p := newTestPipeline(&fakePlaces{}, &fakeClassifier{interp: cozyInterpretation()}, &fakeEvents{}, Settings{})

	tests := []struct {
		name string
		body models.SearchRequestBody
	}{
		{"blank query", models.SearchRequestBody{Query: "   ", Latitude: floatPtr(1), Longitude: floatPtr(2)}},
		{"missing latitude", models.SearchRequestBody{Query: "cozy", Longitude: floatPtr(2)}},
		{"missing longitude", models.SearchRequestBody{Query: "cozy", Latitude: floatPtr(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &stream.Recorder{}
			result := p.Run(context.Background(), tt.body, rec)

			require.ErrorIs(t, result.Err, models.ErrInvalidRequest)
			require.Len(t, rec.Frames(), 1)
			errFrame := rec.Frames()[0].(stream.ErrorFrame)
			assert.Equal(t, models.PhaseInterpreting, errFrame.Phase)
		})
	}
}

func TestPipeline_RunAcceptsZeroCoordinates(t *testing.T) {
	p := newTestPipeline(&fakePlaces{}, &fakeClassifier{interp: cozyInterpretation()}, &fakeEvents{}, Settings{})

	rec := &stream.Recorder{}
	result := p.Run(context.Background(), models.SearchRequestBody{Query: "null island", Latitude: floatPtr(0), Longitude: floatPtr(0)}, rec)

	require.NoError(t, result.Err)
	assert.Equal(t, stream.TypeComplete, rec.Types()[len(rec.Types())-1])
}

func TestPipeline_PublishesLifecycleEvents(t *testing.T) {
	logger := arbor.NewLogger()
	bus := events.NewService(logger)

	got := make(chan interfaces.EventType, 16)
	for _, et := range []interfaces.EventType{interfaces.EventDriftStarted, interfaces.EventDriftCompleted} {
		require.NoError(t, bus.Subscribe(et, func(ctx context.Context, e interfaces.Event) error {
			got <- e.Type
			return nil
		}))
	}

	classifier := &fakeClassifier{interp: cozyInterpretation()}
	places := &fakePlaces{}
	p := NewPipeline(classifier,
		NewAggregator(places, 12, 8, 800, logger),
		NewScheduler(places, classifier, 4, 400, logger),
		NewEventFinder(&fakeEvents{}, 6, 5),
		bus, Settings{}, logger)

	p.Execute(context.Background(), cozyRequest(), &stream.Recorder{})

	seen := map[interfaces.EventType]bool{}
	timeout := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case et := <-got:
			seen[et] = true
		case <-timeout:
			t.Fatalf("lifecycle events not received: %v", seen)
		}
	}
}

func TestAggregator_CapStopsMerging(t *testing.T) {
	results := map[string][]models.Place{}
	queries := []string{"q1", "q2", "q3"}
	for qi, q := range queries {
		for i := 0; i < 6; i++ {
			results[q] = append(results[q], place(fmt.Sprintf("%d-%d", qi, i), q, ""))
		}
	}
	agg := NewAggregator(&fakePlaces{results: results}, 12, 8, 800, arbor.NewLogger())

	merged := agg.Aggregate(context.Background(), queries, models.LatLng{}, 1000)

	require.Len(t, merged, 12)
	assert.Equal(t, "0-0", merged[0].ID)
	assert.Equal(t, "1-5", merged[11].ID)
	for _, p := range merged {
		assert.NotEqual(t, "q3", p.Name, "later queries are dropped beyond the cap")
	}
}

func TestAggregator_DuplicateAcrossQueriesKeptOnce(t *testing.T) {
	agg := NewAggregator(&fakePlaces{results: map[string][]models.Place{
		"first":  {place("same", "From First", "")},
		"second": {place("same", "From Second", ""), place("other", "Other", "")},
	}}, 12, 8, 800, arbor.NewLogger())

	merged := agg.Aggregate(context.Background(), []string{"first", "second"}, models.LatLng{}, 1000)

	require.Len(t, merged, 2)
	assert.Equal(t, "From First", merged[0].Name)
	assert.Equal(t, "other", merged[1].ID)
}

func TestAggregator_QueryPanicIsIsolated(t *testing.T) {
	places := &fakePlaces{
		results: map[string][]models.Place{
			"broken": {place("never", "Never", "")},
			"second": {place("b1", "B1", "")},
			"third":  {place("c1", "C1", ""), place("b1", "Dup", "")},
		},
		panicOn: map[string]bool{"broken": true},
	}
	agg := NewAggregator(places, 12, 8, 800, arbor.NewLogger())

	var merged []models.Place
	require.NotPanics(t, func() {
		merged = agg.Aggregate(context.Background(), []string{"broken", "second", "third"}, models.LatLng{}, 1000)
	})

	require.Len(t, merged, 2)
	assert.Equal(t, "b1", merged[0].ID)
	assert.Equal(t, "B1", merged[0].Name)
	assert.Equal(t, "c1", merged[1].ID)
}

func TestScheduler_BatchesBoundConcurrency(t *testing.T) {
	var list []models.Place
	for i := 0; i < 10; i++ {
		list = append(list, place(fmt.Sprintf("p%d", i), "P", fmt.Sprintf("ref-%d", i)))
	}
	list = append(list, place("nophoto", "N", ""))

	places := &fakePlaces{delay: 20 * time.Millisecond}
	s := NewScheduler(places, &fakeClassifier{}, 4, 400, arbor.NewLogger())

	count := 0
	for o := range s.AnalyzeAll(context.Background(), list, cozyInterpretation()) {
		assert.True(t, o.OK())
		assert.NotEqual(t, "nophoto", o.PlaceID)
		count++
	}

	assert.Equal(t, 10, count)
	assert.LessOrEqual(t, places.peak, int32(4))
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	var list []models.Place
	for i := 0; i < 12; i++ {
		list = append(list, place(fmt.Sprintf("p%d", i), "P", fmt.Sprintf("ref-%d", i)))
	}
	places := &fakePlaces{delay: 10 * time.Millisecond}
	s := NewScheduler(places, &fakeClassifier{}, 4, 400, arbor.NewLogger())

	ctx, cancel := context.WithCancel(context.Background())
	out := s.AnalyzeAll(ctx, list, cozyInterpretation())
	<-out
	cancel()
	for range out {
	}

	assert.Less(t, len(places.fetchedRefs()), 12)
}

func TestEventFinder_LimitsNamesAndEvents(t *testing.T) {
	many := make([]models.DriftEvent, 9)
	for i := range many {
		many[i] = models.DriftEvent{Name: fmt.Sprintf("E%d", i)}
	}
	gateway := &fakeEvents{events: many}
	finder := NewEventFinder(gateway, 6, 5)

	var list []models.Place
	for i := 0; i < 8; i++ {
		list = append(list, place(fmt.Sprintf("p%d", i), fmt.Sprintf("Name%d", i), ""))
	}
	list[1].Name = ""

	got, err := finder.Find(context.Background(), "summary", list, models.LatLng{Latitude: 1, Longitude: 2})

	require.NoError(t, err)
	assert.Len(t, got, 6)
	q := gateway.lastQuery()
	assert.Equal(t, []string{"Name0", "Name2", "Name3", "Name4", "Name5"}, q.PlaceNames)
	assert.Equal(t, 6, q.MaxEvents)
}
