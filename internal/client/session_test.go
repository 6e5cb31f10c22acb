package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/drift/internal/models"
	"github.com/ternarybob/drift/internal/stream"
)

func floatPtr(v float64) *float64 { return &v }

func body(query string) models.SearchRequestBody {
	return models.SearchRequestBody{Query: query, Latitude: floatPtr(49.28), Longitude: floatPtr(-123.12)}
}

func writeFrame(w http.ResponseWriter, f stream.Frame) {
	data, _ := stream.Encode(f)
	w.Write(data)
	w.(http.Flusher).Flush()
}

// driftServer streams scripted frames per query. Queries listed in hold
// pause after their first frame until release is closed.
func driftServer(t *testing.T, scripts map[string][]stream.Frame, hold map[string]bool, release <-chan struct{}) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var b models.SearchRequestBody
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil || b.Query == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"query is required"}`))
			return
		}

		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		for i, f := range scripts[b.Query] {
			if i == 1 && hold[b.Query] {
				select {
				case <-release:
				case <-r.Context().Done():
				}
			}
			writeFrame(w, f)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func script(summary string, ids ...string) []stream.Frame {
	places := make([]models.Place, 0, len(ids))
	for _, id := range ids {
		places = append(places, models.Place{ID: id, Name: id})
	}
	frames := []stream.Frame{
		stream.InterpretingFrame{Interpretation: models.VibeInterpretation{VibeSummary: summary}},
		stream.SearchingFrame{Places: places},
	}
	for i, id := range ids {
		frames = append(frames, stream.AnalyzingFrame{Update: models.PlaceUpdate{PlaceID: id, VibeAnalysis: models.PhotoAnalysis{VibeScore: 10 * (i + 1)}}})
	}
	return append(frames, stream.CompleteFrame{TotalPlaces: len(ids)})
}

func TestSession_SearchFoldsStream(t *testing.T) {
	server := driftServer(t, map[string][]stream.Frame{"calm": script("calm", "a", "b")}, nil, nil)

	var mu sync.Mutex
	var phases []Phase
	session := NewSession(New(server.URL, nil), func(s State) {
		mu.Lock()
		phases = append(phases, s.Phase)
		mu.Unlock()
	})

	require.NoError(t, session.Search(context.Background(), body("calm")))

	s := session.State()
	assert.Equal(t, PhaseResults, s.Phase)
	assert.Equal(t, "calm", s.Interpretation.VibeSummary)
	assert.Equal(t, []string{"b", "a"}, []string{s.Ranked()[0].ID, s.Ranked()[1].ID})
	assert.NotEmpty(t, session.Token())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, PhaseInterpreting, phases[0])
	assert.Equal(t, PhaseResults, phases[len(phases)-1])
}

func TestSession_NewSearchSupersedesOld(t *testing.T) {
	release := make(chan struct{})
	server := driftServer(t,
		map[string][]stream.Frame{
			"first":  script("first", "f1", "f2"),
			"second": script("second", "s1"),
		},
		map[string]bool{"first": true},
		release,
	)

	interpreted := make(chan struct{}, 1)
	session := NewSession(New(server.URL, nil), func(s State) {
		if s.Interpretation != nil && s.Interpretation.VibeSummary == "first" {
			select {
			case interpreted <- struct{}{}:
			default:
			}
		}
	})

	firstDone := make(chan error, 1)
	go func() { firstDone <- session.Search(context.Background(), body("first")) }()

	select {
	case <-interpreted:
	case <-time.After(5 * time.Second):
		t.Fatal("first search never started streaming")
	}
	firstToken := session.Token()

	require.NoError(t, session.Search(context.Background(), body("second")))
	close(release)

	select {
	case err := <-firstDone:
		assert.NoError(t, err, "cancellation is not an error")
	case <-time.After(5 * time.Second):
		t.Fatal("first search was not aborted")
	}

	s := session.State()
	assert.NotEqual(t, firstToken, session.Token())
	assert.Equal(t, PhaseResults, s.Phase)
	assert.Equal(t, "second", s.Interpretation.VibeSummary)
	require.Len(t, s.Places, 1)
	assert.Equal(t, "s1", s.Places[0].ID)
	assert.Empty(t, s.Error)
}

func TestSession_StaleFramesAreDropped(t *testing.T) {
	session := NewSession(nil, nil)
	_ = session.begin(func() {})
	session.apply("not-the-active-token", func(s State) State {
		s.Error = "should not happen"
		return s
	})
	assert.Empty(t, session.State().Error)
}

func TestSession_CancelIsSilent(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	server := driftServer(t, map[string][]stream.Frame{"slow": script("slow", "a")}, map[string]bool{"slow": true}, release)

	started := make(chan struct{}, 1)
	session := NewSession(New(server.URL, nil), func(s State) {
		if s.Interpretation != nil {
			select {
			case started <- struct{}{}:
			default:
			}
		}
	})

	done := make(chan error, 1)
	go func() { done <- session.Search(context.Background(), body("slow")) }()
	<-started
	session.Cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("cancel did not abort the stream")
	}
	assert.Equal(t, PhaseIdle, session.State().Phase)
	assert.Empty(t, session.State().Error)
}

func TestSession_RejectedRequestSurfacesError(t *testing.T) {
	server := driftServer(t, nil, nil, nil)
	session := NewSession(New(server.URL, nil), nil)

	err := session.Search(context.Background(), body(""))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "query is required", apiErr.Message)
	assert.Equal(t, PhaseIdle, session.State().Phase)
	assert.Contains(t, session.State().Error, "query is required")
}

func TestClient_StreamWithoutTerminalFrame(t *testing.T) {
	server := driftServer(t, map[string][]stream.Frame{"cut": {
		stream.InterpretingFrame{},
		stream.SearchingFrame{},
	}}, nil, nil)

	var got []stream.FrameType
	err := New(server.URL, nil).Stream(context.Background(), body("cut"), func(f stream.Frame) error {
		got = append(got, f.Type())
		return nil
	})

	assert.ErrorIs(t, err, ErrStreamClosed)
	assert.Equal(t, []stream.FrameType{stream.TypeInterpreting, stream.TypeSearching}, got)
}

func TestClient_StopsAtTerminalFrame(t *testing.T) {
	server := driftServer(t, map[string][]stream.Frame{"bad": {
		stream.ErrorFrame{Message: "Failed to interpret vibe", Phase: models.PhaseInterpreting},
	}}, nil, nil)

	var frames []stream.Frame
	err := New(server.URL, nil).Stream(context.Background(), body("bad"), func(f stream.Frame) error {
		frames = append(frames, f)
		return nil
	})

	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, stream.TypeError, frames[0].Type())
}
