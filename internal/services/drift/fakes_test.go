package drift

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/drift/internal/interfaces"
	"github.com/ternarybob/drift/internal/models"
)

type fakePlaces struct {
	results   map[string][]models.Place
	searchErr map[string]error
	panicOn   map[string]bool
	photoErr  map[string]error

	mu       sync.Mutex
	fetched  []string
	inFlight int32
	peak     int32
	delay    time.Duration
}

func (f *fakePlaces) SearchText(ctx context.Context, query string, center models.LatLng, radius int, pageSize int) ([]models.Place, error) {
	if f.panicOn[query] {
		panic("search exploded for " + query)
	}
	if err := f.searchErr[query]; err != nil {
		return nil, err
	}
	places := f.results[query]
	if len(places) > pageSize {
		places = places[:pageSize]
	}
	return places, nil
}

func (f *fakePlaces) FetchPhoto(ctx context.Context, photoRef string, maxWidthPx int) (*models.PhotoData, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&f.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&f.peak, peak, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.fetched = append(f.fetched, photoRef)
	f.mu.Unlock()

	if err := f.photoErr[photoRef]; err != nil {
		return nil, err
	}
	return &models.PhotoData{Data: []byte(photoRef), MimeType: "image/jpeg"}, nil
}

func (f *fakePlaces) PhotoDisplayURL(photoRef string, maxWidthPx int) string {
	return fmt.Sprintf("https://photos.test/%s?w=%d", photoRef, maxWidthPx)
}

func (f *fakePlaces) fetchedRefs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

type fakeClassifier struct {
	interp    models.VibeInterpretation
	interpErr error
	scores    map[string]int
	panicOn   string
}

func (f *fakeClassifier) Interpret(ctx context.Context, query string) (models.VibeInterpretation, error) {
	if f.interpErr != nil {
		return models.VibeInterpretation{}, f.interpErr
	}
	return f.interp, nil
}

func (f *fakeClassifier) ScorePhoto(ctx context.Context, photo *models.PhotoData, attributes []string, summary string) (models.PhotoAnalysis, error) {
	ref := string(photo.Data)
	if ref == f.panicOn {
		panic("classifier exploded")
	}
	return models.PhotoAnalysis{
		VibeScore:        f.scores[ref],
		MatchingElements: []string{"warm light"},
		VibeDescription:  "Cozy corner for " + summary,
		StandoutDetail:   ref,
	}, nil
}

type fakeEvents struct {
	events []models.DriftEvent
	err    error
	block  bool

	mu    sync.Mutex
	query interfaces.EventQuery
}

func (f *fakeEvents) FindEvents(ctx context.Context, query interfaces.EventQuery) ([]models.DriftEvent, error) {
	f.mu.Lock()
	f.query = query
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.events, f.err
}

func (f *fakeEvents) lastQuery() interfaces.EventQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.query
}

func place(id, name, photoRef string) models.Place {
	return models.Place{
		ID:       id,
		Name:     name,
		Address:  name + " St",
		Location: models.LatLng{Latitude: 49.28, Longitude: -123.12},
		Types:    []string{"cafe"},
		PhotoRef: photoRef,
	}
}
