package cache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/drift/internal/models"
)

type memoryStore struct {
	mu       sync.Mutex
	photos   map[string]*models.PhotoData
	analyses map[string]models.PhotoAnalysis
	readErr  error
	purged   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{photos: map[string]*models.PhotoData{}, analyses: map[string]models.PhotoAnalysis{}}
}

func (m *memoryStore) GetPhoto(ctx context.Context, key string) (*models.PhotoData, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, false, m.readErr
	}
	p, ok := m.photos[key]
	return p, ok, nil
}

func (m *memoryStore) PutPhoto(ctx context.Context, key string, photo *models.PhotoData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.photos[key] = photo
	return nil
}

func (m *memoryStore) GetAnalysis(ctx context.Context, key string) (*models.PhotoAnalysis, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, false, m.readErr
	}
	a, ok := m.analyses[key]
	if !ok {
		return nil, false, nil
	}
	return &a, true, nil
}

func (m *memoryStore) PutAnalysis(ctx context.Context, key string, analysis models.PhotoAnalysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyses[key] = analysis
	return nil
}

func (m *memoryStore) Purge(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purged++
	return 0, nil
}

func (m *memoryStore) Close() error { return nil }

type countingPlaces struct {
	fetches int
	err     error
}

func (c *countingPlaces) SearchText(ctx context.Context, query string, center models.LatLng, radius int, pageSize int) ([]models.Place, error) {
	return []models.Place{{ID: "p1", Name: query}}, nil
}

func (c *countingPlaces) FetchPhoto(ctx context.Context, photoRef string, maxWidthPx int) (*models.PhotoData, error) {
	c.fetches++
	if c.err != nil {
		return nil, c.err
	}
	return &models.PhotoData{Data: []byte(photoRef), MimeType: "image/png"}, nil
}

func (c *countingPlaces) PhotoDisplayURL(photoRef string, maxWidthPx int) string {
	return "https://img.test/" + photoRef
}

type countingClassifier struct {
	scores int
}

func (c *countingClassifier) Interpret(ctx context.Context, query string) (models.VibeInterpretation, error) {
	return models.VibeInterpretation{VibeSummary: query}, nil
}

func (c *countingClassifier) ScorePhoto(ctx context.Context, photo *models.PhotoData, attributes []string, summary string) (models.PhotoAnalysis, error) {
	c.scores++
	return models.PhotoAnalysis{VibeScore: 60 + c.scores}, nil
}

func TestPlaceGateway_CachesPhotos(t *testing.T) {
	inner := &countingPlaces{}
	gw := NewPlaceGateway(inner, newMemoryStore(), arbor.NewLogger())
	ctx := context.Background()

	first, err := gw.FetchPhoto(ctx, "places/p1/photos/a", 400)
	require.NoError(t, err)
	second, err := gw.FetchPhoto(ctx, "places/p1/photos/a", 400)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.fetches)

	_, err = gw.FetchPhoto(ctx, "places/p1/photos/a", 800)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.fetches, "width is part of the key")

	places, err := gw.SearchText(ctx, "tea", models.LatLng{}, 100, 5)
	require.NoError(t, err)
	assert.Equal(t, "tea", places[0].Name)
	assert.Equal(t, "https://img.test/x", gw.PhotoDisplayURL("x", 800))
}

func TestPlaceGateway_DoesNotCacheFailures(t *testing.T) {
	inner := &countingPlaces{err: errors.New("boom")}
	store := newMemoryStore()
	gw := NewPlaceGateway(inner, store, arbor.NewLogger())

	_, err := gw.FetchPhoto(context.Background(), "ref", 400)
	require.Error(t, err)
	assert.Empty(t, store.photos)
}

func TestPlaceGateway_ReadErrorFallsThrough(t *testing.T) {
	inner := &countingPlaces{}
	store := newMemoryStore()
	store.readErr = errors.New("disk gone")
	gw := NewPlaceGateway(inner, store, arbor.NewLogger())

	photo, err := gw.FetchPhoto(context.Background(), "ref", 400)
	require.NoError(t, err)
	assert.Equal(t, []byte("ref"), photo.Data)
}

func TestClassifier_CachesByImageAndVibe(t *testing.T) {
	inner := &countingClassifier{}
	c := NewClassifier(inner, newMemoryStore(), arbor.NewLogger())
	ctx := context.Background()
	photo := &models.PhotoData{Data: []byte("jpeg-bytes")}

	a1, err := c.ScorePhoto(ctx, photo, []string{"candles"}, "dim bar")
	require.NoError(t, err)
	a2, err := c.ScorePhoto(ctx, photo, []string{"candles"}, "dim bar")
	require.NoError(t, err)
	assert.Equal(t, a1, a2)
	assert.Equal(t, 1, inner.scores)

	_, err = c.ScorePhoto(ctx, photo, []string{"neon"}, "dim bar")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.scores)

	interp, err := c.Interpret(ctx, "quiet")
	require.NoError(t, err)
	assert.Equal(t, "quiet", interp.VibeSummary)
}

func TestAnalysisKey(t *testing.T) {
	k := AnalysisKey([]byte("img"), []string{"Warm", "Soft"}, " Rainy Cafe ")
	assert.Equal(t, k, AnalysisKey([]byte("img"), []string{"warm", "soft"}, "rainy cafe"))
	assert.NotEqual(t, k, AnalysisKey([]byte("img2"), []string{"warm", "soft"}, "rainy cafe"))
	assert.NotEqual(t, k, AnalysisKey([]byte("img"), []string{"soft", "warm"}, "rainy cafe"))
	assert.Contains(t, k, "analysis:")
}

func TestScheduler_RunNowPurges(t *testing.T) {
	store := newMemoryStore()
	s := NewScheduler(store, arbor.NewLogger())

	s.RunNow()
	assert.Equal(t, 1, store.purged)

	require.NoError(t, s.Start("@every 1h"))
	s.Stop()
	assert.Error(t, NewScheduler(store, arbor.NewLogger()).Start("not a schedule"))
}
