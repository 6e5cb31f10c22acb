package interfaces

import (
	"context"

	"github.com/ternarybob/drift/internal/models"
	"github.com/ternarybob/drift/internal/stream"
)

// ClassifierGateway interprets a vibe and scores photos against it.
// Both calls are single-shot and stateless.
type ClassifierGateway interface {
	// Interpret turns free text into search phrases, visual attributes, a summary and a color
	Interpret(ctx context.Context, query string) (models.VibeInterpretation, error)

	// ScorePhoto rates an image 0..100 against the interpreted attributes and summary
	ScorePhoto(ctx context.Context, photo *models.PhotoData, attributes []string, summary string) (models.PhotoAnalysis, error)
}

// EventQuery is the input of a grounded event search
type EventQuery struct {
	VibeSummary string
	PlaceNames  []string
	Latitude    float64
	Longitude   float64
	MaxEvents   int
}

// EventSearchGateway finds live events near a location. Results are best-effort.
type EventSearchGateway interface {
	FindEvents(ctx context.Context, query EventQuery) ([]models.DriftEvent, error)
}

// PlaceSearchGateway searches a geospatial provider and serves place photos
type PlaceSearchGateway interface {
	// SearchText returns up to pageSize places for a text query biased to a circle
	SearchText(ctx context.Context, query string, center models.LatLng, radius int, pageSize int) ([]models.Place, error)

	// FetchPhoto downloads the bytes behind an opaque photo reference
	FetchPhoto(ctx context.Context, photoRef string, maxWidthPx int) (*models.PhotoData, error)

	// PhotoDisplayURL derives a directly displayable URL without a network call
	PhotoDisplayURL(photoRef string, maxWidthPx int) string
}

// FrameWriter delivers frames to one consumer. Implementations must be safe
// to call after the consumer has gone away.
type FrameWriter interface {
	WriteFrame(frame stream.Frame) error
}

// CacheStore persists fetched photos and photo analyses with expiry
type CacheStore interface {
	GetPhoto(ctx context.Context, key string) (*models.PhotoData, bool, error)
	PutPhoto(ctx context.Context, key string, photo *models.PhotoData) error
	GetAnalysis(ctx context.Context, key string) (*models.PhotoAnalysis, bool, error)
	PutAnalysis(ctx context.Context, key string, analysis models.PhotoAnalysis) error

	// Purge removes expired analyses and compacts storage, returning the number removed
	Purge(ctx context.Context) (int, error)
	Close() error
}
