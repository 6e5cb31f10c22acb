package drift

import (
	"context"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/drift/internal/interfaces"
	"github.com/ternarybob/drift/internal/models"
)

// Aggregator fans search queries out concurrently and merges the results
type Aggregator struct {
	places       interfaces.PlaceSearchGateway
	logger       arbor.ILogger
	maxPlaces    int
	pageSize     int
	displayWidth int
}

// NewAggregator creates an Aggregator
func NewAggregator(places interfaces.PlaceSearchGateway, maxPlaces, pageSize, displayWidth int, logger arbor.ILogger) *Aggregator {
	return &Aggregator{
		places:       places,
		logger:       logger,
		maxPlaces:    maxPlaces,
		pageSize:     pageSize,
		displayWidth: displayWidth,
	}
}

// Aggregate runs every query concurrently. A failed query contributes nothing.
// Results merge in query order, first-seen ID wins, and merging stops at the cap.
// Kept places with a photo get a derived display URL.
func (a *Aggregator) Aggregate(ctx context.Context, queries []string, center models.LatLng, radius int) []models.Place {
	results := make([][]models.Place, len(queries))

	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					a.logger.Error().Str("query", q).Str("panic", toString(r)).Msg("Search query panicked")
				}
			}()

			places, err := a.places.SearchText(ctx, q, center, radius, a.pageSize)
			if err != nil {
				a.logger.Warn().Err(err).Str("query", q).Msg("Search query failed, skipping")
				return
			}
			results[i] = places
		}(i, q)
	}
	wg.Wait()

	return a.merge(results)
}

func (a *Aggregator) merge(results [][]models.Place) []models.Place {
	merged := make([]models.Place, 0, a.maxPlaces)
	seen := make(map[string]struct{}, a.maxPlaces)

	for _, batch := range results {
		for _, place := range batch {
			if len(merged) >= a.maxPlaces {
				return merged
			}
			if place.ID == "" {
				continue
			}
			if _, dup := seen[place.ID]; dup {
				continue
			}
			seen[place.ID] = struct{}{}

			if place.HasPhoto() && place.PhotoDisplayURL == "" {
				place.PhotoDisplayURL = a.places.PhotoDisplayURL(place.PhotoRef, a.displayWidth)
			}
			merged = append(merged, place)
		}
	}
	return merged
}
