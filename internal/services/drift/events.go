package drift

import (
	"context"

	"github.com/ternarybob/drift/internal/interfaces"
	"github.com/ternarybob/drift/internal/models"
)

// EventFinder asks the grounded search gateway for live events near the request
type EventFinder struct {
	gateway    interfaces.EventSearchGateway
	maxEvents  int
	placeNames int
}

// NewEventFinder creates an EventFinder
func NewEventFinder(gateway interfaces.EventSearchGateway, maxEvents, placeNames int) *EventFinder {
	return &EventFinder{gateway: gateway, maxEvents: maxEvents, placeNames: placeNames}
}

// Find runs a single best-effort lookup. At most maxEvents are returned.
func (f *EventFinder) Find(ctx context.Context, summary string, places []models.Place, center models.LatLng) ([]models.DriftEvent, error) {
	names := make([]string, 0, f.placeNames)
	for _, p := range places {
		if len(names) == f.placeNames {
			break
		}
		if p.Name != "" {
			names = append(names, p.Name)
		}
	}

	events, err := f.gateway.FindEvents(ctx, interfaces.EventQuery{
		VibeSummary: summary,
		PlaceNames:  names,
		Latitude:    center.Latitude,
		Longitude:   center.Longitude,
		MaxEvents:   f.maxEvents,
	})
	if err != nil {
		return nil, err
	}
	if len(events) > f.maxEvents {
		events = events[:f.maxEvents]
	}
	return events, nil
}
