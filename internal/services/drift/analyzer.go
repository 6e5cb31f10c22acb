package drift

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/drift/internal/interfaces"
	"github.com/ternarybob/drift/internal/models"
)

// Outcome is the result of analyzing one place: an analysis or an error
type Outcome struct {
	PlaceID  string
	Analysis models.PhotoAnalysis
	Err      error
}

// OK reports whether the outcome carries an analysis
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Scheduler scores place photos in fixed-size concurrent batches
type Scheduler struct {
	places     interfaces.PlaceSearchGateway
	classifier interfaces.ClassifierGateway
	logger     arbor.ILogger
	batchSize  int
	photoWidth int
}

// NewScheduler creates a Scheduler
func NewScheduler(places interfaces.PlaceSearchGateway, classifier interfaces.ClassifierGateway, batchSize, photoWidth int, logger arbor.ILogger) *Scheduler {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Scheduler{
		places:     places,
		classifier: classifier,
		logger:     logger,
		batchSize:  batchSize,
		photoWidth: photoWidth,
	}
}

// AnalyzeAll streams one Outcome per photographed place as each completes.
// Places without a photo are skipped. A batch starts only after the previous
// one has fully resolved. The channel closes when all batches finish or ctx ends.
// Outcomes carry no cross-place ordering.
func (s *Scheduler) AnalyzeAll(ctx context.Context, places []models.Place, interp models.VibeInterpretation) <-chan Outcome {
	withPhotos := make([]models.Place, 0, len(places))
	for _, p := range places {
		if p.HasPhoto() {
			withPhotos = append(withPhotos, p)
		}
	}

	out := make(chan Outcome, s.batchSize)
	go func() {
		defer close(out)

		for start := 0; start < len(withPhotos); start += s.batchSize {
			if ctx.Err() != nil {
				return
			}
			end := start + s.batchSize
			if end > len(withPhotos) {
				end = len(withPhotos)
			}

			var wg sync.WaitGroup
			for _, place := range withPhotos[start:end] {
				wg.Add(1)
				go func(place models.Place) {
					defer wg.Done()
					o := s.analyzeOne(ctx, place, interp)
					select {
					case out <- o:
					case <-ctx.Done():
					}
				}(place)
			}
			wg.Wait()
		}
	}()
	return out
}

// analyzeOne fetches and scores one photo. Panics become failed outcomes.
func (s *Scheduler) analyzeOne(ctx context.Context, place models.Place, interp models.VibeInterpretation) (o Outcome) {
	o.PlaceID = place.ID
	defer func() {
		if r := recover(); r != nil {
			o.Err = fmt.Errorf("panic analyzing place %s: %v", place.ID, r)
		}
	}()

	photo, err := s.places.FetchPhoto(ctx, place.PhotoRef, s.photoWidth)
	if err != nil {
		o.Err = fmt.Errorf("photo fetch failed: %w", err)
		return o
	}

	analysis, err := s.classifier.ScorePhoto(ctx, photo, interp.VibeAttributes, interp.VibeSummary)
	if err != nil {
		o.Err = fmt.Errorf("photo scoring failed: %w", err)
		return o
	}

	o.Analysis = analysis
	return o
}
