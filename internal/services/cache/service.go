// Package cache wraps the photo and scoring gateways with a persistent cache
// so repeated discoveries over the same places skip refetching and rescoring.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/drift/internal/interfaces"
	"github.com/ternarybob/drift/internal/models"
)

// PlaceGateway caches FetchPhoto results. Searches always go to the provider.
type PlaceGateway struct {
	interfaces.PlaceSearchGateway
	store  interfaces.CacheStore
	logger arbor.ILogger
}

// NewPlaceGateway wraps inner with a photo cache
func NewPlaceGateway(inner interfaces.PlaceSearchGateway, store interfaces.CacheStore, logger arbor.ILogger) *PlaceGateway {
	return &PlaceGateway{PlaceSearchGateway: inner, store: store, logger: logger}
}

// FetchPhoto serves from cache when possible and fills it on a miss.
// Cache errors never fail the fetch.
func (g *PlaceGateway) FetchPhoto(ctx context.Context, photoRef string, maxWidthPx int) (*models.PhotoData, error) {
	key := photoRef + "@" + strconv.Itoa(maxWidthPx)

	if photo, ok, err := g.store.GetPhoto(ctx, key); err != nil {
		g.logger.Warn().Err(err).Msg("Photo cache read failed")
	} else if ok {
		return photo, nil
	}

	photo, err := g.PlaceSearchGateway.FetchPhoto(ctx, photoRef, maxWidthPx)
	if err != nil {
		return nil, err
	}

	if err := g.store.PutPhoto(ctx, key, photo); err != nil {
		g.logger.Warn().Err(err).Msg("Photo cache write failed")
	}
	return photo, nil
}

// Classifier caches ScorePhoto results keyed by image and vibe
type Classifier struct {
	interfaces.ClassifierGateway
	store  interfaces.CacheStore
	logger arbor.ILogger
}

// NewClassifier wraps inner with an analysis cache
func NewClassifier(inner interfaces.ClassifierGateway, store interfaces.CacheStore, logger arbor.ILogger) *Classifier {
	return &Classifier{ClassifierGateway: inner, store: store, logger: logger}
}

// ScorePhoto serves from cache when the same image was scored against the same vibe
func (c *Classifier) ScorePhoto(ctx context.Context, photo *models.PhotoData, attributes []string, summary string) (models.PhotoAnalysis, error) {
	if photo == nil {
		return c.ClassifierGateway.ScorePhoto(ctx, photo, attributes, summary)
	}
	key := AnalysisKey(photo.Data, attributes, summary)

	if analysis, ok, err := c.store.GetAnalysis(ctx, key); err != nil {
		c.logger.Warn().Err(err).Msg("Analysis cache read failed")
	} else if ok {
		return *analysis, nil
	}

	analysis, err := c.ClassifierGateway.ScorePhoto(ctx, photo, attributes, summary)
	if err != nil {
		return models.PhotoAnalysis{}, err
	}

	if err := c.store.PutAnalysis(ctx, key, analysis); err != nil {
		c.logger.Warn().Err(err).Msg("Analysis cache write failed")
	}
	return analysis, nil
}

// AnalysisKey hashes the image bytes together with the vibe it is scored against
func AnalysisKey(image []byte, attributes []string, summary string) string {
	h := sha256.New()
	h.Write(image)
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(strings.Join(attributes, "\x1f"))))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(strings.TrimSpace(summary))))
	return "analysis:" + hex.EncodeToString(h.Sum(nil))
}
