package handlers

import (
	"context"

	"github.com/ternarybob/drift/internal/interfaces"
	"github.com/ternarybob/drift/internal/models"
	"github.com/ternarybob/drift/internal/services/drift"
)

// DiscoveryRunner runs the discovery pipeline onto a frame writer.
// Implemented by *drift.Pipeline.
type DiscoveryRunner interface {
	Run(ctx context.Context, body models.SearchRequestBody, w interfaces.FrameWriter) drift.Result
	Execute(ctx context.Context, req models.SearchRequest, w interfaces.FrameWriter) drift.Result
	DefaultRadius() int
}

// PhotoFetcher loads photo bytes for the proxy endpoint
type PhotoFetcher interface {
	FetchPhoto(ctx context.Context, photoRef string, maxWidthPx int) (*models.PhotoData, error)
}
