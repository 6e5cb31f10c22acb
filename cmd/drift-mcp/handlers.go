package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/drift/internal/client"
	"github.com/ternarybob/drift/internal/interfaces"
	"github.com/ternarybob/drift/internal/models"
	"github.com/ternarybob/drift/internal/services/drift"
	"github.com/ternarybob/drift/internal/stream"
)

// discoveryRunner runs one discovery into a frame writer
type discoveryRunner interface {
	Run(ctx context.Context, body models.SearchRequestBody, w interfaces.FrameWriter) drift.Result
}

// handleDiscoverPlaces implements the discover_places tool
func handleDiscoverPlaces(runner discoveryRunner, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || query == "" {
			return textResult("Error: query parameter is required"), nil
		}
		lat, err := request.RequireFloat("latitude")
		if err != nil {
			return textResult("Error: latitude parameter is required"), nil
		}
		lng, err := request.RequireFloat("longitude")
		if err != nil {
			return textResult("Error: longitude parameter is required"), nil
		}

		body := models.SearchRequestBody{
			Query:     query,
			Latitude:  &lat,
			Longitude: &lng,
		}
		if radius := request.GetInt("radius", 0); radius > 0 {
			body.Radius = &radius
		}

		// Frames are folded exactly as a streaming client would see them
		state := client.Started()
		result := runner.Run(ctx, body, stream.FuncWriter(func(f stream.Frame) error {
			state = client.Reduce(state, f)
			return nil
		}))

		if state.Error != "" {
			logger.Warn().
				Str("request_id", result.RequestID).
				Str("phase", string(result.FailedPhase)).
				Str("error", state.Error).
				Msg("Discovery failed")
			return textResult(fmt.Sprintf("Discovery failed: %s", state.Error)), nil
		}

		return textResult(formatDiscovery(query, state)), nil
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}
