package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createDiscoverPlacesTool returns the discover_places tool definition
func createDiscoverPlacesTool() mcp.Tool {
	return mcp.NewTool("discover_places",
		mcp.WithDescription("Find nearby places whose photos match a free-text vibe, ranked by vibe score, with live events at those venues"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The vibe, e.g. \"cozy bookshop with a cat\""),
		),
		mcp.WithNumber("latitude",
			mcp.Required(),
			mcp.Description("Latitude of the search center (-90..90)"),
		),
		mcp.WithNumber("longitude",
			mcp.Required(),
			mcp.Description("Longitude of the search center (-180..180)"),
		),
		mcp.WithNumber("radius",
			mcp.Description("Search radius in meters (default: 5000)"),
		),
	)
}
