package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ternarybob/drift/internal/client"
	"github.com/ternarybob/drift/internal/models"
)

var searchCmd = &cobra.Command{
	Use:   "search [vibe]",
	Short: "Run one discovery and print the ranked places",
	Long:  `Streams a discovery from the server. Progress goes to stderr, results to stdout.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var (
	searchLat    float64
	searchLng    float64
	searchRadius int
	searchQuiet  bool
)

func init() {
	searchCmd.Flags().Float64Var(&searchLat, "lat", 0, "Latitude of the search center")
	searchCmd.Flags().Float64Var(&searchLng, "lng", 0, "Longitude of the search center")
	searchCmd.Flags().IntVar(&searchRadius, "radius", 0, "Search radius in meters (server default when 0)")
	searchCmd.Flags().BoolVarP(&searchQuiet, "quiet", "q", false, "Suppress progress output")
	_ = searchCmd.MarkFlagRequired("lat")
	_ = searchCmd.MarkFlagRequired("lng")
}

func runSearch(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(outputFormat)
	if err != nil {
		return err
	}

	body := models.SearchRequestBody{
		Query:     strings.Join(args, " "),
		Latitude:  &searchLat,
		Longitude: &searchLng,
	}
	if searchRadius > 0 {
		body.Radius = &searchRadius
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var progress io.Writer = cmd.ErrOrStderr()
	if searchQuiet {
		progress = io.Discard
	}
	tracker := &progressTracker{out: progress}

	session := client.NewSession(client.New(serverURL, nil), tracker.update)

	logger.Debug().
		Str("server", serverURL).
		Str("query", body.Query).
		Msg("Starting discovery")

	if err := session.Search(ctx, body); err != nil {
		logger.Error().Err(err).Msg("Discovery failed")
		return err
	}

	state := session.State()
	if ctx.Err() != nil {
		return context.Canceled
	}
	if state.Error != "" {
		return fmt.Errorf("discovery failed: %s", state.Error)
	}

	return render(cmd.OutOrStdout(), format, state)
}

// progressTracker prints one line per visible change
type progressTracker struct {
	out      io.Writer
	phase    client.Phase
	analyzed int
	events   int
}

func (p *progressTracker) update(s client.State) {
	if s.Phase != p.phase {
		p.phase = s.Phase
		switch s.Phase {
		case client.PhaseSearching:
			if s.Interpretation != nil {
				fmt.Fprintf(p.out, "vibe: %s (%s)\n", s.Interpretation.VibeSummary, s.MoodColor())
			}
		case client.PhaseAnalyzing:
			fmt.Fprintf(p.out, "found %d places, scoring photos...\n", len(s.Places))
		}
	}
	if n := s.Analyzed(); n != p.analyzed {
		p.analyzed = n
		fmt.Fprintf(p.out, "  scored %d/%d\n", n, len(s.Places))
	}
	if n := len(s.Events); n != p.events {
		p.events = n
		fmt.Fprintf(p.out, "found %d live events\n", n)
	}
}
