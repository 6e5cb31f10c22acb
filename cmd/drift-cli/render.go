package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ternarybob/drift/internal/client"
)

type format string

const (
	formatText format = "text"
	formatJSON format = "json"
	formatYAML format = "yaml"
)

func parseFormat(value string) (format, error) {
	switch f := format(strings.ToLower(strings.TrimSpace(value))); f {
	case formatText, formatJSON, formatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", value)
	}
}

// resultView is the machine-readable output of one discovery
type resultView struct {
	Vibe        string      `json:"vibe" yaml:"vibe"`
	MoodColor   string      `json:"mood_color" yaml:"mood_color"`
	TotalPlaces int         `json:"total_places" yaml:"total_places"`
	Places      []placeView `json:"places" yaml:"places"`
	Events      []eventView `json:"events,omitempty" yaml:"events,omitempty"`
}

type placeView struct {
	Rank        int         `json:"rank" yaml:"rank"`
	Name        string      `json:"name" yaml:"name"`
	Address     string      `json:"address" yaml:"address"`
	Score       int         `json:"score" yaml:"score"`
	Scored      bool        `json:"scored" yaml:"scored"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Standout    string      `json:"standout,omitempty" yaml:"standout,omitempty"`
	Matching    []string    `json:"matching,omitempty" yaml:"matching,omitempty"`
	Website     string      `json:"website,omitempty" yaml:"website,omitempty"`
	Photo       string      `json:"photo,omitempty" yaml:"photo,omitempty"`
	Events      []eventView `json:"events,omitempty" yaml:"events,omitempty"`
}

type eventView struct {
	Name  string `json:"name" yaml:"name"`
	Venue string `json:"venue" yaml:"venue"`
	Date  string `json:"date" yaml:"date"`
	URL   string `json:"url,omitempty" yaml:"url,omitempty"`
}

func buildView(s client.State) resultView {
	view := resultView{
		MoodColor:   s.MoodColor(),
		TotalPlaces: s.TotalPlaces,
	}
	if s.Interpretation != nil {
		view.Vibe = s.Interpretation.VibeSummary
	}

	for i, p := range s.Ranked() {
		pv := placeView{
			Rank:    i + 1,
			Name:    p.Name,
			Address: p.Address,
			Score:   p.Score(),
			Scored:  p.VibeAnalysis != nil,
			Website: p.WebsiteURI,
			Photo:   p.PhotoDisplayURL,
		}
		if p.VibeAnalysis != nil {
			pv.Description = p.VibeAnalysis.VibeDescription
			pv.Standout = p.VibeAnalysis.StandoutDetail
			pv.Matching = p.VibeAnalysis.MatchingElements
		}
		for _, e := range client.EventsForPlace(p, s.Events) {
			pv.Events = append(pv.Events, toEventView(e.Name, e.Venue, e.Date, e.URL))
		}
		view.Places = append(view.Places, pv)
	}

	for _, e := range s.Events {
		view.Events = append(view.Events, toEventView(e.Name, e.Venue, e.Date, e.URL))
	}
	return view
}

func toEventView(name, venue, date, url string) eventView {
	return eventView{Name: name, Venue: venue, Date: date, URL: url}
}

func render(w io.Writer, f format, s client.State) error {
	view := buildView(s)

	switch f {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(view)
	default:
		return renderText(w, view)
	}
}

func renderText(w io.Writer, view resultView) error {
	var sb strings.Builder
	if view.Vibe != "" {
		sb.WriteString(fmt.Sprintf("%s  %s\n\n", view.Vibe, view.MoodColor))
	}
	if len(view.Places) == 0 {
		sb.WriteString("No places found.\n")
	}

	for _, p := range view.Places {
		score := "  --"
		if p.Scored {
			score = fmt.Sprintf("%4d", p.Score)
		}
		sb.WriteString(fmt.Sprintf("%2d. [%s] %s\n", p.Rank, score, p.Name))
		if p.Address != "" {
			sb.WriteString(fmt.Sprintf("          %s\n", p.Address))
		}
		if p.Description != "" {
			sb.WriteString(fmt.Sprintf("          %s\n", p.Description))
		}
		if p.Standout != "" {
			sb.WriteString(fmt.Sprintf("          * %s\n", p.Standout))
		}
		for _, e := range p.Events {
			sb.WriteString(fmt.Sprintf("          live: %s (%s)\n", e.Name, e.Date))
		}
	}

	if len(view.Events) > 0 {
		sb.WriteString("\nHappening nearby:\n")
		for _, e := range view.Events {
			sb.WriteString(fmt.Sprintf("  - %s @ %s, %s\n", e.Name, e.Venue, e.Date))
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
