// Package overpass is a place search gateway over OpenStreetMap's Overpass API.
// It has no photos, so places it returns are never photo-scored.
package overpass

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/serjvanilla/go-overpass"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/drift/internal/common"
	"github.com/ternarybob/drift/internal/models"
)

// ErrNoPhotos is returned by FetchPhoto; OSM carries no place photos
var ErrNoPhotos = fmt.Errorf("overpass places have no photos")

// Querier runs an Overpass QL query
type Querier interface {
	Query(query string) (overpass.Result, error)
}

// Service implements the place search gateway over Overpass
type Service struct {
	client  Querier
	limiter *rate.Limiter
	logger  arbor.ILogger
}

// NewService creates an Overpass gateway from config
func NewService(config *common.OverpassConfig, logger arbor.ILogger) *Service {
	httpClient := &http.Client{Timeout: common.ParseDurationOr(config.RequestTimeout, 25*time.Second)}
	client := overpass.NewWithSettings(config.Endpoint, config.MaxParallel, httpClient)
	return NewServiceWithClient(&client, common.ParseDurationOr(config.RateLimit, 0), logger)
}

// NewServiceWithClient creates a gateway over an existing querier
func NewServiceWithClient(client Querier, interval time.Duration, logger arbor.ILogger) *Service {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Service{
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// SearchText maps the query onto OSM tags and searches around center
func (s *Service) SearchText(ctx context.Context, query string, center models.LatLng, radius int, pageSize int) ([]models.Place, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	ql := BuildQuery(query, center, radius)
	s.logger.Debug().Str("query", query).Str("overpass_ql", ql).Msg("Calling Overpass")

	type queryResult struct {
		result overpass.Result
		err    error
	}
	done := make(chan queryResult, 1)
	go func() {
		r, err := s.client.Query(ql)
		done <- queryResult{r, err}
	}()

	var res queryResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return nil, fmt.Errorf("overpass query failed: %w", res.err)
	}

	places := convertResult(res.result, center)
	if pageSize > 0 && len(places) > pageSize {
		places = places[:pageSize]
	}

	s.logger.Info().
		Str("query", query).
		Int("results_count", len(places)).
		Msg("Overpass search completed")

	return places, nil
}

// FetchPhoto always fails; OSM places carry no photo reference
func (s *Service) FetchPhoto(ctx context.Context, photoRef string, maxWidthPx int) (*models.PhotoData, error) {
	return nil, ErrNoPhotos
}

// PhotoDisplayURL is always empty for OSM places
func (s *Service) PhotoDisplayURL(photoRef string, maxWidthPx int) string {
	return ""
}

// tagFilter is one OSM key/value-regex pair
type tagFilter struct {
	key   string
	value string
}

// keywordTags maps query words onto OSM tags
var keywordTags = map[string]tagFilter{
	"cafe":       {"amenity", "cafe"},
	"coffee":     {"amenity", "cafe"},
	"espresso":   {"amenity", "cafe"},
	"tea":        {"amenity", "cafe"},
	"bar":        {"amenity", "bar|pub"},
	"pub":        {"amenity", "pub|bar"},
	"cocktail":   {"amenity", "bar"},
	"wine":       {"amenity", "bar"},
	"beer":       {"amenity", "pub|biergarten"},
	"restaurant": {"amenity", "restaurant"},
	"dinner":     {"amenity", "restaurant"},
	"food":       {"amenity", "restaurant|fast_food"},
	"bakery":     {"shop", "bakery|pastry"},
	"pastry":     {"shop", "pastry|bakery"},
	"book":       {"shop", "books"},
	"bookstore":  {"shop", "books"},
	"library":    {"amenity", "library"},
	"park":       {"leisure", "park|garden"},
	"garden":     {"leisure", "garden|park"},
	"museum":     {"tourism", "museum"},
	"gallery":    {"tourism", "gallery"},
	"art":        {"tourism", "gallery|artwork"},
	"spa":        {"leisure", "spa|sauna"},
	"club":       {"amenity", "nightclub"},
	"nightclub":  {"amenity", "nightclub"},
	"dance":      {"amenity", "nightclub"},
	"cinema":     {"amenity", "cinema"},
	"movie":      {"amenity", "cinema"},
	"bowling":    {"leisure", "bowling_alley"},
	"gym":        {"leisure", "fitness_centre"},
	"clothing":   {"shop", "clothes"},
	"vintage":    {"shop", "second_hand|clothes"},
	"music":      {"amenity", "music_venue|bar"},
	"jazz":       {"amenity", "bar|music_venue"},
}

var wordPattern = regexp.MustCompile(`[a-z]+`)

// BuildQuery renders Overpass QL for a text query. Known keywords become tag
// filters; otherwise the words are matched against the name tag.
func BuildQuery(query string, center models.LatLng, radius int) string {
	words := wordPattern.FindAllString(strings.ToLower(query), -1)

	seen := map[tagFilter]bool{}
	filters := []tagFilter{}
	for _, w := range words {
		key := strings.TrimSuffix(w, "s")
		f, ok := keywordTags[w]
		if !ok {
			f, ok = keywordTags[key]
		}
		if ok && !seen[f] {
			seen[f] = true
			filters = append(filters, f)
		}
	}

	around := fmt.Sprintf("(around:%d,%s,%s)", radius,
		strconv.FormatFloat(center.Latitude, 'f', 6, 64),
		strconv.FormatFloat(center.Longitude, 'f', 6, 64))

	var b strings.Builder
	b.WriteString("[out:json][timeout:25];\n(\n")
	if len(filters) == 0 {
		nameRe := regexp.QuoteMeta(strings.Join(words, " "))
		if nameRe == "" {
			nameRe = "."
		}
		fmt.Fprintf(&b, "  node[\"name\"~\"%s\",i]%s;\n", nameRe, around)
		fmt.Fprintf(&b, "  way[\"name\"~\"%s\",i]%s;\n", nameRe, around)
	} else {
		for _, f := range filters {
			fmt.Fprintf(&b, "  node[\"%s\"~\"^(%s)$\"][\"name\"]%s;\n", f.key, f.value, around)
			fmt.Fprintf(&b, "  way[\"%s\"~\"^(%s)$\"][\"name\"]%s;\n", f.key, f.value, around)
		}
	}
	b.WriteString(");\nout body;\n>;\nout skel qt;\n")
	return b.String()
}

// convertResult turns named nodes and ways into places sorted by distance
func convertResult(result overpass.Result, center models.LatLng) []models.Place {
	places := []models.Place{}

	for _, node := range result.Nodes {
		if node == nil || node.Tags["name"] == "" {
			continue
		}
		places = append(places, placeFromTags(fmt.Sprintf("osm:node/%d", node.ID), node.Tags, models.LatLng{
			Latitude:  node.Lat,
			Longitude: node.Lon,
		}))
	}

	for _, way := range result.Ways {
		if way == nil || way.Tags["name"] == "" {
			continue
		}
		var lat, lon float64
		count := 0
		for _, n := range way.Nodes {
			if n == nil {
				continue
			}
			lat += n.Lat
			lon += n.Lon
			count++
		}
		if count > 0 {
			lat /= float64(count)
			lon /= float64(count)
		} else if way.Bounds != nil {
			lat = (way.Bounds.Min.Lat + way.Bounds.Max.Lat) / 2
			lon = (way.Bounds.Min.Lon + way.Bounds.Max.Lon) / 2
		}
		places = append(places, placeFromTags(fmt.Sprintf("osm:way/%d", way.ID), way.Tags, models.LatLng{
			Latitude:  lat,
			Longitude: lon,
		}))
	}

	sort.SliceStable(places, func(i, j int) bool {
		di := distanceMeters(center, places[i].Location)
		dj := distanceMeters(center, places[j].Location)
		if di != dj {
			return di < dj
		}
		return places[i].ID < places[j].ID
	})
	return places
}

func placeFromTags(id string, tags map[string]string, loc models.LatLng) models.Place {
	types := []string{}
	for _, key := range []string{"amenity", "shop", "leisure", "tourism"} {
		if v := tags[key]; v != "" {
			types = append(types, v)
		}
	}

	addr := strings.TrimSpace(strings.Join(nonEmpty(
		strings.TrimSpace(tags["addr:housenumber"]+" "+tags["addr:street"]),
		tags["addr:city"],
	), ", "))

	return models.Place{
		ID:         id,
		Name:       tags["name"],
		Address:    addr,
		Location:   loc,
		Types:      types,
		WebsiteURI: tags["website"],
	}
}

func nonEmpty(values ...string) []string {
	out := []string{}
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// distanceMeters is the haversine distance between two points
func distanceMeters(a, b models.LatLng) float64 {
	const earthRadius = 6371000.0
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(b.Latitude - a.Latitude)
	dLon := toRad(b.Longitude - a.Longitude)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Latitude))*math.Cos(toRad(b.Latitude))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadius * math.Asin(math.Sqrt(h))
}
