package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/drift/internal/common"
	"github.com/ternarybob/drift/internal/models"
)

const (
	fieldMask = "places.id,places.displayName,places.formattedAddress,places.location,places.types," +
		"places.rating,places.userRatingCount,places.priceLevel,places.photos,places.websiteUri"

	maxPhotoBytes = 10 * 1024 * 1024
	maxErrorBytes = 4 * 1024
)

// Service is the Google Places API (New) search gateway
type Service struct {
	config     *common.PlacesAPIConfig
	logger     arbor.ILogger
	apiKey     string
	baseURL    string
	proxyBase  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a Service
type Option func(*Service)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.httpClient = c }
}

// WithPhotoProxy makes PhotoDisplayURL point at this server's photo proxy
// instead of embedding the API key in browser-visible URLs.
func WithPhotoProxy(publicBase string) Option {
	return func(s *Service) { s.proxyBase = strings.TrimRight(publicBase, "/") }
}

// NewService creates a new Places service instance
func NewService(config *common.PlacesAPIConfig, logger arbor.ILogger, opts ...Option) (*Service, error) {
	apiKey, err := common.ResolveAPIKey("places_api_key", config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("places service requires an API key: %w", err)
	}

	limit := rate.Inf
	if interval := common.ParseDurationOr(config.RateLimit, 0); interval > 0 {
		limit = rate.Every(interval)
	}

	s := &Service{
		config:     config,
		logger:     logger,
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{Timeout: common.ParseDurationOr(config.RequestTimeout, 20*time.Second)},
		limiter:    rate.NewLimiter(limit, 4),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SearchText performs a text search biased to a circle around center
func (s *Service) SearchText(ctx context.Context, query string, center models.LatLng, radius int, pageSize int) ([]models.Place, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(searchTextRequest{
		TextQuery: query,
		LocationBias: &locationBias{Circle: circle{
			Center: latLng{Latitude: center.Latitude, Longitude: center.Longitude},
			Radius: float64(radius),
		}},
		PageSize:     pageSize,
		LanguageCode: s.config.LanguageCode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/places:searchText", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", s.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	s.logger.Debug().
		Str("query", query).
		Float64("latitude", center.Latitude).
		Float64("longitude", center.Longitude).
		Int("radius", radius).
		Msg("Calling Places searchText")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call Places API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}

	var apiResp searchTextResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode Places response: %w", err)
	}

	places := make([]models.Place, 0, len(apiResp.Places))
	for _, p := range apiResp.Places {
		if p.ID == "" {
			continue
		}
		places = append(places, convertPlace(p))
	}

	samplePlaces := []string{}
	for i, p := range places {
		if i == 3 {
			break
		}
		samplePlaces = append(samplePlaces, p.Name)
	}
	s.logger.Info().
		Str("query", query).
		Int("results_count", len(places)).
		Strs("sample_places", samplePlaces).
		Msg("Places searchText completed")

	return places, nil
}

// FetchPhoto resolves the photo media URI then downloads the image bytes
func (s *Service) FetchPhoto(ctx context.Context, photoRef string, maxWidthPx int) (*models.PhotoData, error) {
	if !models.ValidPhotoRef(photoRef) {
		return nil, fmt.Errorf("%w: %q", models.ErrInvalidPhotoRef, photoRef)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("maxWidthPx", fmt.Sprintf("%d", maxWidthPx))
	params.Set("skipHttpRedirect", "true")
	metaURL := fmt.Sprintf("%s/%s/media?%s", s.baseURL, photoRef, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build photo meta request: %w", err)
	}
	req.Header.Set("X-Goog-Api-Key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("photo meta request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("photo meta failed: %w", readAPIError(resp))
	}

	var meta photoMediaResponse
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to decode photo meta: %w", err)
	}
	if meta.PhotoURI == "" {
		return nil, fmt.Errorf("photo meta for %s has no photoUri", photoRef)
	}

	imgReq, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.PhotoURI, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build photo request: %w", err)
	}
	imgResp, err := s.httpClient.Do(imgReq)
	if err != nil {
		return nil, fmt.Errorf("photo fetch failed: %w", err)
	}
	defer imgResp.Body.Close()

	if imgResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("photo fetch failed: status %d", imgResp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(imgResp.Body, maxPhotoBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read photo: %w", err)
	}
	if len(data) > maxPhotoBytes {
		return nil, fmt.Errorf("photo exceeds %d bytes", maxPhotoBytes)
	}

	mimeType := imgResp.Header.Get("Content-Type")
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	s.logger.Debug().
		Str("photo_ref", photoRef).
		Int("bytes", len(data)).
		Str("mime_type", mimeType).
		Msg("Photo fetched")

	return &models.PhotoData{Data: data, MimeType: mimeType}, nil
}

// PhotoDisplayURL derives a browser-loadable photo URL. No network call.
func (s *Service) PhotoDisplayURL(photoRef string, maxWidthPx int) string {
	if photoRef == "" {
		return ""
	}
	if s.proxyBase != "" {
		params := url.Values{}
		params.Set("ref", photoRef)
		params.Set("maxWidthPx", fmt.Sprintf("%d", maxWidthPx))
		return fmt.Sprintf("%s/api/photos/media?%s", s.proxyBase, params.Encode())
	}
	return fmt.Sprintf("%s/%s/media?maxWidthPx=%d&key=%s", s.baseURL, photoRef, maxWidthPx, url.QueryEscape(s.apiKey))
}

func convertPlace(p placeResult) models.Place {
	place := models.Place{
		ID:              p.ID,
		Address:         p.FormattedAddress,
		Types:           p.Types,
		Rating:          p.Rating,
		UserRatingCount: p.UserRatingCount,
		PriceLevel:      p.PriceLevel,
		WebsiteURI:      p.WebsiteURI,
	}
	if p.DisplayName != nil {
		place.Name = p.DisplayName.Text
	}
	if p.Location != nil {
		place.Location = models.LatLng{Latitude: p.Location.Latitude, Longitude: p.Location.Longitude}
	}
	if place.Types == nil {
		place.Types = []string{}
	}
	if len(p.Photos) > 0 {
		place.PhotoRef = p.Photos[0].Name
	}
	return place
}

func readAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))

	var envelope apiError
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return fmt.Errorf("Places API %d %s: %s", resp.StatusCode, envelope.Error.Status, envelope.Error.Message)
	}
	return fmt.Errorf("Places API %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
