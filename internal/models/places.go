package models

import (
	"errors"
	"regexp"
)

// ErrInvalidPhotoRef marks a photo reference that is not a Places photo resource name
var ErrInvalidPhotoRef = errors.New("invalid photo reference")

var photoRefPattern = regexp.MustCompile(`^places/[^/?#]+/photos/[^/?#]+$`)

// ValidPhotoRef reports whether ref has the form places/{place}/photos/{photo}
func ValidPhotoRef(ref string) bool {
	return photoRefPattern.MatchString(ref)
}

// LatLng is a WGS84 coordinate pair
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Place is one discovered venue. ID is the dedup key across search queries.
// PhotoRef is the provider's opaque photo name; VibeAnalysis is attached later by ID.
type Place struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Address         string         `json:"address"`
	Location        LatLng         `json:"location"`
	Types           []string       `json:"types"`
	Rating          *float64       `json:"rating,omitempty"`
	UserRatingCount *int           `json:"userRatingCount,omitempty"`
	PriceLevel      string         `json:"priceLevel,omitempty"`
	PhotoRef        string         `json:"photoName,omitempty"`
	PhotoDisplayURL string         `json:"photoUri,omitempty"`
	WebsiteURI      string         `json:"websiteUri,omitempty"`
	VibeAnalysis    *PhotoAnalysis `json:"vibeAnalysis,omitempty"`
}

// HasPhoto reports whether the place can be photo-scored
func (p Place) HasPhoto() bool {
	return p.PhotoRef != ""
}

// Score returns the analysis score, or 0 when unscored
func (p Place) Score() int {
	if p.VibeAnalysis == nil {
		return 0
	}
	return p.VibeAnalysis.VibeScore
}

// PhotoData is a fetched image ready for scoring
type PhotoData struct {
	Data     []byte
	MimeType string
}
