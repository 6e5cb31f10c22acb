package places

// searchTextRequest is the body of POST places:searchText
type searchTextRequest struct {
	TextQuery    string        `json:"textQuery"`
	LocationBias *locationBias `json:"locationBias,omitempty"`
	PageSize     int           `json:"pageSize,omitempty"`
	LanguageCode string        `json:"languageCode,omitempty"`
}

type locationBias struct {
	Circle circle `json:"circle"`
}

type circle struct {
	Center latLng  `json:"center"`
	Radius float64 `json:"radius"`
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// searchTextResponse represents the Places API (New) text search response
type searchTextResponse struct {
	Places []placeResult `json:"places"`
}

// placeResult is one place, limited to the fields in fieldMask
type placeResult struct {
	ID               string       `json:"id"`
	DisplayName      *localized   `json:"displayName,omitempty"`
	FormattedAddress string       `json:"formattedAddress,omitempty"`
	Location         *latLng      `json:"location,omitempty"`
	Types            []string     `json:"types,omitempty"`
	Rating           *float64     `json:"rating,omitempty"`
	UserRatingCount  *int         `json:"userRatingCount,omitempty"`
	PriceLevel       string       `json:"priceLevel,omitempty"`
	Photos           []photoEntry `json:"photos,omitempty"`
	WebsiteURI       string       `json:"websiteUri,omitempty"`
}

type localized struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode,omitempty"`
}

// photoEntry is a photo resource; Name is "places/{id}/photos/{ref}"
type photoEntry struct {
	Name     string `json:"name"`
	WidthPx  int    `json:"widthPx,omitempty"`
	HeightPx int    `json:"heightPx,omitempty"`
}

// photoMediaResponse is returned by the media endpoint with skipHttpRedirect=true
type photoMediaResponse struct {
	Name     string `json:"name"`
	PhotoURI string `json:"photoUri"`
}

// apiError is the Google API error envelope
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
