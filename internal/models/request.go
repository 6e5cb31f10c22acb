package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRequest marks a search request rejected before any phase runs
var ErrInvalidRequest = errors.New("invalid search request")

// DefaultRadius is used when a request omits radius (meters)
const DefaultRadius = 5000

// SearchRequestBody is the JSON body posted by clients.
// Coordinates are pointers so a missing field is distinguishable from 0.
type SearchRequestBody struct {
	Query     string   `json:"query" validate:"required"`
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	Radius    *int     `json:"radius,omitempty" validate:"omitempty,gte=1,lte=50000"`
}

// SearchRequest is a validated, immutable discovery request
type SearchRequest struct {
	Query     string  `json:"query"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Radius    int     `json:"radius"`
}

var validate = validator.New()

// Validate trims the query, checks field presence and ranges, and returns the
// immutable request. Errors wrap ErrInvalidRequest.
func (b SearchRequestBody) Validate(defaultRadius int) (SearchRequest, error) {
	b.Query = strings.TrimSpace(b.Query)

	if err := validate.Struct(b); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return SearchRequest{}, fmt.Errorf("%w: %s", ErrInvalidRequest, describeFieldErrors(fieldErrs))
		}
		return SearchRequest{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if defaultRadius <= 0 {
		defaultRadius = DefaultRadius
	}
	radius := defaultRadius
	if b.Radius != nil {
		radius = *b.Radius
	}

	return SearchRequest{
		Query:     b.Query,
		Latitude:  *b.Latitude,
		Longitude: *b.Longitude,
		Radius:    radius,
	}, nil
}

// Center returns the request location
func (r SearchRequest) Center() LatLng {
	return LatLng{Latitude: r.Latitude, Longitude: r.Longitude}
}

func describeFieldErrors(errs validator.ValidationErrors) string {
	missing := []string{}
	invalid := []string{}
	for _, fe := range errs {
		name := strings.ToLower(fe.Field())
		if fe.Tag() == "required" {
			missing = append(missing, name)
		} else {
			invalid = append(invalid, fmt.Sprintf("%s out of range", name))
		}
	}

	parts := []string{}
	if len(missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(missing, ", "))
	}
	parts = append(parts, invalid...)
	return strings.Join(parts, "; ")
}
