// README: Destination geocoding via the Google Maps Geocoding API.
package maps

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"
)

// ErrNoMatch is returned when the geocoder has no result for a destination.
var ErrNoMatch = errors.New("destination not found")

// Location is the resolved position of a trip plan's destination.
type Location struct {
	Query            string  `json:"query"`
	FormattedAddress string  `json:"formatted_address"`
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
	PlaceID          string  `json:"place_id"`
}

// geocodeClient is the slice of *maps.Client the Geocoder needs.
type geocodeClient interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// Geocoder resolves free-form destinations ("Tokyo, Japan") via the Google Geocoding API.
type Geocoder struct {
	client   geocodeClient
	language string
}

// NewGeocoder creates a Geocoder with the given API Key.
func NewGeocoder(apiKey string) (*Geocoder, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &Geocoder{client: client, language: "en"}, nil
}

// Locate returns the best match for destination.
func (g *Geocoder) Locate(ctx context.Context, destination string) (*Location, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return nil, ErrNoMatch
	}
	results, err := g.client.Geocode(ctx, &maps.GeocodingRequest{
		Address:  destination,
		Language: g.language,
	})
	if err != nil {
		return nil, fmt.Errorf("geocoding api error: %w", err)
	}
	if len(results) == 0 {
		return nil, ErrNoMatch
	}
	best := results[0]
	return &Location{
		Query:            destination,
		FormattedAddress: best.FormattedAddress,
		Lat:              best.Geometry.Location.Lat,
		Lng:              best.Geometry.Location.Lng,
		PlaceID:          best.PlaceID,
	}, nil
}
