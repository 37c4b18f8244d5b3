// README: Place search around a trip destination via the Google Places text-search API.
package maps

import (
	"context"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"
)

const (
	DefaultPlaceQuery = "top attractions"
	minPlaceRating    = 4.0
	maxPlaces         = 5
)

// Place is one search hit.
type Place struct {
	Name             string  `json:"name"`
	Address          string  `json:"address"`
	Rating           float32 `json:"rating"`
	PlaceID          string  `json:"place_id"`
	UserRatingsTotal int     `json:"user_ratings_total"`
}

type placesClient interface {
	TextSearch(ctx context.Context, r *maps.TextSearchRequest) (maps.PlacesSearchResponse, error)
}

// PlaceFinder looks up well-rated places in a destination.
type PlaceFinder struct {
	client   placesClient
	language string
}

func NewPlaceFinder(apiKey string) (*PlaceFinder, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &PlaceFinder{client: client, language: "en"}, nil
}

// Search runs "<query> in <destination>" and keeps up to maxPlaces results rated 4.0 or better,
// skipping duplicates. An empty query means DefaultPlaceQuery.
func (f *PlaceFinder) Search(ctx context.Context, destination, query string) ([]Place, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return nil, ErrNoMatch
	}
	query = strings.TrimSpace(query)
	if query == "" {
		query = DefaultPlaceQuery
	}

	resp, err := f.client.TextSearch(ctx, &maps.TextSearchRequest{
		Query:    fmt.Sprintf("%s in %s", query, destination),
		Language: f.language,
	})
	if err != nil {
		return nil, fmt.Errorf("places api error: %w", err)
	}

	seen := make(map[string]struct{})
	places := []Place{}
	for _, r := range resp.Results {
		if r.Rating < minPlaceRating {
			continue
		}
		if _, dup := seen[r.PlaceID]; dup {
			continue
		}
		seen[r.PlaceID] = struct{}{}
		places = append(places, Place{
			Name:             r.Name,
			Address:          r.FormattedAddress,
			Rating:           r.Rating,
			PlaceID:          r.PlaceID,
			UserRatingsTotal: r.UserRatingsTotal,
		})
		if len(places) == maxPlaces {
			break
		}
	}
	return places, nil
}
