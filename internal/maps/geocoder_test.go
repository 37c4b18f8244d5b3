package maps

import (
	"context"
	"errors"
	"testing"

	"googlemaps.github.io/maps"
)

type stubGeocodeClient struct {
	results []maps.GeocodingResult
	err     error
	got     *maps.GeocodingRequest
}

func (s *stubGeocodeClient) Geocode(_ context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error) {
	s.got = r
	return s.results, s.err
}

func TestLocatePicksFirstResult(t *testing.T) {
	stub := &stubGeocodeClient{results: []maps.GeocodingResult{
		{
			FormattedAddress: "Tokyo, Japan",
			PlaceID:          "ChIJ51cu8IcbXWARiRtXIothAS4",
			Geometry:         maps.AddressGeometry{Location: maps.LatLng{Lat: 35.6764, Lng: 139.65}},
		},
		{FormattedAddress: "Tokyo, Other"},
	}}
	g := &Geocoder{client: stub, language: "en"}

	loc, err := g.Locate(context.Background(), "  Tokyo, Japan ")
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if stub.got.Address != "Tokyo, Japan" {
		t.Errorf("request address = %q", stub.got.Address)
	}
	if loc.FormattedAddress != "Tokyo, Japan" || loc.Lat != 35.6764 || loc.Lng != 139.65 || loc.PlaceID == "" || loc.Query != "Tokyo, Japan" {
		t.Fatalf("location = %+v", loc)
	}
}

func TestLocateErrors(t *testing.T) {
	g := &Geocoder{client: &stubGeocodeClient{}}
	if _, err := g.Locate(context.Background(), " "); !errors.Is(err, ErrNoMatch) {
		t.Errorf("blank destination err = %v", err)
	}
	if _, err := g.Locate(context.Background(), "Atlantis"); !errors.Is(err, ErrNoMatch) {
		t.Errorf("no results err = %v", err)
	}
	g = &Geocoder{client: &stubGeocodeClient{err: errors.New("OVER_QUERY_LIMIT")}}
	if _, err := g.Locate(context.Background(), "Paris"); err == nil || errors.Is(err, ErrNoMatch) {
		t.Errorf("api failure err = %v", err)
	}
}
