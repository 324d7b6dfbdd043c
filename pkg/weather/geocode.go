package weather

import (
	"fmt"

	"github.com/kelvins/geocoder"
)

// Geocoder resolves a city name to coordinates. The /api endpoint only
// accepts city lookups when a geocoder is configured; coordinates always
// work without one.
type Geocoder interface {
	Lookup(city string) (lat, lon float64, err error)
}

// GoogleGeocoder resolves cities through the Google Geocoding API.
type GoogleGeocoder struct{}

// NewGoogleGeocoder configures the geocoding API key and returns a
// ready-to-use geocoder.
func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	geocoder.ApiKey = apiKey
	return &GoogleGeocoder{}
}

// Lookup resolves a city name to coordinates.
func (g *GoogleGeocoder) Lookup(city string) (float64, float64, error) {
	location, err := geocoder.Geocoding(geocoder.Address{City: city})
	if err != nil {
		return 0, 0, fmt.Errorf("geocode %q: %w", city, err)
	}
	return location.Latitude, location.Longitude, nil
}
