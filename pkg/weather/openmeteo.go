package weather

import (
	"context"
	"net/url"
	"strconv"

	"github.com/meshwx/weather-proxy/pkg/upstream"
)

// CurrentConditions is the reference reading fetched from Open-Meteo.
// Fields are pointers; the provider may omit any of them.
type CurrentConditions struct {
	Temperature      *float64 `json:"temperature_2m"`
	RelativeHumidity *float64 `json:"relative_humidity_2m"`
	SurfacePressure  *float64 `json:"surface_pressure"`
}

// Meteo fetches current conditions from an Open-Meteo compatible API.
type Meteo struct {
	client *upstream.Client
}

// NewMeteo creates a Meteo over the given upstream client.
func NewMeteo(client *upstream.Client) *Meteo {
	return &Meteo{client: client}
}

// FetchCurrent fetches current temperature, humidity, and pressure for
// the given coordinates, validated at the parse boundary.
func (m *Meteo) FetchCurrent(ctx context.Context, lat, lon float64) (*CurrentConditions, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("current", "temperature_2m,relative_humidity_2m,surface_pressure")

	var payload struct {
		Current CurrentConditions `json:"current"`
	}
	if err := m.client.FetchJSON(ctx, params, &payload); err != nil {
		return nil, err
	}

	return &payload.Current, nil
}
