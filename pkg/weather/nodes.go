// Package weather holds the typed domain payloads of the proxy: the
// Meshtastic node feed, distance and best-match selection, and the
// Open-Meteo reference conditions used to sanity-check node sensors.
package weather

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/meshwx/weather-proxy/pkg/upstream"
)

const earthRadiusKM = 6371

// Node is a single entry of the node feed. Sensor fields are pointers
// because nodes report only the hardware they have.
type Node struct {
	LongName           string   `json:"long_name"`
	ShortName          string   `json:"short_name"`
	Latitude           *float64 `json:"latitude"`
	Longitude          *float64 `json:"longitude"`
	Temperature        *float64 `json:"temperature"`
	RelativeHumidity   *float64 `json:"relative_humidity"`
	BarometricPressure *float64 `json:"barometric_pressure"`
	UpdatedAt          string   `json:"updated_at"`
}

// DisplayName returns the node's long name, falling back to the short
// name, falling back to "unknown".
func (n Node) DisplayName() string {
	if n.LongName != "" {
		return n.LongName
	}
	if n.ShortName != "" {
		return n.ShortName
	}
	return "unknown"
}

// HasCoordinates reports whether the node has a position.
func (n Node) HasCoordinates() bool {
	return n.Latitude != nil && n.Longitude != nil
}

// HasReadings reports whether the node has a position and a complete
// set of sensor readings.
func (n Node) HasReadings() bool {
	return n.HasCoordinates() &&
		n.Temperature != nil &&
		n.RelativeHumidity != nil &&
		n.BarometricPressure != nil
}

// ParseNodes decodes a node feed payload. A body that does not decode
// yields an upstream parse error.
func ParseNodes(data []byte) ([]Node, error) {
	var nodes []Node
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, &upstream.Error{Kind: upstream.KindParse, Message: "decode node feed", Err: err}
	}
	return nodes, nil
}

// Distance returns the haversine distance in kilometers between two
// coordinate pairs.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Pow(math.Sin(dLon/2), 2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKM * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Match is a selected node with its selection criteria.
type Match struct {
	Node       Node
	DistanceKM float64

	// TempDiff is the absolute deviation from the reference temperature;
	// nil when no reference was available.
	TempDiff *float64
}

// Nearest returns the closest node that has coordinates.
func Nearest(lat, lon float64, nodes []Node) (Match, bool) {
	best := Match{DistanceKM: math.Inf(1)}
	found := false

	for _, node := range nodes {
		if !node.HasCoordinates() {
			continue
		}
		d := Distance(lat, lon, *node.Latitude, *node.Longitude)
		if d < best.DistanceKM {
			best = Match{Node: node, DistanceKM: d}
			found = true
		}
	}

	return best, found
}

// tempMatchThreshold is the maximum deviation in degrees Celsius for a
// node reading to count as agreeing with the reference temperature.
const tempMatchThreshold = 2.0

// BestMatch selects the node whose sensors best represent the given
// position, cross-checked against a reference temperature when one is
// available:
//
//   - only nodes with a full set of readings are candidates
//   - with a reference: nodes within the match threshold win by shortest
//     distance; when none agree, smallest deviation then distance
//   - without a reference: plain shortest distance
func BestMatch(lat, lon float64, nodes []Node, refTemp *float64) (Match, bool) {
	var candidates []Match
	for _, node := range nodes {
		if !node.HasReadings() {
			continue
		}

		m := Match{
			Node:       node,
			DistanceKM: Distance(lat, lon, *node.Latitude, *node.Longitude),
		}
		if refTemp != nil {
			diff := math.Abs(*node.Temperature - *refTemp)
			m.TempDiff = &diff
		}
		candidates = append(candidates, m)
	}

	if len(candidates) == 0 {
		return Match{}, false
	}

	if refTemp == nil {
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].DistanceKM < candidates[j].DistanceKM
		})
		return candidates[0], true
	}

	var matching []Match
	for _, c := range candidates {
		if *c.TempDiff <= tempMatchThreshold {
			matching = append(matching, c)
		}
	}

	if len(matching) > 0 {
		sort.Slice(matching, func(i, j int) bool {
			return matching[i].DistanceKM < matching[j].DistanceKM
		})
		return matching[0], true
	}

	sort.Slice(candidates, func(i, j int) bool {
		if *candidates[i].TempDiff != *candidates[j].TempDiff {
			return *candidates[i].TempDiff < *candidates[j].TempDiff
		}
		return candidates[i].DistanceKM < candidates[j].DistanceKM
	})
	return candidates[0], true
}
