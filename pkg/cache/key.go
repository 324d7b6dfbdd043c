package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key represents a unique identifier for a cached upstream response.
type Key struct {
	// Path is the inbound route path (e.g., "/weather")
	Path string

	// Params are the canonicalized query parameters
	Params url.Values
}

// Canonicalize normalizes query parameters into their canonical form:
// keys and values are trimmed of surrounding whitespace and case-folded,
// and multiple values per key are sorted. The result is stable under
// repeated application, so canonical params canonicalize to themselves.
func Canonicalize(params url.Values) url.Values {
	out := make(url.Values, len(params))
	for key, values := range params {
		normKey := strings.ToLower(strings.TrimSpace(key))
		for _, value := range values {
			out.Add(normKey, strings.ToLower(strings.TrimSpace(value)))
		}
	}
	for _, values := range out {
		sort.Strings(values)
	}
	return out
}

// String generates a deterministic cache key string.
// Format: wx:path:param1=val1:param2=val2
//
// Param keys and values are query-escaped. The params come straight from
// inbound requests, so a value containing ":" or "=" must not be able to
// fabricate the key of a different parameter set.
//
// Example:
//   wx:weather:city=berlin:units=metric
func (k Key) String() string {
	parts := []string{"wx"}

	path := strings.Trim(k.Path, "/")
	if path != "" {
		parts = append(parts, path)
	}

	if len(k.Params) > 0 {
		keys := make([]string, 0, len(k.Params))
		for key := range k.Params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			for _, value := range k.Params[key] {
				parts = append(parts, fmt.Sprintf("%s=%s",
					url.QueryEscape(key), url.QueryEscape(value)))
			}
		}
	}

	return strings.Join(parts, ":")
}
