// Package proxy contains the inbound HTTP surface of the weather proxy:
// routing, request validation, cache consultation, and the conversion of
// upstream failures into gateway errors.
package proxy

import (
	"context"
	"encoding/json"
	_ "embed"
	"errors"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/meshwx/weather-proxy/pkg/cache"
	"github.com/meshwx/weather-proxy/pkg/logging"
	"github.com/meshwx/weather-proxy/pkg/upstream"
	"github.com/meshwx/weather-proxy/pkg/weather"
)

//go:embed index.html
var indexPage []byte

var validate = validator.New()

// Cache status header values reported to clients.
const (
	headerCacheStatus = "X-Cache-Status"
	cacheHit          = "HIT"
	cacheMiss         = "MISS"
)

// Options wires the handler's collaborators. The handler owns no state
// itself; the cache store and upstream clients are shared references.
type Options struct {
	Store    cache.Store
	Weather  *upstream.Client
	Nodes    *upstream.Client
	Meteo    *weather.Meteo
	Geocoder weather.Geocoder // optional
	CacheTTL time.Duration
}

// Handler routes inbound requests.
type Handler struct {
	store    cache.Store
	weather  *upstream.Client
	nodes    *upstream.Client
	meteo    *weather.Meteo
	geocoder weather.Geocoder
	ttl      time.Duration
	logger   zerolog.Logger
}

// NewHandler creates the request router.
func NewHandler(opts Options) *Handler {
	return &Handler{
		store:    opts.Store,
		weather:  opts.Weather,
		nodes:    opts.Nodes,
		meteo:    opts.Meteo,
		geocoder: opts.Geocoder,
		ttl:      opts.CacheTTL,
		logger:   logging.NewLogger("proxy"),
	}
}

// Routes returns the full middleware-wrapped handler chain.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.handleIndex)
	mux.HandleFunc("/health", h.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/weather", h.handleWeather)
	mux.HandleFunc("/nodes", h.handleNodes)
	mux.HandleFunc("/api", h.handleAPI)

	var handler http.Handler = mux
	handler = allowCORS(handler)
	handler = accessLog(h.logger, handler)
	handler = recoverPanics(h.logger, handler)
	return handler
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		h.writeError(w, http.StatusNotFound, "not found")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(indexPage)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// weatherQuery is the validated query surface of /weather. A location is
// identified by city or by a full coordinate pair.
type weatherQuery struct {
	City string `validate:"required_without_all=Lat Lon"`
	Lat  string `validate:"required_with=Lon,omitempty,latitude"`
	Lon  string `validate:"required_with=Lat,omitempty,longitude"`
}

func (h *Handler) handleWeather(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	params := cache.Canonicalize(r.URL.Query())

	q := weatherQuery{
		City: params.Get("city"),
		Lat:  params.Get("lat"),
		Lon:  params.Get("lon"),
	}
	if err := validate.Struct(q); err != nil {
		h.writeError(w, http.StatusBadRequest,
			"missing or invalid location; provide city or lat and lon")
		return
	}

	key := cache.Key{Path: "/weather", Params: params}
	h.serveCached(w, r, key, func(ctx context.Context) (*upstream.Response, error) {
		return h.weather.Fetch(ctx, params)
	})
}

func (h *Handler) handleNodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	key := cache.Key{Path: "/nodes"}
	h.serveCached(w, r, key, func(ctx context.Context) (*upstream.Response, error) {
		return h.nodes.Fetch(ctx, nil)
	})
}

// serveCached answers from the cache when possible and falls back to the
// given fetch on a miss. Only successful fetches are stored; an upstream
// failure leaves prior cache state untouched and maps to a gateway error.
func (h *Handler) serveCached(w http.ResponseWriter, r *http.Request, key cache.Key,
	fetch func(ctx context.Context) (*upstream.Response, error)) {

	ctx := r.Context()

	entry, err := h.store.Get(ctx, key)
	if err == nil {
		h.writeEntry(w, entry, cacheHit)
		return
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		h.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache get error")
	}

	resp, err := fetch(ctx)
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}

	entry = &cache.Entry{
		Data:        resp.Body,
		ContentType: resp.ContentType,
		StatusCode:  resp.StatusCode,
	}
	if err := h.store.Set(ctx, key, entry, h.ttl); err != nil {
		h.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache set error")
	} else {
		h.logger.Debug().
			Str("key", key.String()).
			Dur("ttl", h.ttl).
			Msg("Cached upstream response")
	}

	h.writeEntry(w, entry, cacheMiss)
}

// apiResponse is the payload of /api: the nearest node's readings plus
// the Open-Meteo cross-check.
type apiResponse struct {
	Lat                  float64  `json:"lat"`
	Long                 float64  `json:"long"`
	NodeName             string   `json:"node_name"`
	DistanceKM           float64  `json:"distance_km"`
	Temperature          *float64 `json:"temperature"`
	RelativeHumidity     *float64 `json:"relative_humidity"`
	BarometricPressure   *float64 `json:"barometric_pressure"`
	UpdatedAt            string   `json:"updated_at"`
	CheckedWithOpenMeteo bool     `json:"checked_with_openmeteo"`
	CheckDiff            struct {
		Temperature *float64 `json:"temperature"`
	} `json:"check_diff"`
}

func (h *Handler) handleAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	lat, lon, ok := h.resolvePosition(w, r.URL.Query())
	if !ok {
		return
	}

	ctx := r.Context()

	nodes, cacheStatus, err := h.fetchNodes(ctx)
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}

	current, err := h.meteo.FetchCurrent(ctx, lat, lon)
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}

	match, found := weather.BestMatch(lat, lon, nodes, current.Temperature)
	if !found {
		// No node carries a full sensor set; fall back to plain distance.
		match, found = weather.Nearest(lat, lon, nodes)
		if !found {
			h.writeError(w, http.StatusNotFound, "no node with valid coordinates found")
			return
		}
	}

	resp := apiResponse{
		Lat:                  lat,
		Long:                 lon,
		NodeName:             match.Node.DisplayName(),
		DistanceKM:           round2(match.DistanceKM),
		Temperature:          match.Node.Temperature,
		RelativeHumidity:     match.Node.RelativeHumidity,
		BarometricPressure:   match.Node.BarometricPressure,
		UpdatedAt:            match.Node.UpdatedAt,
		CheckedWithOpenMeteo: true,
	}
	if match.TempDiff != nil {
		diff := round2(*match.TempDiff)
		resp.CheckDiff.Temperature = &diff
	}

	w.Header().Set(headerCacheStatus, cacheStatus)
	h.writeJSON(w, http.StatusOK, resp)
}

// resolvePosition extracts the requested coordinates from the query:
// lat and long (lon accepted as fallback), or a city lookup when a
// geocoder is configured. Writes the 400 response itself on failure.
func (h *Handler) resolvePosition(w http.ResponseWriter, query url.Values) (float64, float64, bool) {
	latStr := query.Get("lat")
	lonStr := query.Get("long")
	if lonStr == "" {
		lonStr = query.Get("lon")
	}

	if latStr == "" && lonStr == "" {
		city := query.Get("city")
		if city != "" && h.geocoder != nil {
			lat, lon, err := h.geocoder.Lookup(city)
			if err != nil {
				h.writeGatewayError(w, err)
				return 0, 0, false
			}
			return lat, lon, true
		}
		h.writeError(w, http.StatusBadRequest,
			"missing parameters; example: /api?lat=52.10&long=10.10")
		return 0, 0, false
	}

	lat, errLat := strconv.ParseFloat(latStr, 64)
	lon, errLon := strconv.ParseFloat(lonStr, 64)
	if errLat != nil || errLon != nil {
		h.writeError(w, http.StatusBadRequest,
			"invalid coordinates; lat and long must be numeric")
		return 0, 0, false
	}

	return lat, lon, true
}

// fetchNodes returns the parsed node feed, served through the cache.
func (h *Handler) fetchNodes(ctx context.Context) ([]weather.Node, string, error) {
	key := cache.Key{Path: "/nodes"}

	if entry, err := h.store.Get(ctx, key); err == nil {
		nodes, err := weather.ParseNodes(entry.Data)
		if err != nil {
			return nil, "", err
		}
		return nodes, cacheHit, nil
	}

	resp, err := h.nodes.Fetch(ctx, nil)
	if err != nil {
		return nil, "", err
	}

	nodes, err := weather.ParseNodes(resp.Body)
	if err != nil {
		return nil, "", err
	}

	entry := &cache.Entry{
		Data:        resp.Body,
		ContentType: resp.ContentType,
		StatusCode:  resp.StatusCode,
	}
	if err := h.store.Set(ctx, key, entry, h.ttl); err != nil {
		h.logger.Warn().Err(err).Msg("Cache set error for node feed")
	}

	return nodes, cacheMiss, nil
}

func (h *Handler) writeEntry(w http.ResponseWriter, entry *cache.Entry, status string) {
	if entry.ContentType != "" {
		w.Header().Set("Content-Type", entry.ContentType)
	}
	w.Header().Set(headerCacheStatus, status)
	w.WriteHeader(entry.StatusCode)
	w.Write(entry.Data)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error().Err(err).Msg("Marshal response payload")
		http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeGatewayError maps any upstream failure to 502 Bad Gateway.
// Failed fetches are never cached and never overwrite prior entries.
func (h *Handler) writeGatewayError(w http.ResponseWriter, err error) {
	h.logger.Error().Err(err).Str("kind", string(upstream.KindOf(err))).Msg("Upstream request failed")
	h.writeError(w, http.StatusBadGateway, "upstream request failed: "+err.Error())
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
