// Package upstream provides the outbound HTTP client used to reach
// weather data providers: bounded timeout, bounded retry for transient
// network failures, a circuit breaker, and typed error classification.
//
// Caching never lives here; this package is purely transport and parsing.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/meshwx/weather-proxy/pkg/logging"
)

// Prometheus metrics for upstream requests.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proxy_upstream_requests_total",
		Help: "Total upstream requests by client name and status",
	}, []string{"upstream", "status"})

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "proxy_upstream_request_duration_seconds",
		Help:    "Upstream request duration in seconds by client name",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"upstream"})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proxy_upstream_errors_total",
		Help: "Total upstream errors by kind",
	}, []string{"kind"})

	upstreamRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proxy_upstream_retries_total",
		Help: "Total number of upstream retry attempts by error kind",
	}, []string{"kind"})

	upstreamRetryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proxy_upstream_retry_exhausted_total",
		Help: "Total number of times upstream retry attempts were exhausted",
	})
)

// Config holds the upstream client configuration.
type Config struct {
	// Name identifies the client in logs, metrics, and the breaker.
	Name string

	// BaseURL is the provider endpoint; a fixed query string is allowed
	// and merged with per-request parameters.
	BaseURL string

	// Timeout bounds each fetch, including retries, via the request context.
	Timeout time.Duration

	// Retry is the bounded retry policy for transient network failures.
	Retry RetryConfig

	// HTTPClient overrides the default HTTP client (tests).
	HTTPClient *http.Client
}

// Response is the transport-level result of a successful fetch.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Client issues GET requests to a single upstream provider.
type Client struct {
	name       string
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
	retry      RetryConfig
	breaker    *gobreaker.CircuitBreaker
	logger     zerolog.Logger
}

// New creates an upstream client for the given provider.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("upstream base URL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("upstream base URL must be http(s), got %q", cfg.BaseURL)
	}

	name := cfg.Name
	if name == "" {
		name = base.Host
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	retry := cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry = DefaultRetryConfig()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		// A well-formed 4xx is the caller's problem, not provider
		// health; only 5xx and transport failures count toward opening.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var ue *Error
			if errors.As(err, &ue) && ue.Kind == KindStatus {
				return ue.StatusCode >= 400 && ue.StatusCode < 500
			}
			return false
		},
	})

	return &Client{
		name:       name,
		baseURL:    base,
		httpClient: httpClient,
		timeout:    timeout,
		retry:      retry,
		breaker:    breaker,
		logger:     logging.NewLogger("upstream-" + name),
	}, nil
}

// Name returns the client's identifier.
func (c *Client) Name() string {
	return c.name
}

// Fetch performs a GET against the provider with the given query
// parameters. Query keys are encoded in deterministic order so equal
// parameter sets always produce the same request URL.
//
// Failures are returned as *Error: KindTimeout when the time budget is
// exceeded, KindStatus for well-formed non-2xx responses (never retried),
// KindParse for malformed JSON bodies, KindTransport for network and
// breaker failures (retried within the bounded policy).
func (c *Client) Fetch(ctx context.Context, params url.Values) (*Response, error) {
	target := *c.baseURL
	query := target.Query()
	for key, values := range params {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	target.RawQuery = query.Encode()

	// One deadline for the whole fetch: retries and backoff delays all
	// count against the same budget.
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		upstreamRequestDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
	}()

	var resp *Response
	err := retryWithBackoff(ctx, c.retry, c.logger, func() error {
		result, execErr := c.breaker.Execute(func() (interface{}, error) {
			return c.doOnce(ctx, target.String())
		})
		if execErr != nil {
			if errors.Is(execErr, gobreaker.ErrOpenState) || errors.Is(execErr, gobreaker.ErrTooManyRequests) {
				execErr = &Error{Kind: KindTransport, Message: "circuit breaker open", Err: execErr}
			}
			upstreamErrorsTotal.WithLabelValues(string(KindOf(execErr))).Inc()
			return execErr
		}
		resp = result.(*Response)
		return nil
	})
	if err != nil {
		return nil, err
	}

	upstreamRequestsTotal.WithLabelValues(c.name, fmt.Sprintf("%d", resp.StatusCode)).Inc()
	return resp, nil
}

// FetchJSON fetches and decodes the provider response into v.
// A body that does not decode yields a KindParse error.
func (c *Client) FetchJSON(ctx context.Context, params url.Values, v interface{}) error {
	resp, err := c.Fetch(ctx, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		upstreamErrorsTotal.WithLabelValues(string(KindParse)).Inc()
		return &Error{Kind: KindParse, StatusCode: resp.StatusCode, Message: "decode response body", Err: err}
	}
	return nil
}

// doOnce performs a single attempt against the provider.
func (c *Client) doOnce(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Message: "create request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		kind := classifyRequestError(err)
		return nil, &Error{Kind: kind, Message: "request failed", Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &Error{Kind: classifyRequestError(err), Message: "read response body", Err: err}
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &Error{Kind: KindStatus, StatusCode: res.StatusCode, Message: res.Status}
	}

	contentType := res.Header.Get("Content-Type")
	if isJSON(contentType) && !json.Valid(body) {
		return nil, &Error{Kind: KindParse, StatusCode: res.StatusCode, Message: "malformed JSON body"}
	}

	return &Response{
		StatusCode:  res.StatusCode,
		ContentType: contentType,
		Body:        body,
	}, nil
}

// isJSON reports whether a Content-Type header declares a JSON payload.
func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
