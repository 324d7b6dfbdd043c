package proxy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proxy_http_requests_total",
		Help: "Total inbound HTTP requests by path and status",
	}, []string{"path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "proxy_http_request_duration_seconds",
		Help:    "Inbound request duration in seconds by path",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"path"})

	panicsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proxy_handler_panics_total",
		Help: "Total recovered handler panics",
	})
)
