package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_deliveries_total",
			Help: "Total number of push deliveries by outcome",
		},
		[]string{"status"},
	)

	CampaignsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_campaigns_total",
			Help: "Total number of dispatch requests by result",
		},
		[]string{"result"},
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "push_dispatch_duration_seconds",
			Help:    "Duration of a campaign dispatch from validation to finalization",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	SendsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "push_sends_inflight",
			Help: "Number of push requests currently awaiting a push service response",
		},
	)

	ClicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "push_clicks_total",
			Help: "Total number of tracked notification clicks",
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Total number of requests rejected by the per-IP rate limiter",
		},
	)
)
