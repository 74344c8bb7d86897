package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var registry = prometheus.NewRegistry()

var registerer = prometheus.WrapRegistererWith(nil, registry)

var (
	RequestsAdmitted = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "aiguard_requests_admitted_total",
			Help: "Requests admitted by the rate limiter",
		},
		[]string{"route"},
	)

	RequestsDenied = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "aiguard_requests_denied_total",
			Help: "Requests denied, by route and reason",
		},
		[]string{"route", "reason"},
	)

	StoreFailures = promauto.With(registerer).NewCounter(
		prometheus.CounterOpts{
			Name: "aiguard_store_failures_total",
			Help: "Rate limit store failures that were treated as denials",
		},
	)

	OriginRejections = promauto.With(registerer).NewCounter(
		prometheus.CounterOpts{
			Name: "aiguard_origin_rejections_total",
			Help: "Requests rejected by the origin allow-list",
		},
	)

	UpstreamLatency = promauto.With(registerer).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aiguard_upstream_latency_ms",
			Help:    "AI upstream latency in milliseconds",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"route"},
	)
)

func Initialize() {
	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
}
