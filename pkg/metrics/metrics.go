package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RoutingDecisions counts introduction routing outcomes (direct|digest|blocked).
	RoutingDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "introweave_routing_decisions_total",
			Help: "Total number of introduction routing decisions",
		},
		[]string{"route", "cross_tenant"},
	)

	// ApprovalResolutions counts cross-network approval outcomes (approved|declined|expired).
	ApprovalResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "introweave_approval_resolutions_total",
			Help: "Total number of cross-network approval resolutions",
		},
		[]string{"resolution"},
	)

	// RateLimitRejections counts hard rejections by limiter kind (cross_tenant|http).
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "introweave_rate_limit_rejections_total",
			Help: "Total number of rate limited requests",
		},
		[]string{"limiter"},
	)

	// DigestQueueDepth tracks unprocessed digest entries per tenant drain.
	DigestQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "introweave_digest_queue_depth",
			Help: "Number of unprocessed digest queue entries at last drain",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "introweave_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
