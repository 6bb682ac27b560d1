package compose

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeMemoHit         = "memo_hit"
	outcomeAnswer          = "answer"
	outcomeNoSources       = "no_sources"
	outcomeLowConfidence   = "low_confidence"
	outcomePlannerFallback = "planner_fallback"
)

var (
	composeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagewright_compose_total",
		Help: "Compose requests by outcome.",
	}, []string{"outcome"})

	composeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pagewright_compose_duration_seconds",
		Help:    "End-to-end compose latency.",
		Buckets: prometheus.DefBuckets,
	})
)
