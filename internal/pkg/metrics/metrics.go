package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GuardRejections counts posts refused before insert
	GuardRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "barebones_guard_rejections_total",
		Help: "Submissions rejected by the posting guard.",
	}, []string{"kind", "code"})

	// Transitions counts moderation state changes
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "barebones_transitions_total",
		Help: "Moderation transitions applied.",
	}, []string{"type", "action"})

	// WalkerOrphans counts ancestor levels skipped because the parent is missing
	WalkerOrphans = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "barebones_walker_orphans_total",
		Help: "Dangling parents met while propagating counters.",
	}, []string{"level"})

	// PostsCreated counts inserted topics and replies by resulting status
	PostsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "barebones_posts_created_total",
		Help: "Topics and replies created.",
	}, []string{"type", "status"})

	// HTTPRequests request latency by route
	HTTPRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "barebones_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
