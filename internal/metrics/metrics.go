package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Turns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docsearch_chat_turns_total",
		Help: "Chat turns by outcome (ok, generation_failed).",
	}, []string{"outcome"})

	DegradedSearches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docsearch_search_degraded_total",
		Help: "Turns answered with an inline search error instead of results.",
	})

	Uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docsearch_uploads_total",
		Help: "Catalog uploads by outcome (ok, stage_failed, insert_failed, partial).",
	}, []string{"outcome"})

	Feedback = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docsearch_feedback_total",
		Help: "Feedback submissions by outcome (persisted, failed, published, publish_failed).",
	}, []string{"outcome"})

	FeedbackAudited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docsearch_feedback_audit_events_total",
		Help: "Feedback events consumed from the audit queue by outcome (ok, malformed).",
	}, []string{"outcome"})
)
