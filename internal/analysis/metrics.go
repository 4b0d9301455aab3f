package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "claim_analyses_total",
		Help: "Total number of completed claim analyses by winning source and action",
	}, []string{"source", "action"})

	analysisFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "claim_analyses_failed_total",
		Help: "Total number of claim analyses where both scoring sources failed",
	})

	coalescedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "claim_analyses_coalesced_total",
		Help: "Total number of requests that joined an in-flight identical analysis",
	})

	analysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "claim_analysis_duration_seconds",
		Help:    "Duration of claim analyses by winning source",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
)
