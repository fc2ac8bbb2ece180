package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reindexJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reindex_jobs_total",
		Help: "Reindex jobs by entity type and outcome.",
	}, []string{"entity_type", "outcome"})

	reindexDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reindex_duration_seconds",
		Help:    "Wall time of finished reindex jobs.",
		Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300},
	}, []string{"entity_type"})

	reindexDocuments = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reindex_documents",
		Help:    "Documents written by successful reindex jobs.",
		Buckets: prometheus.ExponentialBuckets(10, 4, 8),
	}, []string{"entity_type"})
)
