package elasticsearch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bulkBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_index_bulk_batches_total",
		Help: "Bulk requests sent to the search index, by outcome.",
	}, []string{"index", "outcome"})

	documentsIndexedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_index_documents_indexed_total",
		Help: "Documents written to the search index by bulk sync.",
	}, []string{"index"})

	bulkDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "search_index_bulk_duration_seconds",
		Help:    "Duration of a single bulk request.",
		Buckets: prometheus.DefBuckets,
	}, []string{"index"})

	searchQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_index_queries_total",
		Help: "Keyword searches executed, by outcome.",
	}, []string{"index", "outcome"})
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
