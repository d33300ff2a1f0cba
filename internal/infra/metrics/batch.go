package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(itemsProcessedTotal, batchesTotal) }

var itemsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ocr_items_total",
		Help: "Images that reached a terminal state, labeled by status and failure kind.",
	},
	[]string{"status", "kind"}, // status: succeeded|failed
)

var batchesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ocr_batches_total",
		Help: "Batches by lifecycle event.",
	},
	[]string{"status"}, // 'processing', 'complete', 'rejected'
)

func IncItem(status, kind string) {
	itemsProcessedTotal.WithLabelValues(norm(status), norm(kind)).Inc()
}

func IncBatch(status string) {
	batchesTotal.WithLabelValues(norm(status)).Inc()
}
