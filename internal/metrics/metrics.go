// Package metrics exposes Prometheus collectors for the sync engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	workerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "moodsync",
			Subsystem: "worker",
			Name:      "runs_total",
			Help:      "Worker runs by outcome.",
		},
		[]string{"worker", "result"},
	)

	workerRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "moodsync",
			Subsystem: "worker",
			Name:      "run_duration_seconds",
			Help:      "Worker run latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"worker"},
	)

	itemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "moodsync",
			Subsystem: "worker",
			Name:      "items_total",
			Help:      "Rows handled by workers, by status (synced, failed, skipped).",
		},
		[]string{"worker", "status"},
	)

	queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "moodsync",
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Pending rows per local queue.",
		},
		[]string{"queue"},
	)

	remoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "moodsync",
			Subsystem: "remote",
			Name:      "requests_total",
			Help:      "Requests served by the dev remote, by route and status class.",
		},
		[]string{"route", "class"},
	)
)

// ObserveRun records one worker run.
func ObserveRun(worker, result string, d time.Duration) {
	workerRunsTotal.WithLabelValues(worker, result).Inc()
	workerRunDuration.WithLabelValues(worker).Observe(d.Seconds())
}

// AddItems counts rows a worker handled. Zero counts are ignored.
func AddItems(worker string, synced, failed, skipped int) {
	for status, n := range map[string]int{"synced": synced, "failed": failed, "skipped": skipped} {
		if n > 0 {
			itemsTotal.WithLabelValues(worker, status).Add(float64(n))
		}
	}
}

// SetQueueDepth publishes the current pending count of queue.
func SetQueueDepth(queue string, n int) {
	queueDepth.WithLabelValues(queue).Set(float64(n))
}

// ObserveRequest counts a dev remote request. status is the HTTP status.
func ObserveRequest(route string, status int) {
	remoteRequestsTotal.WithLabelValues(route, statusClass(status)).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
