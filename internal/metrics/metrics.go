package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Instrumentation for the capture pipeline, exposed at /metrics.
var (
	CapturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_watch_captures_total",
		Help: "Total capture cycles, by terminal status.",
	}, []string{"status"})

	PeopleCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "queue_watch_people_count",
		Help: "People counted inside the queue region on the most recent successful capture.",
	})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "queue_watch_cycle_duration_seconds",
		Help:    "End-to-end duration of a capture cycle, including detection and persistence.",
		Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
	})

	PrunedRows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "queue_watch_pruned_rows_total",
		Help: "Capture rows whose image payloads were removed by the retention sweep.",
	})
)
