package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	uploadResultSuccess  = "success"
	uploadResultRejected = "rejected"
	uploadResultError    = "error"

	orphanReasonRollback = "rollback_failed"
	orphanReasonDelete   = "delete_failed"
)

// Metrics holds the document pipeline collectors.
type Metrics struct {
	uploads     *prometheus.CounterVec
	uploadBytes prometheus.Histogram
	orphaned    *prometheus.CounterVec
	swept       prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taxdocs_uploads_total",
				Help: "Document uploads by outcome.",
			},
			[]string{"result"},
		),
		uploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taxdocs_upload_bytes",
			Help:    "Size of successfully stored uploads in bytes.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}),
		orphaned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taxdocs_orphaned_blobs_total",
				Help: "Blobs left without a metadata row after a failed cleanup.",
			},
			[]string{"reason"},
		),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taxdocs_swept_blobs_total",
			Help: "Orphaned blobs removed by the sweeper.",
		}),
	}

	for _, c := range []prometheus.Collector{m.uploads, m.uploadBytes, m.orphaned, m.swept} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// newUnregisteredMetrics backs services built without WithMetrics.
func newUnregisteredMetrics() *Metrics {
	m, _ := NewMetrics(prometheus.NewRegistry())
	return m
}
