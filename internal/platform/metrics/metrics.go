package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the application-level Prometheus metrics. Store-local latency
// histograms live next to the store implementations.
type Metrics struct {
	RecordsSaved    prometheus.Counter
	RecordsLoaded   prometheus.Counter
	RecordsCleared  prometheus.Counter
	EnvelopesSwept  prometheus.Counter
	AttachmentsGCed prometheus.Counter
	SaveDurationMs  prometheus.Histogram
	LoadDurationMs  prometheus.Histogram
	HTTPDurationMs  *prometheus.HistogramVec
}

// New creates and registers all application metrics.
func New() *Metrics {
	return &Metrics{
		RecordsSaved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "intake_records_saved_total",
			Help: "Total number of form envelopes persisted",
		}),
		RecordsLoaded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "intake_records_loaded_total",
			Help: "Total number of form envelopes loaded",
		}),
		RecordsCleared: promauto.NewCounter(prometheus.CounterOpts{
			Name: "intake_records_cleared_total",
			Help: "Total number of form records explicitly cleared",
		}),
		EnvelopesSwept: promauto.NewCounter(prometheus.CounterOpts{
			Name: "intake_envelopes_swept_total",
			Help: "Total number of expired envelopes removed by the sweeper",
		}),
		AttachmentsGCed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "intake_attachments_gced_total",
			Help: "Total number of orphaned attachments removed",
		}),
		SaveDurationMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "intake_save_duration_ms",
			Help:    "Latency of envelope saves in milliseconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		}),
		LoadDurationMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "intake_load_duration_ms",
			Help:    "Latency of envelope loads in milliseconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		}),
		HTTPDurationMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "intake_http_request_duration_ms",
			Help:    "Latency of HTTP requests in milliseconds",
			Buckets: []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"route", "method"}),
	}
}

// ObserveSave records one envelope save.
func (m *Metrics) ObserveSave(d time.Duration) {
	m.RecordsSaved.Inc()
	m.SaveDurationMs.Observe(float64(d.Microseconds()) / 1000.0)
}

// ObserveLoad records one envelope load.
func (m *Metrics) ObserveLoad(d time.Duration) {
	m.RecordsLoaded.Inc()
	m.LoadDurationMs.Observe(float64(d.Microseconds()) / 1000.0)
}
