package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	backupsTotal    *prometheus.CounterVec
	backupDuration  prometheus.Histogram
	extractsTotal   *prometheus.CounterVec
	extractDuration prometheus.Histogram
	bytesWritten    prometheus.Counter
	sourceBytes     prometheus.Counter
	partsCreated    prometheus.Counter
	uploadRetries   prometheus.Counter
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		backupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archivedir_backups_total",
				Help: "Total number of backup runs",
			},
			[]string{"status"},
		),
		backupDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "archivedir_backup_duration_seconds",
				Help:    "Backup run duration in seconds",
				Buckets: []float64{1, 10, 60, 300, 900, 3600, 14400},
			},
		),
		extractsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archivedir_extracts_total",
				Help: "Total number of extract runs",
			},
			[]string{"status"},
		),
		extractDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "archivedir_extract_duration_seconds",
				Help:    "Extract run duration in seconds",
				Buckets: []float64{1, 10, 60, 300, 900, 3600, 14400},
			},
		),
		bytesWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "archivedir_bytes_written_total",
				Help: "Total archive bytes written to destinations",
			},
		),
		sourceBytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "archivedir_source_bytes_total",
				Help: "Total source bytes scanned for backup",
			},
		),
		partsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "archivedir_parts_created_total",
				Help: "Total number of archive parts stored",
			},
		),
		uploadRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "archivedir_upload_retries_total",
				Help: "Total number of retried destination operations",
			},
		),
	}

	reg.MustRegister(r.backupsTotal)
	reg.MustRegister(r.backupDuration)
	reg.MustRegister(r.extractsTotal)
	reg.MustRegister(r.extractDuration)
	reg.MustRegister(r.bytesWritten)
	reg.MustRegister(r.sourceBytes)
	reg.MustRegister(r.partsCreated)
	reg.MustRegister(r.uploadRetries)

	return r
}

// RecordBackup records a backup run completion.
func (r *Registry) RecordBackup(status string, duration float64) {
	r.backupsTotal.WithLabelValues(status).Inc()
	r.backupDuration.Observe(duration)
}

// RecordExtract records an extract run completion.
func (r *Registry) RecordExtract(status string, duration float64) {
	r.extractsTotal.WithLabelValues(status).Inc()
	r.extractDuration.Observe(duration)
}

// AddBytesWritten adds to the destination byte counter.
func (r *Registry) AddBytesWritten(n int64) {
	r.bytesWritten.Add(float64(n))
}

// AddSourceBytes adds to the scanned source byte counter.
func (r *Registry) AddSourceBytes(n int64) {
	r.sourceBytes.Add(float64(n))
}

// RecordPart records a stored archive part.
func (r *Registry) RecordPart() {
	r.partsCreated.Inc()
}

// RecordRetry records a retried destination operation.
func (r *Registry) RecordRetry() {
	r.uploadRetries.Inc()
}
