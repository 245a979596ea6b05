// Package metrics holds the domain level Prometheus collectors of the server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tmpdrop"

// Metrics groups the collectors shared by the store, the transcode cache and the sweeper.
type Metrics struct {
	uploads           *prometheus.CounterVec
	uploadedBytes     prometheus.Counter
	downloads         *prometheus.CounterVec
	transcodes        *prometheus.CounterVec
	transcodeDuration *prometheus.HistogramVec
	sweepRemoved      *prometheus.CounterVec
	sweepFailures     prometheus.Counter
	sweepDuration     prometheus.Histogram
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Objects stored, labeled by lifetime class",
		}, []string{"class"}),
		uploadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Bytes accepted by uploads",
		}),
		downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Objects served, labeled by lifetime class",
		}, []string{"class"}),
		transcodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcode_requests_total",
			Help:      "Transcode requests, labeled by target format and result (hit, miss, error)",
		}, []string{"format", "result"}),
		transcodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcode_duration_seconds",
			Help:      "Histogram of image conversion durations in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"format"}),
		sweepRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_removed_total",
			Help:      "Files removed by the retention sweeper, labeled by kind (object, staging, orphan)",
		}, []string{"kind"}),
		sweepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_failures_total",
			Help:      "Expired objects the sweeper failed to remove",
		}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Histogram of sweep pass durations in seconds",
		}),
	}

	reg.MustRegister(
		m.uploads,
		m.uploadedBytes,
		m.downloads,
		m.transcodes,
		m.transcodeDuration,
		m.sweepRemoved,
		m.sweepFailures,
		m.sweepDuration,
	)

	return m
}

func (m *Metrics) Upload(class string, size int) {
	m.uploads.WithLabelValues(class).Inc()
	m.uploadedBytes.Add(float64(size))
}

func (m *Metrics) Download(class string) {
	m.downloads.WithLabelValues(class).Inc()
}

func (m *Metrics) TranscodeHit(format string) {
	m.transcodes.WithLabelValues(format, "hit").Inc()
}

// TranscodeMiss records a conversion that produced output in d.
func (m *Metrics) TranscodeMiss(format string, d time.Duration) {
	m.transcodes.WithLabelValues(format, "miss").Inc()
	m.transcodeDuration.WithLabelValues(format).Observe(d.Seconds())
}

func (m *Metrics) TranscodeError(format string) {
	m.transcodes.WithLabelValues(format, "error").Inc()
}

// Sweep records the outcome of one sweeper pass.
func (m *Metrics) Sweep(removed, staging, orphans, failed int, d time.Duration) {
	m.sweepRemoved.WithLabelValues("object").Add(float64(removed))
	m.sweepRemoved.WithLabelValues("staging").Add(float64(staging))
	m.sweepRemoved.WithLabelValues("orphan").Add(float64(orphans))
	m.sweepFailures.Add(float64(failed))
	m.sweepDuration.Observe(d.Seconds())
}
