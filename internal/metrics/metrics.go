// Package metrics exposes Prometheus instrumentation for the store.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transcode result label values.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultCacheHit = "cache_hit"
)

// Metrics holds the instrument set of the server.
type Metrics struct {
	// UploadsTotal counts accepted file uploads, including dedup hits.
	UploadsTotal prometheus.Counter

	// UploadBytesTotal counts bytes received in accepted uploads.
	UploadBytesTotal prometheus.Counter

	// UploadFailures counts per-file storage write failures.
	UploadFailures prometheus.Counter

	// DedupHitsTotal counts uploads whose bytes were already stored.
	DedupHitsTotal prometheus.Counter

	// TranscodesTotal counts PNG conversion outcomes by result.
	TranscodesTotal *prometheus.CounterVec

	// RequestsInFlight gauges concurrently handled HTTP requests.
	RequestsInFlight prometheus.Gauge
}

// New registers the instrument set with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		UploadsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "pictor_uploads_total",
			Help: "Number of accepted file uploads, including dedup hits.",
		}),
		UploadBytesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "pictor_upload_bytes_total",
			Help: "Bytes received in accepted uploads.",
		}),
		UploadFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "pictor_upload_failures_total",
			Help: "Per-file storage write failures.",
		}),
		DedupHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "pictor_dedup_hits_total",
			Help: "Uploads whose bytes were already stored.",
		}),
		TranscodesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pictor_transcodes_total",
			Help: "PNG conversion outcomes.",
		}, []string{"result"}),
		RequestsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pictor_requests_in_flight",
			Help: "Concurrently handled HTTP requests.",
		}),
	}
}

// NewUnregistered returns an instrument set on a private registry.
// Useful for tests that don't care about scraping.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
