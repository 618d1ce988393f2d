// Package metrics provides a small, backend-agnostic abstraction for
// recording operational metrics from the normalization engine.
//
// The package is intentionally minimal and opinionated:
//
//   - It exposes a narrow interface (Backend) focused on counters and timing
//     data.
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//   - Concrete metric systems stay isolated in subpackages (prompush,
//     datadog); the engine depends only on this interface.
//
// The primary use case is instrumentation of the geocoding path: spatial
// joins are the expensive operation the coordinate cache exists to avoid,
// so cache hits, misses, and join executions are first-class counters. The
// counters double as the observable contract for cache-effectiveness tests.
package metrics

import "time"

// Metric names understood by the bundled backends.
const (
	StageTotal    = "normalize_stage_total"
	StageDuration = "normalize_stage_duration_seconds"
	RowsTotal     = "normalize_rows_total"
	GeocodeTotal  = "normalize_geocode_total"
)

// Geocode event kinds recorded under GeocodeTotal.
const (
	GeocodeCacheHit    = "cache_hit"
	GeocodeCacheMiss   = "cache_miss"
	GeocodeSpatialJoin = "spatial_join"
	GeocodeUnresolved  = "unresolved"
	GeocodeFuzzyMatch  = "fuzzy_match"
	GeocodeFuzzyMiss   = "fuzzy_miss"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
// It is intentionally generic so we can plug in Prometheus, Datadog, etc.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStage is a convenience for the common pattern:
// measure latency + success/failure per normalization stage.
func RecordStage(job, stage string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"job":    job,
		"stage":  stage,
		"status": status,
	}
	backend.IncCounter(StageTotal, 1, lbls)
	backend.ObserveHistogram(StageDuration, d.Seconds(), lbls)
}

// RecordRows increments a row-level counter for the given job and kind,
// e.g. "input", "pivoted", "null_value_dropped".
func RecordRows(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RowsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordGeocode increments a geocoding event counter, e.g. a cache hit or
// an executed spatial join.
func RecordGeocode(kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(GeocodeTotal, float64(delta), Labels{
		"kind": kind,
	})
}
