// Package observe provides application-wide observability primitives for the
// dictation pipeline: OpenTelemetry metrics, tracing helpers, and structured
// logging glue.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped from the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all pipeline metrics.
const meterName = "github.com/johnmichaelkuczynski/dictate"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// CaptureDuration tracks wall-clock duration of capture attempts. Use
	// with attribute.String("mode", ...).
	CaptureDuration metric.Float64Histogram

	// SessionsStarted counts capture attempts by mode.
	SessionsStarted metric.Int64Counter

	// SessionOutcomes counts retired attempts. Use with attributes:
	//   attribute.String("mode", ...), attribute.String("outcome", ...)
	// where outcome is "completed", "cancelled", "superseded", or an error
	// taxonomy kind.
	SessionOutcomes metric.Int64Counter

	// TranscriptEvents counts partial/final transcript events delivered to
	// the consumer. Use with attribute.String("type", ...).
	TranscriptEvents metric.Int64Counter

	// AudioBytesSent counts encoded audio bytes handed to a transport, by
	// mode.
	AudioBytesSent metric.Int64Counter

	// ActiveSessions tracks the number of live capture attempts. Stays at 0
	// or 1 per session instance; the gauge exists for multi-session hosts.
	ActiveSessions metric.Int64UpDownCounter
}

// captureBuckets defines histogram bucket boundaries (in seconds) sized for
// dictation attempts, which run from under a second to a minute or more.
var captureBuckets = []float64{
	0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.CaptureDuration, err = m.Float64Histogram("dictate.capture.duration",
		metric.WithDescription("Wall-clock duration of capture attempts by mode."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(captureBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SessionsStarted, err = m.Int64Counter("dictate.sessions.started",
		metric.WithDescription("Total capture attempts by mode."),
	); err != nil {
		return nil, err
	}
	if met.SessionOutcomes, err = m.Int64Counter("dictate.sessions.outcomes",
		metric.WithDescription("Retired capture attempts by mode and outcome."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptEvents, err = m.Int64Counter("dictate.transcript.events",
		metric.WithDescription("Transcript events delivered to the consumer by type."),
	); err != nil {
		return nil, err
	}
	if met.AudioBytesSent, err = m.Int64Counter("dictate.audio.bytes_sent",
		metric.WithDescription("Encoded audio bytes handed to a transport by mode."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("dictate.active_sessions",
		metric.WithDescription("Number of live capture attempts."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}
