// Package observe provides application-wide observability primitives for
// sonoria: OpenTelemetry metrics, tracing, and SDK provider setup.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics registry. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all sonoria metrics.
const meterName = "github.com/pvanloo/sonoria"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Counters ---

	// ChunksSent counts outbound audio chunks delivered to the realtime channel.
	ChunksSent metric.Int64Counter

	// ChunksDropped counts outbound audio chunks discarded by the bounded
	// send queue under backpressure.
	ChunksDropped metric.Int64Counter

	// ChunksPlayed counts inbound audio chunks scheduled for playback.
	ChunksPlayed metric.Int64Counter

	// Interruptions counts barge-in events that cancelled pending playback.
	Interruptions metric.Int64Counter

	// Turns counts completed conversation turns. Use with attribute:
	//   attribute.String("speaker", "user"|"model")
	Turns metric.Int64Counter

	// FramesSampled counts still frames extracted for video analysis.
	FramesSampled metric.Int64Counter

	// JobPolls counts status polls of long-running generation jobs. Use with
	// attribute: attribute.String("status", ...)
	JobPolls metric.Int64Counter

	// ChannelErrors counts realtime channel failures.
	ChannelErrors metric.Int64Counter

	// --- Histograms ---

	// SessionDuration tracks the wall-clock length of live voice sessions.
	SessionDuration metric.Float64Histogram

	// ScheduleLead tracks how far ahead of the playback clock each chunk was
	// scheduled. Near-zero values indicate the pipeline is barely keeping up.
	ScheduleLead metric.Float64Histogram

	// --- Gauges ---

	// ActiveSessions tracks the number of live voice sessions. At most one
	// per engine instance; the gauge catches leaks.
	ActiveSessions metric.Int64UpDownCounter

	// QueueDepth tracks the current outbound send queue occupancy.
	QueueDepth metric.Int64UpDownCounter
}

// leadBuckets defines histogram bucket boundaries (in seconds) for playback
// scheduling lead times.
var leadBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Counters.
	if met.ChunksSent, err = m.Int64Counter("sonoria.audio.chunks_sent",
		metric.WithDescription("Outbound audio chunks delivered to the realtime channel."),
	); err != nil {
		return nil, err
	}
	if met.ChunksDropped, err = m.Int64Counter("sonoria.audio.chunks_dropped",
		metric.WithDescription("Outbound audio chunks discarded by the bounded send queue."),
	); err != nil {
		return nil, err
	}
	if met.ChunksPlayed, err = m.Int64Counter("sonoria.audio.chunks_played",
		metric.WithDescription("Inbound audio chunks scheduled for playback."),
	); err != nil {
		return nil, err
	}
	if met.Interruptions, err = m.Int64Counter("sonoria.audio.interruptions",
		metric.WithDescription("Barge-in events that cancelled pending playback."),
	); err != nil {
		return nil, err
	}
	if met.Turns, err = m.Int64Counter("sonoria.transcript.turns",
		metric.WithDescription("Completed conversation turns by speaker."),
	); err != nil {
		return nil, err
	}
	if met.FramesSampled, err = m.Int64Counter("sonoria.video.frames_sampled",
		metric.WithDescription("Still frames extracted for video analysis."),
	); err != nil {
		return nil, err
	}
	if met.JobPolls, err = m.Int64Counter("sonoria.jobs.polls",
		metric.WithDescription("Status polls of long-running generation jobs by status."),
	); err != nil {
		return nil, err
	}
	if met.ChannelErrors, err = m.Int64Counter("sonoria.realtime.errors",
		metric.WithDescription("Realtime channel failures."),
	); err != nil {
		return nil, err
	}

	// Histograms.
	if met.SessionDuration, err = m.Float64Histogram("sonoria.session.duration",
		metric.WithDescription("Wall-clock length of live voice sessions."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if met.ScheduleLead, err = m.Float64Histogram("sonoria.playback.schedule_lead",
		metric.WithDescription("Lead time between scheduling and playback start per chunk."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(leadBuckets...),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("sonoria.active_sessions",
		metric.WithDescription("Number of live voice sessions."),
	); err != nil {
		return nil, err
	}
	if met.QueueDepth, err = m.Int64UpDownCounter("sonoria.audio.queue_depth",
		metric.WithDescription("Current outbound send queue occupancy."),
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
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordTurn records one completed conversation turn for speaker.
func (m *Metrics) RecordTurn(ctx context.Context, speaker string) {
	m.Turns.Add(ctx, 1,
		metric.WithAttributes(attribute.String("speaker", speaker)),
	)
}

// RecordJobPoll records one job status poll with its observed status.
func (m *Metrics) RecordJobPoll(ctx context.Context, status string) {
	m.JobPolls.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordFramesSampled records n frames extracted from the named source.
func (m *Metrics) RecordFramesSampled(ctx context.Context, n int, source string) {
	m.FramesSampled.Add(ctx, int64(n),
		metric.WithAttributes(Attr("source", source)),
	)
}
