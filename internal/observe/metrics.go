// Package observe holds the OpenTelemetry metric instruments used across
// sightline and the Prometheus exporter bridge that serves them.
//
// Tests should build their own instance with NewMetrics and a ManualReader
// rather than going through Default.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/teslashibe/go-sightline"

// Metrics holds every instrument. All fields are safe for concurrent use.
type Metrics struct {
	// InferenceDuration tracks per-frame engine latency. Attribute: lane.
	InferenceDuration metric.Float64Histogram

	// InferenceFailures counts failed Run calls. Attribute: lane.
	InferenceFailures metric.Int64Counter

	// FramesPublished counts frames accepted by the distributor.
	FramesPublished metric.Int64Counter

	// FramesDropped counts frames overwritten before a lane consumed them.
	// Attribute: lane.
	FramesDropped metric.Int64Counter

	// Announcements counts scheduler decisions. Attributes: priority, outcome.
	Announcements metric.Int64Counter

	// ActiveLanes tracks lanes currently consuming frames.
	ActiveLanes metric.Int64UpDownCounter

	// HTTPRequestDuration tracks control-surface request latency.
	// Attributes: method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// inferenceBuckets are in seconds; CPU models sit between 20 ms and 1 s.
var inferenceBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.InferenceDuration, err = m.Float64Histogram("sightline.inference.duration",
		metric.WithDescription("Latency of one engine run."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(inferenceBuckets...),
	); err != nil {
		return nil, err
	}
	if met.InferenceFailures, err = m.Int64Counter("sightline.inference.failures",
		metric.WithDescription("Failed engine runs by lane."),
	); err != nil {
		return nil, err
	}
	if met.FramesPublished, err = m.Int64Counter("sightline.frames.published",
		metric.WithDescription("Frames accepted for distribution."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("sightline.frames.dropped",
		metric.WithDescription("Frames overwritten before a lane consumed them."),
	); err != nil {
		return nil, err
	}
	if met.Announcements, err = m.Int64Counter("sightline.announcements",
		metric.WithDescription("Announcement decisions by priority and outcome."),
	); err != nil {
		return nil, err
	}
	if met.ActiveLanes, err = m.Int64UpDownCounter("sightline.lanes.active",
		metric.WithDescription("Lanes currently consuming frames."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("sightline.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// Default returns the package-level instance created from the global meter
// provider. Call InitProvider first so it is backed by the exporter.
func Default() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordInference records one engine run on lane.
func (m *Metrics) RecordInference(ctx context.Context, lane string, seconds float64, err error) {
	attrs := metric.WithAttributes(attribute.String("lane", lane))
	m.InferenceDuration.Record(ctx, seconds, attrs)
	if err != nil {
		m.InferenceFailures.Add(ctx, 1, attrs)
	}
}

// RecordDrop counts one overwritten frame on lane.
func (m *Metrics) RecordDrop(ctx context.Context, lane string) {
	m.FramesDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("lane", lane)))
}

// RecordPublish counts one distributed frame.
func (m *Metrics) RecordPublish(ctx context.Context) {
	m.FramesPublished.Add(ctx, 1)
}

// RecordAnnouncement counts one scheduler decision.
func (m *Metrics) RecordAnnouncement(ctx context.Context, priority, outcome string) {
	m.Announcements.Add(ctx, 1, metric.WithAttributes(
		attribute.String("priority", priority),
		attribute.String("outcome", outcome),
	))
}

// LaneActive adjusts the active lane gauge by delta.
func (m *Metrics) LaneActive(ctx context.Context, delta int64) {
	m.ActiveLanes.Add(ctx, delta)
}
