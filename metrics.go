package editlock

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "go-editlock"

type leaseMetrics struct {
	acquireCount    metric.Int64Counter
	acquireDuration metric.Int64Histogram
	releaseCount    metric.Int64Counter
	sessionEnd      metric.Int64Counter
	swept           metric.Int64Counter
}

func newLeaseMetrics(provider metric.MeterProvider, logger *slog.Logger) *leaseMetrics {
	var meter = provider.Meter(meterName)
	var m = &leaseMetrics{}
	var err error

	m.acquireCount, err = meter.Int64Counter(
		"editlock.lease.acquire",
		metric.WithDescription("Lease acquisitions by outcome"),
	)
	logMetricInitError(logger, "editlock.lease.acquire", err)

	m.acquireDuration, err = meter.Int64Histogram(
		"editlock.lease.acquire.duration_ms",
		metric.WithDescription("Lease acquire duration"),
		metric.WithUnit("ms"),
	)
	logMetricInitError(logger, "editlock.lease.acquire.duration_ms", err)

	m.releaseCount, err = meter.Int64Counter(
		"editlock.lease.release",
		metric.WithDescription("Leases removed by release"),
	)
	logMetricInitError(logger, "editlock.lease.release", err)

	m.sessionEnd, err = meter.Int64Counter(
		"editlock.session.end",
		metric.WithDescription("Leases removed by ending a session"),
	)
	logMetricInitError(logger, "editlock.session.end", err)

	m.swept, err = meter.Int64Counter(
		"editlock.lease.swept",
		metric.WithDescription("Expired leases removed by sweeps"),
	)
	logMetricInitError(logger, "editlock.lease.swept", err)

	return m
}

func logMetricInitError(logger *slog.Logger, name string, err error) {
	if err != nil && logger != nil {
		logger.Warn("Failed to create metric instrument", "name", name, "error", err)
	}
}

func resultLabel(outcome Outcome, err error) string {
	if err != nil {
		return "error"
	}
	return string(outcome)
}

func (m *leaseMetrics) recordAcquire(ctx context.Context, outcome Outcome, duration time.Duration, err error) {
	if m == nil {
		return
	}
	var attrs = metric.WithAttributes(attribute.String("editlock.lease.result", resultLabel(outcome, err)))
	if m.acquireCount != nil {
		m.acquireCount.Add(ctx, 1, attrs)
	}
	if m.acquireDuration != nil {
		m.acquireDuration.Record(ctx, duration.Milliseconds(), attrs)
	}
}

func (m *leaseMetrics) recordRelease(ctx context.Context, removed int64) {
	if m == nil || m.releaseCount == nil || removed == 0 {
		return
	}
	m.releaseCount.Add(ctx, removed)
}

func (m *leaseMetrics) recordSessionEnd(ctx context.Context, removed int64) {
	if m == nil || m.sessionEnd == nil || removed == 0 {
		return
	}
	m.sessionEnd.Add(ctx, removed)
}

func (m *leaseMetrics) recordSwept(ctx context.Context, removed int64) {
	if m == nil || m.swept == nil || removed == 0 {
		return
	}
	m.swept.Add(ctx, removed)
}
