package editlock

import (
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	// DefaultTTL is the lease duration used when Acquire is called with a zero ttl.
	DefaultTTL = 30 * time.Minute
	// DefaultMaxTTL caps caller supplied TTLs.
	DefaultMaxTTL = 24 * time.Hour
	// DefaultSweepInterval is how often the Sweeper removes expired leases.
	DefaultSweepInterval = time.Minute
)

// options configures the Engine behavior (internal only).
type options struct {
	defaultTTL    time.Duration
	maxTTL        time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	logger        *slog.Logger
	meterProvider metric.MeterProvider
}

// defaultOptions returns sensible defaults.
func defaultOptions() options {
	return options{
		defaultTTL:    DefaultTTL,
		maxTTL:        DefaultMaxTTL,
		sweepInterval: DefaultSweepInterval,
		now:           func() time.Time { return time.Now().UTC() },
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		meterProvider: otel.GetMeterProvider(),
	}
}

// Option is a functional option for configuring an Engine.
type Option func(*options)

// WithDefaultTTL sets the lease duration used when callers pass a zero ttl.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.defaultTTL = ttl
		}
	}
}

// WithMaxTTL caps the lease duration callers may request. Longer TTLs are clamped.
func WithMaxTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.maxTTL = ttl
		}
	}
}

// WithSweepInterval sets how often the Sweeper runs.
func WithSweepInterval(interval time.Duration) Option {
	return func(o *options) {
		if interval > 0 {
			o.sweepInterval = interval
		}
	}
}

// WithClock replaces the time source. Used by tests to move past lease expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger for the engine.
// If the logger is nil, the engine will use a no-op logger.
// DEFAULT: A no-op logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger == nil {
			o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
			return
		}

		o.logger = logger
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider used for lease metrics.
// DEFAULT: the global provider
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(o *options) {
		if provider != nil {
			o.meterProvider = provider
		}
	}
}
