package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// telemetry owns the meter provider and the /metrics server.
type telemetry struct {
	provider *sdkmetric.MeterProvider
	server   *http.Server
	logger   *slog.Logger
}

// startTelemetry exposes engine metrics in Prometheus format on listen.
// With an empty address it returns nil and metrics are not recorded.
func startTelemetry(listen string, logger *slog.Logger) (*telemetry, error) {
	listen = strings.TrimSpace(listen)
	if listen == "" {
		return nil, nil
	}

	var registry = prometheus.NewRegistry()
	exporter, err := otelprometheus.New(otelprometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to start prometheus exporter: %w", err)
	}
	var provider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to listen for metrics: %w", err)
	}

	var mux = http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	var server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err)
		}
	}()

	logger.Info("Metrics enabled", "listen", ln.Addr().String())
	return &telemetry{provider: provider, server: server, logger: logger}, nil
}

// MeterProvider returns the provider to hand to the engine. A nil telemetry
// yields a no-op provider.
func (t *telemetry) MeterProvider() metric.MeterProvider {
	if t == nil {
		return noop.NewMeterProvider()
	}
	return t.provider
}

func (t *telemetry) Shutdown(ctx context.Context) {
	if t == nil {
		return
	}
	if err := t.server.Shutdown(ctx); err != nil {
		t.logger.Warn("Failed to stop metrics server", "error", err)
	}
	if err := t.provider.Shutdown(ctx); err != nil {
		t.logger.Warn("Failed to stop meter provider", "error", err)
	}
}
