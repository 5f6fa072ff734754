package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	editlock "go-editlock"
	"go-editlock/httpapi"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and sweep expired leases",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	var (
		ctx    = cmd.Context()
		logger = newLogger()
	)

	metrics, err := startTelemetry(viper.GetString("metrics-listen"), logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		metrics.Shutdown(shutdownCtx)
	}()

	return withEngine(ctx, logger, func(engine *editlock.Engine, b *backend) error {
		var sweeper = editlock.NewSweeper(engine)
		if err := sweeper.Start(ctx); err != nil {
			return fmt.Errorf("failed to start sweeper: %w", err)
		}
		defer sweeper.Stop()

		var mux = http.NewServeMux()
		httpapi.NewHandler(engine, b.docs, logger).Register(mux)

		var server = &http.Server{
			Addr:              viper.GetString("listen"),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		var errCh = make(chan error, 1)
		go func() {
			logger.Info("Serving edit lock API",
				"listen", server.Addr,
				"store", b.kind,
				"sweep_interval", engine.SweepInterval(),
			)
			errCh <- server.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to serve: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down http server: %w", err)
		}
		return nil
	}, editlock.WithMeterProvider(metrics.MeterProvider()))
}
