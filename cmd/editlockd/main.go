package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	editlock "go-editlock"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configKeys = []string{
	"config",
	"store",
	"table",
	"listen",
	"metrics-listen",
	"default-ttl",
	"max-ttl",
	"sweep-interval",
	"log-level",
}

func main() {
	var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var rootCmd = &cobra.Command{
		Use:   "editlockd",
		Short: "Edit lock and co-editing service for versioned documents",
		Long: `Editlockd grants time-bounded edit leases on document versions.
A version is either held by one exclusive editor or shared by a co-editing
session; expired leases are reclaimed lazily and by a background sweeper.

Every flag can also be set through the environment (EDITLOCK_STORE,
EDITLOCK_DEFAULT_TTL, ...) or a config file passed with --config.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig()
		},
	}

	var flags = rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (yaml, toml or json)")
	flags.String("store", "sqlite://editlock.db", "Lease store: postgres://..., sqlite://path, memory:// or docstore:<collection url>")
	flags.String("table", "editlock", "Table prefix for SQL stores")
	flags.String("listen", ":8080", "HTTP API listen address")
	flags.String("metrics-listen", "", "Prometheus metrics listen address (disabled when empty)")
	flags.Duration("default-ttl", editlock.DefaultTTL, "Lease duration when the caller passes none")
	flags.Duration("max-ttl", editlock.DefaultMaxTTL, "Upper bound for requested lease durations")
	flags.Duration("sweep-interval", editlock.DefaultSweepInterval, "How often expired leases are removed")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")

	for _, name := range configKeys {
		bindFlag(rootCmd, name)
	}

	viper.SetEnvPrefix("EDITLOCK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newSweepCommand(),
		newAcquireCommand(),
		newReleaseCommand(),
		newStatusCommand(),
		newCoEditorsCommand(),
		newEndSessionCommand(),
		newLocksCommand(),
		newWatchCommand(),
	)

	return rootCmd
}

func bindFlag(cmd *cobra.Command, name string) {
	if err := viper.BindPFlag(name, cmd.PersistentFlags().Lookup(name)); err != nil {
		panic(fmt.Sprintf("failed to bind flag %s: %v", name, err))
	}
}

func loadConfig() error {
	var path = strings.TrimSpace(viper.GetString("config"))
	if path == "" {
		return nil
	}

	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return nil
}

func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
		level = slog.LevelInfo
	}

	// Logs go to stderr so command output on stdout stays parseable
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

func engineOptions(logger *slog.Logger) []editlock.Option {
	return []editlock.Option{
		editlock.WithDefaultTTL(viper.GetDuration("default-ttl")),
		editlock.WithMaxTTL(viper.GetDuration("max-ttl")),
		editlock.WithSweepInterval(viper.GetDuration("sweep-interval")),
		editlock.WithLogger(logger),
	}
}

// commandTimeout bounds one-shot admin commands.
const commandTimeout = 30 * time.Second
