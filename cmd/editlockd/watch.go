package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	editlock "go-editlock"

	"github.com/eiannone/keyboard"
	"github.com/spf13/cobra"
)

func newWatchCommand() *cobra.Command {
	var refresh time.Duration

	var cmd = &cobra.Command{
		Use:   "watch",
		Short: "Show live leases, refreshing until quit",
		Long: `Watch redraws the table of live leases on every refresh.

Controls:
  [s] sweep expired leases now
  [q] quit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var logger = newLogger()
			return withEngine(cmd.Context(), logger, func(engine *editlock.Engine, b *backend) error {
				return runWatch(cmd.Context(), engine, refresh, logger)
			})
		},
	}

	cmd.Flags().DurationVar(&refresh, "refresh", time.Second, "Refresh interval")
	return cmd
}

func runWatch(ctx context.Context, engine *editlock.Engine, refresh time.Duration, logger *slog.Logger) error {
	if err := keyboard.Open(); err != nil {
		return fmt.Errorf("failed to initialize keyboard: %w", err)
	}
	defer keyboard.Close()

	var (
		keyCh = make(chan rune)
		done  = make(chan struct{})
	)
	defer close(done)
	go readKeys(getKey, keyCh, done)

	var ticker = time.NewTicker(refresh)
	defer ticker.Stop()

	var notice string
	printLeaseTable(ctx, engine, notice)

	for {
		select {
		case <-ticker.C:
			printLeaseTable(ctx, engine, notice)
		case key := <-keyCh:
			switch key {
			case 's', 'S':
				removed, err := engine.Sweep(ctx)
				if err != nil {
					logger.Error("Failed to sweep expired leases", "error", err)
					notice = "sweep failed: " + err.Error()
				} else {
					notice = fmt.Sprintf("swept %d expired lease(s) at %s", removed, time.Now().Format(time.TimeOnly))
				}
				printLeaseTable(ctx, engine, notice)
			case 'q', 'Q':
				fmt.Printf("\n")
				return nil
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func getKey() (rune, error) {
	char, _, err := keyboard.GetKey()
	return char, err
}

// readKeys forwards key presses until done is closed or the keyboard is.
func readKeys(next func() (rune, error), keyCh chan<- rune, done <-chan struct{}) {
	for {
		char, err := next()
		if err != nil {
			return
		}
		select {
		case keyCh <- char:
		case <-done:
			return
		}
	}
}

func printLeaseTable(ctx context.Context, engine *editlock.Engine, notice string) {
	fmt.Print("\033[2J\033[H") // Clear screen and move cursor to top

	leases, err := engine.ListActive(ctx)
	if err != nil {
		fmt.Printf("⚠️  LEASE STORE UNAVAILABLE: %v\n", err)
	} else {
		fmt.Printf("%d live lease(s) at %s\n\n", len(leases), time.Now().Format(time.TimeOnly))
		_ = printLeases(os.Stdout, leases)
	}

	if notice != "" {
		fmt.Printf("\n%s\n", notice)
	}

	fmt.Printf("\nControls:\n")
	fmt.Printf("  [s] Sweep expired leases\n")
	fmt.Printf("  [q] Quit\n")
}
