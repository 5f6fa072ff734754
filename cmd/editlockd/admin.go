package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	editlock "go-editlock"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the lease and document tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdmin(cmd, func(ctx context.Context, engine *editlock.Engine, b *backend) error {
				// openBackend migrates SQL stores on open
				fmt.Fprintf(cmd.OutOrStdout(), "%s store ready\n", b.kind)
				return nil
			})
		},
	}
}

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove every expired lease once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdmin(cmd, func(ctx context.Context, engine *editlock.Engine, b *backend) error {
				removed, err := engine.Sweep(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired lease(s)\n", removed)
				return nil
			})
		},
	}
}

func newAcquireCommand() *cobra.Command {
	var (
		ttl       time.Duration
		coEditing bool
	)

	var cmd = &cobra.Command{
		Use:   "acquire <document-id> <version> <holder>",
		Short: "Acquire or renew an edit lease",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseTarget(args[0], args[1])
			if err != nil {
				return err
			}
			return runAdmin(cmd, func(ctx context.Context, engine *editlock.Engine, b *backend) error {
				result, err := engine.Acquire(ctx, target, args[2], ttl, coEditing)
				if err != nil {
					return err
				}
				var out = cmd.OutOrStdout()
				if !result.OK {
					fmt.Fprintf(out, "locked by %s (expires %s)\n", result.Holder, humanize.Time(result.ExpiresAt))
					return result.Err()
				}
				fmt.Fprintf(out, "%s %s\n", result.Outcome, result.Message)
				fmt.Fprintf(out, "  lease:   %s\n", result.LeaseKey)
				fmt.Fprintf(out, "  session: %s\n", result.SessionID)
				fmt.Fprintf(out, "  expires: %s (%s)\n", result.ExpiresAt.Format(time.RFC3339), humanize.Time(result.ExpiresAt))
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Lease duration (0 uses --default-ttl)")
	cmd.Flags().BoolVar(&coEditing, "co-editing", false, "Start or join a co-editing session")
	return cmd
}

func newReleaseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "release <document-id> <version> <holder>",
		Short: "Release a holder's lease",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseTarget(args[0], args[1])
			if err != nil {
				return err
			}
			return runAdmin(cmd, func(ctx context.Context, engine *editlock.Engine, b *backend) error {
				removed, err := engine.Release(ctx, target, args[2])
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("%s holds no lease on %s", args[2], target)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "released %s\n", target)
				return nil
			})
		},
	}
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <document-id> <version> <holder>",
		Short: "Tell whether a holder may write a version now",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseTarget(args[0], args[1])
			if err != nil {
				return err
			}
			return runAdmin(cmd, func(ctx context.Context, engine *editlock.Engine, b *backend) error {
				status, err := engine.CanWrite(ctx, target, args[2])
				if err != nil {
					return err
				}
				var out = cmd.OutOrStdout()
				fmt.Fprintf(out, "can edit: %t\n", status.CanEdit)
				fmt.Fprintf(out, "reason:   %s\n", status.Reason)
				if status.Holder != "" {
					fmt.Fprintf(out, "holder:   %s (expires %s)\n", status.Holder, humanize.Time(status.ExpiresAt))
				}

				info, err := engine.Session(ctx, target)
				if err != nil {
					if isNotFound(err) {
						return nil
					}
					return err
				}
				fmt.Fprintf(out, "session:  %s (co-editing: %t, %d member(s))\n", info.ID, info.CoEditing, len(info.Members))
				return nil
			})
		},
	}
}

func newCoEditorsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "coeditors <document-id> <version>",
		Short: "List holders in the live co-editing session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseTarget(args[0], args[1])
			if err != nil {
				return err
			}
			return runAdmin(cmd, func(ctx context.Context, engine *editlock.Engine, b *backend) error {
				holders, err := engine.ListCoEditors(ctx, target)
				if err != nil {
					return err
				}
				for _, holder := range holders {
					fmt.Fprintln(cmd.OutOrStdout(), holder)
				}
				return nil
			})
		},
	}
}

func newEndSessionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "end-session <document-id> <version> <session-id>",
		Short: "End a session, removing every member lease",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseTarget(args[0], args[1])
			if err != nil {
				return err
			}
			return runAdmin(cmd, func(ctx context.Context, engine *editlock.Engine, b *backend) error {
				removed, err := engine.EndSession(ctx, target, args[2])
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("no lease in session %s on %s", args[2], target)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ended session %s\n", args[2])
				return nil
			})
		},
	}
}

func newLocksCommand() *cobra.Command {
	var holder string

	var cmd = &cobra.Command{
		Use:   "locks",
		Short: "List live leases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdmin(cmd, func(ctx context.Context, engine *editlock.Engine, b *backend) error {
				var (
					leases []editlock.Lease
					err    error
				)
				if holder != "" {
					leases, err = engine.LeasesHeldBy(ctx, holder)
				} else {
					leases, err = engine.ListActive(ctx)
				}
				if err != nil {
					return err
				}
				return printLeases(cmd.OutOrStdout(), leases)
			})
		},
	}

	cmd.Flags().StringVar(&holder, "holder", "", "Only list leases held by this holder")
	return cmd
}

// runAdmin runs a one-shot command against the configured store.
func runAdmin(cmd *cobra.Command, fn func(context.Context, *editlock.Engine, *backend) error) error {
	var ctx, cancel = context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	return withEngine(ctx, newLogger(), func(engine *editlock.Engine, b *backend) error {
		return fn(ctx, engine, b)
	})
}

func parseTarget(documentID, version string) (editlock.Target, error) {
	seq, err := strconv.Atoi(version)
	if err != nil {
		return editlock.Target{}, fmt.Errorf("%w: version %q is not a number", editlock.ErrInvalidArgument, version)
	}
	return editlock.Target{DocumentID: documentID, VersionSeq: seq}, nil
}

func printLeases(w io.Writer, leases []editlock.Lease) error {
	var tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tHOLDER\tMODE\tSESSION\tEXPIRES")
	for _, l := range leases {
		var mode = "exclusive"
		if l.CoEditing {
			mode = "co-editing"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", l.Target, l.Holder, mode, l.SessionID, humanize.Time(l.ExpiresAt))
	}
	return tw.Flush()
}

func isNotFound(err error) bool {
	return errors.Is(err, editlock.ErrNotFound)
}
