package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/snaptrail/internal/app"
	"github.com/bobmcallan/snaptrail/internal/calendar"
	"github.com/bobmcallan/snaptrail/internal/common"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "snaptrail",
		Short: "Idempotent daily holdings snapshots with trailing stop-loss signals",
		Long: `snaptrail records one holdings and one funds snapshot per broker account per
trading day, exactly once, and derives trailing stop-loss recommendations from the
recorded history.

Re-running a day never fetches data that is already stored: an interrupted run
resumes where it stopped.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $SNAPTRAIL_CONFIG, then snaptrail.toml)")

	cmd.AddCommand(
		newRunCmd(opts),
		newPlanCmd(opts),
		newBackfillCmd(opts),
		newSignalsCmd(opts),
		newReportCmd(opts),
		newHistoryCmd(opts),
		newScheduleCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// withApp initializes the app for the duration of fn.
func withApp(opts *rootOptions, fn func(ctx context.Context, a *app.App, cmd *cobra.Command) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		a, err := app.NewApp(opts.configPath)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd.Context(), a, cmd)
	}
}

// resolveDate parses --date, defaulting to the target date for now.
func resolveDate(a *app.App, raw string) (calendar.Date, error) {
	if raw == "" {
		return a.SnapshotService.TargetDate(time.Now()), nil
	}
	return calendar.Parse(raw)
}

// parseNow accepts RFC3339 or a bare date (taken as 17:00 in loc).
func parseNow(raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return time.Now(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	d, err := calendar.Parse(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("--now: want RFC3339 or %s: %w", calendar.Layout, err)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 17, 0, 0, 0, loc), nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			common.LoadVersionFromFile()
			fmt.Fprintf(cmd.OutOrStdout(), "snaptrail %s\n", common.GetFullVersion())
			return nil
		},
	}
}
