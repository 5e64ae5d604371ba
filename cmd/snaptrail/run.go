package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/snaptrail/internal/app"
	"github.com/bobmcallan/snaptrail/internal/calendar"
	"github.com/bobmcallan/snaptrail/internal/models"
	"github.com/bobmcallan/snaptrail/internal/services/report"
	"github.com/bobmcallan/snaptrail/internal/services/snapshot"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var now string
	var rows int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the snapshot pipeline once and print signals",
		RunE: withApp(opts, func(ctx context.Context, a *app.App, cmd *cobra.Command) error {
			at, err := parseNow(now, a.Config.Location())
			if err != nil {
				return err
			}

			run, err := a.SnapshotService.Run(snapshot.WithTrigger(ctx, snapshot.TriggerManual), at)
			if run != nil {
				fmt.Fprintln(cmd.OutOrStdout(), report.FormatRunSummary(run))
			}
			if err != nil {
				return err
			}

			target := a.SnapshotService.TargetDate(at)
			set, err := a.SignalService.ComputeSignals(ctx, target)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.FormatSignals(set, maxRows(a, rows)))

			if n := run.Count(models.OutcomeFailed); n > 0 {
				return fmt.Errorf("%d account(s) failed", n)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&now, "now", "", "run as of this instant (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().IntVar(&rows, "rows", 0, "rows per signals table (default from config)")
	return cmd
}

func newPlanCmd(opts *rootOptions) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what a run would do, without doing it",
		RunE: withApp(opts, func(ctx context.Context, a *app.App, cmd *cobra.Command) error {
			target, err := resolveDate(a, date)
			if err != nil {
				return err
			}
			plan, err := a.PlannerService.PlanFor(ctx, target)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# Plan: %s\n\n", plan.TargetDate)
			fmt.Fprintln(out, "| Account | Action | Fetch | Materialize |")
			fmt.Fprintln(out, "|---------|--------|-------|-------------|")
			for _, d := range plan.Decisions {
				fmt.Fprintf(out, "| %s | %s | %s | %s |\n", d.Account, d.Action, datasets(d.Fetch), datasets(d.Materialize))
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&date, "date", "", "target date (default: resolved from now)")
	return cmd
}

func newBackfillCmd(opts *rootOptions) *cobra.Command {
	var date string
	var all bool

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Materialize raw entries that have no columnar partition yet",
		RunE: withApp(opts, func(ctx context.Context, a *app.App, cmd *cobra.Command) error {
			var dates []calendar.Date
			if all {
				raw, err := a.SnapshotService.RawDates(ctx)
				if err != nil {
					return err
				}
				dates = raw
			} else {
				target, err := resolveDate(a, date)
				if err != nil {
					return err
				}
				dates = []calendar.Date{target}
			}

			failed := 0
			for _, d := range dates {
				run, err := a.SnapshotService.Backfill(ctx, d)
				if err != nil {
					return err
				}
				failed += run.Count(models.OutcomeFailed)
				if all && run.Count(models.OutcomeProcessed) == 0 && run.Count(models.OutcomeFailed) == 0 {
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), report.FormatRunSummary(run))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backfill checked %d date(s)\n", len(dates))
			if failed > 0 {
				return fmt.Errorf("%d account(s) failed", failed)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&date, "date", "", "date to backfill (default: resolved from now)")
	cmd.Flags().BoolVar(&all, "all", false, "backfill every date present in the raw log")
	return cmd
}

func datasets(ds []models.Dataset) string {
	if len(ds) == 0 {
		return "-"
	}
	s := string(ds[0])
	for _, d := range ds[1:] {
		s += ", " + string(d)
	}
	return s
}

func maxRows(a *app.App, flag int) int {
	if flag > 0 {
		return flag
	}
	return a.Config.Signals.MaxRows
}
