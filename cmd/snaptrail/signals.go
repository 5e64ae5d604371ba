package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/snaptrail/internal/app"
	"github.com/bobmcallan/snaptrail/internal/models"
	"github.com/bobmcallan/snaptrail/internal/services/report"
)

func newSignalsCmd(opts *rootOptions) *cobra.Command {
	var date string
	var rows int

	cmd := &cobra.Command{
		Use:   "signals",
		Short: "Compute trailing stop-loss recommendations from recorded history",
		RunE: withApp(opts, func(ctx context.Context, a *app.App, cmd *cobra.Command) error {
			target, err := resolveDate(a, date)
			if err != nil {
				return err
			}
			set, err := a.SignalService.ComputeSignals(ctx, target)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.FormatSignals(set, maxRows(a, rows)))
			return nil
		}),
	}
	cmd.Flags().StringVar(&date, "date", "", "evaluate as of this date (default: resolved from now)")
	cmd.Flags().IntVar(&rows, "rows", 0, "rows per table (default from config)")
	return cmd
}

func newReportCmd(opts *rootOptions) *cobra.Command {
	var date string
	var rows int

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print account balances and signals for a date",
		RunE: withApp(opts, func(ctx context.Context, a *app.App, cmd *cobra.Command) error {
			target, err := resolveDate(a, date)
			if err != nil {
				return err
			}
			snap, err := a.ReportService.Snapshot(ctx, target)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.FormatAccounts(snap))
			fmt.Fprintln(cmd.OutOrStdout(), report.FormatSignals(snap.Signals, maxRows(a, rows)))
			return nil
		}),
	}
	cmd.Flags().StringVar(&date, "date", "", "report date (default: resolved from now)")
	cmd.Flags().IntVar(&rows, "rows", 0, "rows per signals table (default from config)")
	return cmd
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		RunE: withApp(opts, func(ctx context.Context, a *app.App, cmd *cobra.Command) error {
			runs, err := a.Storage.RunStore().ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "| Started | Target | Trigger | Processed | Skipped | Failed | Run |")
			fmt.Fprintln(out, "|---------|--------|---------|-----------|---------|--------|-----|")
			for _, r := range runs {
				fmt.Fprintf(out, "| %s | %s | %s | %d | %d | %d | %s |\n",
					r.StartedAt.In(a.Config.Location()).Format("2006-01-02 15:04:05"),
					r.TargetDate, r.Trigger,
					r.Count(models.OutcomeProcessed), r.Count(models.OutcomeSkipped), r.Count(models.OutcomeFailed), r.ID)
			}
			return nil
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}
