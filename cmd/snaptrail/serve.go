package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/snaptrail/internal/app"
	"github.com/bobmcallan/snaptrail/internal/common"
	"github.com/bobmcallan/snaptrail/internal/models"
	"github.com/bobmcallan/snaptrail/internal/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only HTTP API",
		RunE: withApp(opts, func(ctx context.Context, a *app.App, cmd *cobra.Command) error {
			common.PrintBanner(a.Config, a.Logger, "serve")
			srv := server.NewServer(a)
			return serveUntilSignal(a, srv)
		}),
	}
}

func newScheduleCmd(opts *rootOptions) *cobra.Command {
	var serve bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the snapshot pipeline on the configured cron schedule",
		RunE: withApp(opts, func(ctx context.Context, a *app.App, cmd *cobra.Command) error {
			common.PrintBanner(a.Config, a.Logger, "schedule")
			if !serve && !a.Config.Scheduler.Serve {
				if err := a.StartScheduler(); err != nil {
					return err
				}
				waitForSignal(a)
				return nil
			}

			srv := server.NewServer(a)
			a.OnRunComplete(func(*models.RunReport) { srv.InvalidateCache() })
			if err := a.StartScheduler(); err != nil {
				return err
			}
			return serveUntilSignal(a, srv)
		}),
	}
	cmd.Flags().BoolVar(&serve, "serve", false, "also serve the read-only HTTP API")
	return cmd
}

func serveUntilSignal(a *app.App, srv *server.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-sigChan:
		a.Logger.Info().Msg("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	common.PrintShutdownBanner(a.Logger)
	return nil
}

func waitForSignal(a *app.App) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	<-sigChan
	a.Logger.Info().Msg("Shutdown signal received")
	common.PrintShutdownBanner(a.Logger)
}
