package cli

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/clashtriage/internal/config"
	"github.com/JonMunkholm/clashtriage/internal/core"
	"github.com/JonMunkholm/clashtriage/internal/logging"
	"github.com/JonMunkholm/clashtriage/internal/web"
)

// cancelGrace bounds the wait for a cancelled run and the HTTP shutdown
// once the shutdown timeout has been spent.
const cancelGrace = 5 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web dashboard",
		Long: `Serve the triage dashboard and JSON API.

On SIGINT or SIGTERM the server waits for an active triage run to finish,
up to the shutdown timeout, then cancels it and stops.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"provider", cfg.AI.Provider,
		"batch_size", cfg.Triage.BatchSize,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	classifier, err := newClassifier(ctx, cfg)
	if err != nil {
		return err
	}
	if classifier == nil {
		slog.Warn("no API key configured, triage disabled", "provider", cfg.AI.Provider)
	}

	session := core.NewSession(classifier, sessionConfig(cfg))
	server := web.NewServer(session, cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let the active run finish (with timeout)
		if runID := session.ActiveRun(); runID != "" {
			slog.Info("waiting for triage run to complete", "run_id", runID)
			if err := session.WaitForRuns(shutdownCtx); err != nil {
				slog.Warn("triage run did not complete in time, cancelling", "run_id", runID, "error", err)
				cancel()
				shutdownCtx, cancel = context.WithTimeout(context.Background(), cancelGrace)
				defer cancel()
				if err := session.Shutdown(shutdownCtx); err != nil {
					slog.Error("triage run did not stop", "run_id", runID, "error", err)
				}
			} else {
				slog.Info("triage run completed")
			}
		}

		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}
