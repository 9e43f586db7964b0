package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/clashtriage/internal/classify"
	"github.com/JonMunkholm/clashtriage/internal/config"
	"github.com/JonMunkholm/clashtriage/internal/core"
	"github.com/JonMunkholm/clashtriage/internal/logging"
)

type triageOptions struct {
	in  string
	out string
}

func newTriageCmd(opts *rootOptions) *cobra.Command {
	var t triageOptions

	cmd := &cobra.Command{
		Use:   "triage",
		Short: "Classify a clash report without the web UI",
		Long: `Import a clash report, classify every clash and write the export.

Progress is logged to stderr. Ctrl-C stops the run after the batch in
flight; the partial export is still written and unclassified clashes keep
the PENDING status.`,
		Example: `  clashtriage triage --in report.csv
  clashtriage triage --in report.csv --out - > triaged.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			// Logs go to stderr so --out - keeps stdout clean
			logging.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
			return runTriage(cmd.Context(), cfg, t, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&t.in, "in", "", "clash report CSV (required)")
	cmd.Flags().StringVar(&t.out, "out", core.ExportFileName, `export path, "-" for stdout`)
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

func runTriage(ctx context.Context, cfg *config.Config, t triageOptions, stdout io.Writer) error {
	classifier, err := newClassifier(ctx, cfg)
	if err != nil {
		return err
	}
	if classifier == nil {
		return classify.ErrMissingCredential
	}

	session := core.NewSession(classifier, sessionConfig(cfg))

	f, err := os.Open(t.in)
	if err != nil {
		return fmt.Errorf("open report: %w", err)
	}
	loaded, err := session.Load(ctx, filepath.Base(t.in), f)
	f.Close()
	if err != nil {
		return err
	}

	var interrupted bool
	runID, err := session.StartTriage(ctx)
	switch {
	case errors.Is(err, core.ErrNothingPending):
		slog.Warn("report has no clashes to triage", "file", loaded.FileName)
	case err != nil:
		return err
	default:
		summary, err := follow(ctx, session, runID)
		if err != nil {
			return err
		}
		interrupted = summary.Cancelled
		logging.WithRun(ctx, runID).Info("triage finished",
			"completed", summary.Completed,
			"failed", summary.Failed,
			"pending", summary.Selected-summary.Dispatched,
			"duration", summary.Duration,
		)
	}

	if err := writeExport(session, t.out, stdout); err != nil {
		return err
	}
	if interrupted {
		return fmt.Errorf("triage interrupted: %w", context.Canceled)
	}
	return nil
}

// follow waits for the run to finish. The first interrupt cancels the run
// cooperatively; the summary is still collected.
func follow(ctx context.Context, session *core.Session, runID string) (core.RunSummary, error) {
	progress, err := session.SubscribeProgress(runID)
	if err != nil {
		return core.RunSummary{}, err
	}

	log := logging.WithRun(ctx, runID)
	interrupt := ctx.Done()
	for {
		select {
		case p, ok := <-progress:
			if !ok {
				return session.RunResult(context.WithoutCancel(ctx), runID)
			}
			log.Debug("progress", "phase", p.Phase, "batch", p.Batch, "percent", p.Percent)

		case <-interrupt:
			interrupt = nil
			log.Warn("interrupted, stopping after the current batch")
			if err := session.CancelTriage(runID); err != nil {
				return core.RunSummary{}, err
			}
		}
	}
}

func writeExport(session *core.Session, out string, stdout io.Writer) error {
	if out == "-" {
		return session.Export(stdout)
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	if err := session.Export(f); err != nil {
		f.Close()
		return fmt.Errorf("write export: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	slog.Info("export written", "path", out)
	return nil
}
