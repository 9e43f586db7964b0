// Package cli implements the clashtriage command line.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/clashtriage/internal/classify"
	"github.com/JonMunkholm/clashtriage/internal/config"
	"github.com/JonMunkholm/clashtriage/internal/core"
)

// Version is set at build time:
//
//	go build -ldflags "-X github.com/JonMunkholm/clashtriage/internal/cli.Version=v1.0.0"
var Version = "dev"

type rootOptions struct {
	cfgFile string
	verbose bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "clashtriage",
		Short: "AI-assisted triage of Navisworks clash reports",
		Long: `clashtriage imports a Navisworks clash report exported to CSV, asks an
AI model to classify every clash by severity and responsible discipline,
and exports the triaged report as zaki_triage_export.csv.

Run "clashtriage serve" for the web dashboard or "clashtriage triage" for
a headless run.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (yaml, toml or json)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(
		newServeCmd(opts),
		newTriageCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// load reads the configuration: environment, then --config, then defaults.
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.LoadFile(o.cfgFile)
	if err != nil {
		return nil, err
	}
	if o.verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// newClassifier builds the configured classifier, or nil when no API key is
// set. Tests replace it with a stub.
var newClassifier = func(ctx context.Context, cfg *config.Config) (core.Classifier, error) {
	if !cfg.AI.HasAPIKey() {
		return nil, nil
	}
	return classify.New(ctx, classify.Config{
		Provider:  cfg.AI.Provider,
		APIKey:    cfg.AI.APIKey,
		Model:     cfg.AI.Model,
		BaseURL:   cfg.AI.BaseURL,
		MaxTokens: cfg.AI.MaxTokens,
	})
}

// sessionConfig maps configuration onto the session. A configured cooldown
// of zero disables the pause between batches.
func sessionConfig(cfg *config.Config) core.SessionConfig {
	cooldown := cfg.Triage.Cooldown
	if cooldown == 0 {
		cooldown = -1
	}
	return core.SessionConfig{
		Triage: core.OrchestratorConfig{
			BatchSize:   cfg.Triage.BatchSize,
			Cooldown:    cooldown,
			CallTimeout: cfg.Triage.CallTimeout,
		},
		MaxImportSize: cfg.Import.MaxFileSize,
		PreviewRows:   cfg.Import.PreviewRows,
		RunRetention:  cfg.Triage.RunRetention,
	}
}
