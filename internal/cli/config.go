package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect clashtriage configuration",
		Long: `Inspect the effective configuration.

Configuration hierarchy (highest to lowest priority):
1. Environment variables (API_KEY, TRIAGE_BATCH_SIZE, ...)
2. Config file (--config)
3. Defaults`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Long:  `Print the effective configuration as YAML. The API key is masked.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			if opts.cfgFile != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Configuration file: %s\n\n", opts.cfgFile)
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "No configuration file (environment and defaults)\n\n")
			}

			masked := cfg.Masked()
			data, err := yaml.Marshal(&masked)
			if err != nil {
				return fmt.Errorf("error marshaling config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "clashtriage %s\n", Version)
		},
	}
}
