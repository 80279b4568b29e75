// Package commands defines all Cobra CLI commands for the dsla binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/dsla-ai/dsla/internal/audit"
	"github.com/dsla-ai/dsla/internal/config"
	"github.com/dsla-ai/dsla/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dsla",
		Short: "DSLA — domain-specific LLM adapter service",
		Long: `DSLA adapts language model workflows to specialized domains.

It bundles domain adapters (legal document analysis, trading operations),
keyword routing, a local vector retrieval index, and a SQLite-backed
structured memory behind a single HTTP API and CLI.

The embedding backend is selected via the EMBEDDING_BACKEND environment
variable or a YAML config file (~/.dsla/config.yaml).
See 'dsla --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.dsla/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewSearchCmd(),
		NewVersionCmd(),
	)

	return root
}
