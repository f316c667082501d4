// Package commands defines all Cobra CLI commands for the courseai binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/courseai-go/internal/audit"
	"github.com/54b3r/courseai-go/internal/config"
	"github.com/54b3r/courseai-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "courseai",
		Short: "CourseAI — a retrieval-augmented assistant for course materials",
		Long: `CourseAI indexes course transcripts into a vector store and answers
questions about them through an LLM with search and outline tools.

It can ingest transcript documents, answer one-off questions from the
terminal, and serve an HTTP API with session-scoped conversations.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.courseai/config.yaml).
See 'courseai --help' for available commands.`,
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

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.courseai/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewServeCmd(),
		NewIngestCmd(),
		NewStatsCmd(),
		NewVersionCmd(),
	)

	return root
}
