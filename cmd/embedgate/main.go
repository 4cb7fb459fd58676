// Embedgate serves a single embedding model behind an OpenAI-compatible
// REST endpoint.
//
// Configuration is loaded from environment variables and an optional YAML
// file. See internal/config for details.
//
// Usage:
//
//	# Start the gateway with defaults (all-MiniLM-L6-v2 on :8080)
//	embedgate
//
//	# Require a bearer token and pick another model
//	MODEL=BAAI/bge-small-en-v1.5 API_KEY=s3cret embedgate serve
//
//	# Embed texts from the command line
//	embedgate embed "hello world" "second text"
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Running the root without a
// subcommand starts the server.
func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "embedgate",
		Short: "OpenAI-compatible embedding gateway",
		Long: `embedgate loads one embedding model at startup and serves it through
POST /v1/embeddings, with optional bearer authentication, a health check at
/healthz and Prometheus metrics at /metrics.`,
		Version:      version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, configPath)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "optional YAML config file (mode 0600)")

	rootCmd.AddCommand(
		newServeCmd(&configPath),
		newEmbedCmd(&configPath),
		newModelsCmd(),
		newInitCmd(),
		newVersionCmd(),
	)
	return rootCmd
}
