package main

import (
	"fmt"

	"github.com/fyrsmithlabs/embedgate/internal/embeddings"
	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var (
		force   bool
		version string
		dir     string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Download the ONNX runtime used by the fastembed provider",
		Long: `Download the ONNX runtime library required for local embeddings with
FastEmbed. The library is installed to:
  ~/.config/embedgate/lib/

If the ONNX_PATH environment variable is set, that path takes precedence at
startup.

Examples:
  # Download the default runtime version
  embedgate init

  # Force re-download even if already installed
  embedgate init --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force {
				if path := embeddings.ONNXLibraryPath(); path != "" {
					cmd.Printf("ONNX runtime already installed at: %s\n", path)
					cmd.Println("Use --force to re-download.")
					return nil
				}
			}

			v := version
			if v == "" {
				v = embeddings.DefaultONNXRuntimeVersion
			}
			cmd.Printf("Downloading ONNX runtime v%s...\n", v)

			path, err := embeddings.DownloadONNXRuntime(cmd.Context(), v, dir)
			if err != nil {
				return fmt.Errorf("failed to download ONNX runtime: %w", err)
			}

			cmd.Printf("Successfully installed ONNX runtime to: %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "re-download even if the runtime exists")
	cmd.Flags().StringVar(&version, "onnx-version", "", "ONNX runtime release (default "+embeddings.DefaultONNXRuntimeVersion+")")
	cmd.Flags().StringVar(&dir, "dir", "", "install directory (default ~/.config/embedgate/lib)")
	return cmd
}
