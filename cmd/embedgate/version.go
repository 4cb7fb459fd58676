package main

import (
	"fmt"
	"runtime"

	"github.com/fyrsmithlabs/embedgate/internal/embeddings"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "embedgate %s\n", version)
			fmt.Fprintf(out, "  commit:    %s\n", gitCommit)
			fmt.Fprintf(out, "  built:     %s\n", buildDate)
			fmt.Fprintf(out, "  go:        %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			fmt.Fprintf(out, "  fastembed: %t\n", embeddings.FastEmbedAvailable)
		},
	}
}
