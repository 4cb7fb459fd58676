package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/fyrsmithlabs/embedgate/internal/embeddings"
	"github.com/spf13/cobra"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models the fastembed provider can load",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tFASTEMBED ID\tDIM")
			for _, m := range embeddings.Models() {
				fmt.Fprintf(w, "%s\t%s\t%d\n", m.Name, m.ID, m.Dimension)
			}
			if !embeddings.FastEmbedAvailable {
				cmd.PrintErrln("note: built without cgo; only the tei provider is usable")
			}
			return w.Flush()
		},
	}
}
