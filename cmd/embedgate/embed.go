package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/embedgate/internal/config"
	"github.com/fyrsmithlabs/embedgate/internal/embeddings"
	httpserver "github.com/fyrsmithlabs/embedgate/internal/http"
	"github.com/fyrsmithlabs/embedgate/internal/logging"
	"github.com/spf13/cobra"
)

func newEmbedCmd(configPath *string) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "embed [text...]",
		Short: "Embed texts with the configured model and print the API response",
		Long: `Load the configured model, embed each argument (or each line of stdin
when no arguments are given) and print the same JSON document that
POST /v1/embeddings would return.

Examples:
  embedgate embed "hello world"
  cat sentences.txt | MODEL=BAAI/bge-small-en-v1.5 embedgate embed`,
		RunE: func(cmd *cobra.Command, args []string) error {
			texts := args
			if len(texts) == 0 {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					texts = append(texts, scanner.Text())
				}
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
			}
			if len(texts) == 0 {
				return errors.New("no input texts")
			}

			cfg, err := config.LoadWithFile(*configPath)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}

			logger := logging.NewNop()
			if verbose {
				logCfg, err := logging.FromSettings(cfg.Logging.Level, "console")
				if err != nil {
					return err
				}
				if logger, err = logging.NewLogger(logCfg, nil); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			registry, err := embeddings.NewRegistry(ctx, embeddings.ProviderConfigFromSettings(cfg.Model, cfg.Embeddings), logger, nil)
			if err != nil {
				return err
			}
			defer registry.Close()

			resp, err := httpserver.CreateEmbeddings(ctx, registry.Default(), registry.DefaultName(),
				httpserver.Input{Kind: httpserver.InputList, List: texts})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log model loading to stdout")
	return cmd
}
