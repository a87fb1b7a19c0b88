// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/schema-extract/internal/chunk"
	"github.com/pdiddy/schema-extract/internal/schema"
	"github.com/pdiddy/schema-extract/internal/tokenizer"
)

// errCoverage is returned by chunk --strict when required properties are
// left out of every chunk.
var errCoverage = errors.New("required properties not covered by any chunk")

var chunkCmd = &cobra.Command{
	Use:   "chunk <schema>",
	Short: "Split a JSON Schema into token-bounded chunks",
	Long: `Chunk measures every top-level property of the schema with its references
inlined, packs the properties into batches under the token threshold, and
writes one standalone schema per batch as schema_chunk_<i>.json.

The schema may be JSON or YAML. Use --dry-run to print the plan only.`,
	Args: cobra.ExactArgs(1),
	RunE: runChunk,
}

func runChunk(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	strict, _ := cmd.Flags().GetBool("strict")

	res, err := planSchema(args[0])
	if err != nil {
		return err
	}

	rows, err := summarize(res)
	if err != nil {
		return err
	}
	formatPlan(cmd.OutOrStdout(), args[0], cfg.Chunk.Threshold, rows, res)

	if !dryRun && len(res.Chunks) > 0 {
		paths, err := chunk.WriteFiles(cfg.Chunk.OutputDir, res.Chunks, cfg.Chunk.Pretty)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d files in %s\n", dimStyle.Render("Wrote"), len(paths), cfg.Chunk.OutputDir)
	}

	if strict && !res.Coverage.Passed {
		return fmt.Errorf("%w: %s", errCoverage, strings.Join(res.Coverage.Missing, ", "))
	}
	return nil
}

// planSchema loads the schema at path and plans it with the configured
// chunk settings.
func planSchema(path string) (*chunk.Result, error) {
	doc, err := schema.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Info("planning schema", "path", path, "tokenizer", cfg.Chunk.Tokenizer,
		"threshold", cfg.Chunk.Threshold, "sort", cfg.Chunk.SortProps)

	return chunk.Plan(doc, chunk.Options{
		Tokenizer: cfg.Chunk.Tokenizer,
		Threshold: cfg.Chunk.Threshold,
		SortProps: cfg.Chunk.SortProps,
		Logger:    logger,
	})
}

// summarize measures each assembled chunk with the planning tokenizer.
func summarize(res *chunk.Result) ([]chunkSummary, error) {
	tok, err := tokenizer.Get(cfg.Chunk.Tokenizer)
	if err != nil {
		return nil, err
	}
	rows := make([]chunkSummary, len(res.Chunks))
	for i, c := range res.Chunks {
		data, err := c.Marshal(false)
		if err != nil {
			return nil, fmt.Errorf("encoding chunk %d: %w", i+1, err)
		}
		rows[i] = chunkSummary{
			Properties:  c.PropertyNames(),
			Definitions: len(c.Definitions),
			Batch:       res.Batches[i].Tokens,
			Tokens:      tokenizer.CountText(string(data), tok),
		}
	}
	return rows, nil
}

func init() {
	chunkCmd.Flags().String("tokenizer", "", "token encoding: "+strings.Join(tokenizer.Names(), ", "))
	chunkCmd.Flags().Int("threshold", chunk.DefaultThreshold, "token budget per chunk")
	chunkCmd.Flags().Bool("sort", true, "order properties by name before packing")
	chunkCmd.Flags().Bool("pretty", false, "indent chunk files")
	chunkCmd.Flags().String("out", "", "directory for chunk files")
	chunkCmd.Flags().Bool("dry-run", false, "print the plan without writing files")
	chunkCmd.Flags().Bool("strict", false, "exit non-zero when required properties are not covered")

	rootCmd.AddCommand(chunkCmd)
}

// readInput reads a file, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}
