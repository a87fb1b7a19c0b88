// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/openai/openai-go/option"
	"github.com/spf13/cobra"

	"github.com/pdiddy/schema-extract/internal/chunk"
	"github.com/pdiddy/schema-extract/internal/extract"
	"github.com/pdiddy/schema-extract/internal/runs"
	"github.com/pdiddy/schema-extract/internal/secrets"
	"github.com/pdiddy/schema-extract/pkg/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract <schema> <document>",
	Short: "Extract structured data from a document, one model call per chunk",
	Long: `Extract chunks the schema, sends the document to the configured model once
per chunk, and merges the returned objects into one result. Chunks that fail
are recorded as {"error", "raw_text"} envelopes and do not stop the run.

The merged result is written to the output directory and the run is recorded
in the run history database. Use "-" as the document to read stdin.`,
	Args: cobra.ExactArgs(2),
	RunE: runExtract,
}

func runExtract(cmd *cobra.Command, args []string) error {
	schemaPath, docPath := args[0], args[1]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	document, err := readInput(cmd, docPath)
	if err != nil {
		return err
	}

	plan, err := planSchema(schemaPath)
	if err != nil {
		return err
	}
	if len(plan.Chunks) == 0 {
		return fmt.Errorf("schema %s produced no chunks", schemaPath)
	}

	backend, err := newBackend(cfg.Extraction.AIConfig)
	if err != nil {
		return err
	}

	runner := &extract.Runner{
		Backend:     backend,
		Concurrency: cfg.Extraction.Concurrency,
		MaxRetries:  cfg.Extraction.MaxRetries,
		Validate:    cfg.Extraction.Validate,
		Logger:      logger,
	}
	out, err := runner.Run(ctx, string(document), plan.Chunks)
	if err != nil {
		return err
	}

	run := newRun(schemaPath, docPath, plan, out)

	store, err := runs.NewStore(cfg.Store.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Save(ctx, run); err != nil {
		return err
	}

	resultPath, err := writeResult(run.ID, out)
	if err != nil {
		return err
	}

	formatRun(cmd.OutOrStdout(), run, out, resultPath)
	if out.Failed() == len(out.Results) {
		return fmt.Errorf("all %d chunks failed", len(out.Results))
	}
	return nil
}

// transportRetries bounds HTTP-level retries inside one chunk attempt.
// extraction.max_retries counts the chunk attempts around them.
const transportRetries = 1

// newBackend builds the model backend for the configured provider.
func newBackend(ai types.AIConfig) (extract.AIBackend, error) {
	key := ai.APIKey
	if key == "" {
		var err error
		key, err = secrets.APIKey(loadedSecrets, ai.Provider)
		if err != nil {
			return nil, err
		}
	}

	switch strings.ToLower(ai.Provider) {
	case "openai":
		opts := []option.RequestOption{option.WithMaxRetries(transportRetries)}
		if ai.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(ai.BaseURL))
		}
		return extract.NewOpenAIBackend(key, ai.Model, opts...), nil
	case "anthropic", "claude":
		return &extract.ClaudeBackend{APIKey: key, Model: ai.Model, URL: ai.BaseURL, MaxRetries: transportRetries}, nil
	default:
		return nil, fmt.Errorf("unsupported provider %q: use openai or anthropic", ai.Provider)
	}
}

// newRun builds the history record for an extraction.
func newRun(schemaPath, docPath string, plan *chunk.Result, out *extract.Output) *types.Run {
	run := &types.Run{
		SchemaPath:   schemaPath,
		DocumentPath: docPath,
		Provider:     cfg.Extraction.Provider,
		Model:        cfg.Extraction.Model,
		Tokenizer:    cfg.Chunk.Tokenizer,
		Threshold:    cfg.Chunk.Threshold,
		Missing:      plan.Coverage.Missing,
		Warnings:     plan.Warnings,
		Failed:       out.Failed(),
	}
	for i, r := range out.Results {
		rc := types.RunChunk{
			Index:      r.Index,
			Properties: r.Properties,
			Tokens:     plan.Batches[i].Tokens,
			Output:     r.Data,
			Violations: r.Violations,
		}
		if r.Failure != nil {
			rc.Error = r.Failure.Error
			rc.RawText = r.Failure.RawText
		}
		run.Chunks = append(run.Chunks, rc)
	}
	return run
}

// writeResult writes the merged object to <output_dir>/<run id>.<format>.
func writeResult(runID string, out *extract.Output) (string, error) {
	merged, err := out.Merged()
	if err != nil {
		return "", err
	}
	data, err := extract.Encode(merged, cfg.Extraction.Format)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(cfg.Extraction.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	ext := cfg.Extraction.Format
	if ext == "" {
		ext = "json"
	}
	path := filepath.Join(cfg.Extraction.OutputDir, runID+"."+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing result: %w", err)
	}
	return path, nil
}

func init() {
	extractCmd.Flags().String("tokenizer", "", "token encoding for chunking")
	extractCmd.Flags().Int("threshold", chunk.DefaultThreshold, "token budget per chunk")
	extractCmd.Flags().Bool("sort", true, "order properties by name before packing")
	extractCmd.Flags().String("provider", "", "model provider: openai or anthropic")
	extractCmd.Flags().String("model", "", "model identifier")
	extractCmd.Flags().String("base-url", "", "override the provider API endpoint")
	extractCmd.Flags().Int("max-retries", 0, "retries per chunk after a failed call")
	extractCmd.Flags().Int("concurrency", 0, "chunks extracted at once")
	extractCmd.Flags().Bool("validate", false, "check every reply against its chunk schema")
	extractCmd.Flags().String("out", "", "directory for the merged result")
	extractCmd.Flags().String("format", "", "merged result format: json or yaml")
	extractCmd.Flags().String("db", "", "run history database")

	rootCmd.AddCommand(extractCmd)
}
