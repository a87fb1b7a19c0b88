// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/pdiddy/schema-extract/internal/runs"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the extraction run history",
	Long: `Runs reads the local SQLite database in which every extraction is
recorded. Use "list" for recent runs and "show" for one run in full.`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent extraction runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		store, err := runs.NewStore(cfg.Store.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		list, err := store.List(context.Background(), limit)
		if err != nil {
			return err
		}
		formatRuns(cmd.OutOrStdout(), list)
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one run with its per-chunk results",
	Long: `Show prints a run and every chunk result as JSON or YAML. The ID may be
any unique prefix of the full run ID.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")

		store, err := runs.NewStore(cfg.Store.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		run, err := store.Get(context.Background(), args[0])
		if err != nil {
			return err
		}
		return runs.Export(cmd.OutOrStdout(), run, format)
	},
}

func init() {
	runsCmd.PersistentFlags().String("db", "", "run history database")
	runsListCmd.Flags().Int("limit", 20, "maximum number of runs to list")
	runsShowCmd.Flags().String("format", "yaml", "output format: yaml or json")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}
