// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the schema-extract CLI.
//
// schema-extract splits large JSON Schemas into token-bounded chunks and
// runs one model extraction per chunk against a document.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/schema-extract/internal/secrets"
	"github.com/pdiddy/schema-extract/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from the secrets directory at startup.
var loadedSecrets map[string]string

// cfg is the effective configuration: defaults, then config file, then
// environment, then flags.
var cfg = types.DefaultConfig()

// rootCmd is the base command for the schema-extract CLI.
var rootCmd = &cobra.Command{
	Use:   "schema-extract",
	Short: "Chunk large JSON Schemas and extract documents against them",
	Long: `schema-extract partitions a large JSON Schema into smaller standalone
schemas whose estimated token size fits a budget, then sends a document to a
language model once per chunk and merges the structured results.

Use "chunk" to inspect or write the chunks, "extract" to run an extraction,
and "runs" to look at earlier extractions.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd); err != nil {
			return err
		}
		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = loaded

		verbose, _ := cmd.Flags().GetBool("verbose")
		setupLogger(cfg.Log, verbose, os.Stderr)

		dir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(dir)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug("loaded secrets", "keys", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./schema-extract.yaml or ~/.config/schema-extract/config.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets", "directory of API key files")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log at debug level")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json")
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	setDefaults(types.DefaultConfig())
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("schema-extract")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "schema-extract"))
		}
	}

	viper.SetEnvPrefix("SCHEMA_EXTRACT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every config key with viper so environment
// variables and config files can override it.
func setDefaults(d types.Config) {
	defaults := map[string]any{
		"chunk.tokenizer":        d.Chunk.Tokenizer,
		"chunk.threshold":        d.Chunk.Threshold,
		"chunk.sort_props":       d.Chunk.SortProps,
		"chunk.output_dir":       d.Chunk.OutputDir,
		"chunk.pretty":           d.Chunk.Pretty,
		"extraction.provider":    d.Extraction.Provider,
		"extraction.model":       d.Extraction.Model,
		"extraction.api_key":     d.Extraction.APIKey,
		"extraction.base_url":    d.Extraction.BaseURL,
		"extraction.max_retries": d.Extraction.MaxRetries,
		"extraction.concurrency": d.Extraction.Concurrency,
		"extraction.validate":    d.Extraction.Validate,
		"extraction.output_dir":  d.Extraction.OutputDir,
		"extraction.format":      d.Extraction.Format,
		"store.db_path":          d.Store.DBPath,
		"log.level":              d.Log.Level,
		"log.format":             d.Log.Format,
	}
	for k, v := range defaults {
		viper.SetDefault(k, v)
	}
}

// flagBindings maps, per command name, flag names to config keys. Flags
// are bound only for the command being run, since viper keeps a single
// binding per key.
var flagBindings = map[string]map[string]string{
	"chunk": {
		"tokenizer": "chunk.tokenizer",
		"threshold": "chunk.threshold",
		"sort":      "chunk.sort_props",
		"pretty":    "chunk.pretty",
		"out":       "chunk.output_dir",
	},
	"extract": {
		"tokenizer":   "chunk.tokenizer",
		"threshold":   "chunk.threshold",
		"sort":        "chunk.sort_props",
		"provider":    "extraction.provider",
		"model":       "extraction.model",
		"base-url":    "extraction.base_url",
		"max-retries": "extraction.max_retries",
		"concurrency": "extraction.concurrency",
		"validate":    "extraction.validate",
		"out":         "extraction.output_dir",
		"format":      "extraction.format",
		"db":          "store.db_path",
	},
	"list": {"db": "store.db_path"},
	"show": {"db": "store.db_path"},
}

func bindFlags(cmd *cobra.Command) error {
	for flag, key := range flagBindings[cmd.Name()] {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding --%s: %w", flag, err)
		}
	}
	return nil
}

// loadConfig decodes the merged viper settings into a Config.
func loadConfig() (types.Config, error) {
	c := types.DefaultConfig()
	if err := viper.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decoding configuration: %w", err)
	}
	return c, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
