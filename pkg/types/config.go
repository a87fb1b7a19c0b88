// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types holds the configuration and record types shared by the
// schema-extract commands.
package types

// ChunkConfig holds settings for schema chunking.
type ChunkConfig struct {
	// Tokenizer names the encoding used to estimate token counts
	// (cl100k_base, p50k_base, r50k_base or approx).
	Tokenizer string `json:"tokenizer" yaml:"tokenizer" mapstructure:"tokenizer" jsonschema:"enum=cl100k_base,enum=p50k_base,enum=r50k_base,enum=approx"`

	// Threshold is the soft per-chunk token budget (default 10000).
	Threshold int `json:"threshold" yaml:"threshold" mapstructure:"threshold" jsonschema:"minimum=1"`

	// SortProps orders properties by name before packing; otherwise the
	// schema order is kept.
	SortProps bool `json:"sort_props" yaml:"sort_props" mapstructure:"sort_props"`

	// OutputDir is where schema_chunk_<i>.json files are written.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`

	// Pretty indents chunk files with two spaces.
	Pretty bool `json:"pretty" yaml:"pretty" mapstructure:"pretty"`
}

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Provider selects the backend: openai or anthropic.
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider" jsonschema:"enum=openai,enum=anthropic"`

	// Model is the AI model identifier (e.g. "gpt-4.1").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API. When empty the
	// secrets directory and the provider's environment variable are used.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// BaseURL overrides the provider's API endpoint, e.g. for a proxy or an
	// OpenAI-compatible server.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries" jsonschema:"minimum=0"`
}

// ExtractionConfig holds settings for the extraction stage.
type ExtractionConfig struct {
	AIConfig `yaml:",inline" mapstructure:",squash"`

	// Concurrency bounds the number of chunks extracted at once (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency" jsonschema:"minimum=1"`

	// Validate checks every reply against its chunk schema.
	Validate bool `json:"validate" yaml:"validate" mapstructure:"validate"`

	// OutputDir is where merged results are written.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`

	// Format selects the merged result format: json or yaml.
	Format string `json:"format" yaml:"format" mapstructure:"format" jsonschema:"enum=json,enum=yaml"`
}

// StoreConfig holds settings for the run history database.
type StoreConfig struct {
	// DBPath is the SQLite database file.
	DBPath string `json:"db_path" yaml:"db_path" mapstructure:"db_path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level" mapstructure:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`

	// Format is text or json.
	Format string `json:"format" yaml:"format" mapstructure:"format" jsonschema:"enum=text,enum=json"`
}

// Config is the full schema-extract.yaml file.
type Config struct {
	Chunk      ChunkConfig      `json:"chunk" yaml:"chunk" mapstructure:"chunk"`
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction" mapstructure:"extraction"`
	Store      StoreConfig      `json:"store" yaml:"store" mapstructure:"store"`
	Log        LogConfig        `json:"log" yaml:"log" mapstructure:"log"`
}

// DefaultConfig returns the configuration used when no file or flag
// overrides a value.
func DefaultConfig() Config {
	return Config{
		Chunk: ChunkConfig{
			Tokenizer: "cl100k_base",
			Threshold: 10000,
			SortProps: true,
			OutputDir: "chunks",
		},
		Extraction: ExtractionConfig{
			AIConfig: AIConfig{
				Provider:   "openai",
				Model:      "gpt-4.1",
				MaxRetries: 3,
			},
			Concurrency: 4,
			OutputDir:   "output",
			Format:      "json",
		},
		Store: StoreConfig{DBPath: ".schema-extract/runs.db"},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}
