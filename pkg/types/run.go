// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"time"
)

// Run records one extraction of a document against a chunked schema.
type Run struct {
	ID           string    `json:"id" yaml:"id"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	SchemaPath   string    `json:"schema_path" yaml:"schema_path"`
	DocumentPath string    `json:"document_path" yaml:"document_path"`
	Provider     string    `json:"provider" yaml:"provider"`
	Model        string    `json:"model" yaml:"model"`
	Tokenizer    string    `json:"tokenizer" yaml:"tokenizer"`
	Threshold    int       `json:"threshold" yaml:"threshold"`

	// Missing lists required properties that no chunk covers.
	Missing  []string `json:"missing,omitempty" yaml:"missing,omitempty"`
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	// ChunkCount is filled by the store on List, where Chunks is not loaded.
	ChunkCount int        `json:"chunk_count" yaml:"chunk_count"`
	Failed     int        `json:"failed" yaml:"failed"`
	Chunks     []RunChunk `json:"chunks,omitempty" yaml:"chunks,omitempty"`
}

// RunChunk is the stored outcome of one chunk within a run.
type RunChunk struct {
	Index      int             `json:"index" yaml:"index"`
	Properties []string        `json:"properties" yaml:"properties"`
	Tokens     int             `json:"tokens" yaml:"tokens"`
	Output     json.RawMessage `json:"output,omitempty" yaml:"output,omitempty"`
	Error      string          `json:"error,omitempty" yaml:"error,omitempty"`
	RawText    string          `json:"raw_text,omitempty" yaml:"raw_text,omitempty"`
	Violations []string        `json:"violations,omitempty" yaml:"violations,omitempty"`
}
