// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chunk

import (
	"bytes"
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/pdiddy/schema-extract/internal/schema"
)

// Chunk is a minimal standalone schema covering one batch of top-level
// properties and exactly the definitions they need.
type Chunk struct {
	Schema      string             `json:"$schema"`
	Type        string             `json:"type"`
	Properties  *schema.Properties `json:"properties"`
	Definitions map[string]any     `json:"definitions,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// PropertyNames returns the chunk's properties in batch order.
func (c Chunk) PropertyNames() []string {
	names := make([]string, 0, c.Properties.Len())
	for pair := c.Properties.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Marshal encodes the chunk as JSON, indented with two spaces when pretty.
// HTML characters are written as-is, matching the text the tokenizer
// measured.
func (c Chunk) Marshal(pretty bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Batch is an ordered group of property names and their summed estimate.
type Batch struct {
	Properties []string `json:"properties" yaml:"properties"`
	Tokens     int      `json:"tokens" yaml:"tokens"`
}

// Estimate is the measured size and direct dependencies of one property.
type Estimate struct {
	Name string `json:"name" yaml:"name"`

	// Tokens is the count of the property with every reference inlined.
	Tokens int `json:"tokens" yaml:"tokens"`

	// Approximate is set when a reference cycle was cut short during
	// resolution, making Tokens an under-estimate.
	Approximate bool `json:"approximate,omitempty" yaml:"approximate,omitempty"`

	// Dependencies are the definitions the property references directly.
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

func newProperties() *schema.Properties {
	return orderedmap.New[string, any]()
}
