// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package schema models the JSON Schema documents that drive extraction.
// It parses schemas (JSON or YAML) while keeping top-level property order,
// resolves local #/definitions references for size estimation, and computes
// definition dependency closures.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DefaultSchemaURI is the $schema value used when a document does not declare one.
const DefaultSchemaURI = "http://json-schema.org/draft-07/schema#"

// DefinitionsPrefix is the only $ref form the resolver understands.
const DefinitionsPrefix = "#/definitions/"

// ErrNotObject is returned when the top level of a schema is not a JSON object.
var ErrNotObject = errors.New("schema: top level is not an object")

// Properties is an insertion-ordered mapping of property name to fragment.
type Properties = orderedmap.OrderedMap[string, any]

// Document is a parsed JSON Schema. Fragments are plain decoded JSON values:
// map[string]any, []any, string, float64, bool and nil.
type Document struct {
	// SchemaURI is the document's $schema value, empty when absent.
	SchemaURI string

	// Properties holds the top-level properties in source order. Nil when
	// the document has no properties object.
	Properties *Properties

	// Definitions is never nil. A missing or malformed definitions block is
	// normalized to an empty map.
	Definitions map[string]any

	// Required is the top-level required list, nil when absent or malformed.
	Required []string

	// PropertiesInvalid is set when "properties" exists but is not an object.
	PropertiesInvalid bool

	// DefinitionsMissing is set when the document had no usable definitions block.
	DefinitionsMissing bool

	// RequiredInvalid is set when "required" exists but is not a list.
	RequiredInvalid bool
}

// NewDocument builds a document in memory. Callers add properties with
// doc.Properties.Set.
func NewDocument() *Document {
	return &Document{
		Properties:  orderedmap.New[string, any](),
		Definitions: map[string]any{},
	}
}

// PropertyNames returns the property names in source order.
func (d *Document) PropertyNames() []string {
	if d.Properties == nil {
		return nil
	}
	names := make([]string, 0, d.Properties.Len())
	for pair := d.Properties.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Parse decodes a JSON schema document. It fails only when the input is not
// valid JSON or its top level is not an object; structural problems inside
// the object are recorded on the Document for the planner to report.
func Parse(data []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotObject
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &top); err != nil {
		return nil, fmt.Errorf("decoding schema: %w", err)
	}

	doc := &Document{Definitions: map[string]any{}}

	if raw, ok := top["$schema"]; ok {
		var uri string
		if err := json.Unmarshal(raw, &uri); err == nil {
			doc.SchemaURI = uri
		}
	}

	if raw, ok := top["properties"]; ok {
		if isObject(raw) {
			props := orderedmap.New[string, any]()
			if err := json.Unmarshal(raw, props); err != nil {
				return nil, fmt.Errorf("decoding properties: %w", err)
			}
			doc.Properties = props
		} else {
			doc.PropertiesInvalid = true
		}
	}

	if raw, ok := top["definitions"]; ok && isObject(raw) {
		if err := json.Unmarshal(raw, &doc.Definitions); err != nil {
			return nil, fmt.Errorf("decoding definitions: %w", err)
		}
	} else {
		doc.DefinitionsMissing = true
	}

	if raw, ok := top["required"]; ok {
		var list []any
		if err := json.Unmarshal(raw, &list); err != nil {
			doc.RequiredInvalid = true
		} else {
			doc.Required = make([]string, 0, len(list))
			for _, item := range list {
				if s, ok := item.(string); ok {
					doc.Required = append(doc.Required, s)
				}
			}
		}
	}

	return doc, nil
}

// Load reads a schema file. Files ending in .yaml or .yml are parsed as
// YAML; everything else as JSON.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema %s: %w", path, err)
	}

	var doc *Document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		doc, err = ParseYAML(data)
	default:
		doc, err = Parse(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing schema %s: %w", path, err)
	}
	return doc, nil
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

// RefName returns the definition a local reference points into. Nested
// pointers such as #/definitions/a/properties/b name their owning
// definition "a".
func RefName(ref string) (string, bool) {
	rest, ok := strings.CutPrefix(ref, DefinitionsPrefix)
	if !ok {
		return "", false
	}
	seg, _, _ := strings.Cut(rest, "/")
	seg = unescapePointer(seg)
	return seg, seg != ""
}

// directRefName is like RefName but rejects nested pointers.
func directRefName(ref string) (string, bool) {
	rest, ok := strings.CutPrefix(ref, DefinitionsPrefix)
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return unescapePointer(rest), true
}

func unescapePointer(s string) string {
	s = strings.ReplaceAll(s, "~1", "/")
	return strings.ReplaceAll(s, "~0", "~")
}
