// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/pdiddy/schema-extract/internal/schema"
)

// Object is a JSON object that keeps its key order.
type Object = orderedmap.OrderedMap[string, any]

// Output holds one result per chunk, in chunk order.
type Output struct {
	Results []ChunkResult `json:"results"`
}

// Failed returns the number of chunks without an object.
func (o *Output) Failed() int {
	n := 0
	for _, r := range o.Results {
		if !r.OK() {
			n++
		}
	}
	return n
}

// Violations returns the number of schema violations across all chunks.
func (o *Output) Violations() int {
	n := 0
	for _, r := range o.Results {
		n += len(r.Violations)
	}
	return n
}

// Merged combines the objects of all successful chunks into one object.
// Keys keep their chunk order. Chunks cover disjoint properties, so keys
// only collide on annotations the model adds itself: booleans are OR-ed
// and any other value keeps its first occurrence.
func (o *Output) Merged() (*Object, error) {
	merged := orderedmap.New[string, any]()
	for _, r := range o.Results {
		if !r.OK() {
			continue
		}
		obj := orderedmap.New[string, any]()
		if err := json.Unmarshal(r.Data, obj); err != nil {
			return nil, fmt.Errorf("decoding chunk %d: %w", r.Index, err)
		}
		for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
			prev, exists := merged.Get(pair.Key)
			if !exists {
				merged.Set(pair.Key, pair.Value)
				continue
			}
			a, aok := prev.(bool)
			b, bok := pair.Value.(bool)
			if aok && bok {
				merged.Set(pair.Key, a || b)
			}
		}
	}
	return merged, nil
}

// Encode renders v as indented JSON or as YAML. Objects keep their order.
func Encode(v any, format string) ([]byte, error) {
	switch format {
	case "", "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case "yaml", "yml":
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return schema.JSONToYAML(data)
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}
