// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ref(name string) map[string]any {
	return map[string]any{"$ref": DefinitionsPrefix + name}
}

func TestResolveInlinesNestedDefinitions(t *testing.T) {
	defs := map[string]any{
		"D1": map[string]any{"type": "object", "properties": map[string]any{"inner": ref("D2")}},
		"D2": map[string]any{"type": "string", "enum": []any{"x", "y"}},
	}
	diag := &Diagnostics{}
	r := NewResolver(defs, diag)

	got := r.Resolve(map[string]any{
		"type":  "array",
		"items": ref("D1"),
	})

	want := map[string]any{
		"type": "array",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"inner": map[string]any{"type": "string", "enum": []any{"x", "y"}},
			},
		},
	}
	assert.Equal(t, want, got)
	assert.Empty(t, diag.Warnings)
	assert.False(t, r.Cyclic())
}

func TestResolveScalarsAndSequences(t *testing.T) {
	r := NewResolver(map[string]any{"S": map[string]any{"type": "string"}}, nil)

	assert.Equal(t, "plain", r.Resolve("plain"))
	assert.Equal(t, 4.0, r.Resolve(4.0))
	assert.Nil(t, r.Resolve(nil))
	assert.Equal(t, []any{map[string]any{"type": "string"}, true}, r.Resolve([]any{ref("S"), true}))
}

func TestResolveIgnoresRefSiblings(t *testing.T) {
	r := NewResolver(map[string]any{"S": map[string]any{"type": "string"}}, nil)

	got := r.Resolve(map[string]any{"$ref": "#/definitions/S", "description": "dropped"})
	assert.Equal(t, map[string]any{"type": "string"}, got)
}

func TestResolveLeavesUnresolvableRefs(t *testing.T) {
	tests := []struct {
		name     string
		node     map[string]any
		wantWarn string
	}{
		{
			name:     "missing definition",
			node:     ref("Nope"),
			wantWarn: "reference not found during resolution: #/definitions/Nope",
		},
		{
			name:     "unsupported pointer",
			node:     map[string]any{"$ref": "#/$defs/Thing"},
			wantWarn: "unsupported reference type encountered: #/$defs/Thing",
		},
		{
			name:     "remote pointer",
			node:     map[string]any{"$ref": "https://example.com/s.json"},
			wantWarn: "unsupported reference type encountered: https://example.com/s.json",
		},
		{
			name:     "nested pointer",
			node:     map[string]any{"$ref": "#/definitions/S/properties/x"},
			wantWarn: "unsupported reference type encountered: #/definitions/S/properties/x",
		},
		{
			name:     "non-string ref",
			node:     map[string]any{"$ref": 12.0},
			wantWarn: "unsupported reference value 12",
		},
		{
			name:     "null definition body",
			node:     ref("Null"),
			wantWarn: "reference not found during resolution: #/definitions/Null",
		},
	}

	defs := map[string]any{"S": map[string]any{"type": "string"}, "Null": nil}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diag := &Diagnostics{}
			r := NewResolver(defs, diag)
			got := r.Resolve(tt.node)
			assert.Equal(t, tt.node, got)
			require.Len(t, diag.Warnings, 1)
			assert.Equal(t, tt.wantWarn, diag.Warnings[0])
		})
	}
}

func TestResolveSelfReferenceTerminates(t *testing.T) {
	defs := map[string]any{
		"Node": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"children": map[string]any{"type": "array", "items": ref("Node")},
			},
		},
	}
	r := NewResolver(defs, nil)

	got := r.Resolve(ref("Node"))

	require.True(t, r.Cyclic())
	node := got.(map[string]any)
	children := node["properties"].(map[string]any)["children"].(map[string]any)
	assert.Equal(t, map[string]any{placeholderKey: "#/definitions/Node"}, children["items"])

	r.Reset()
	assert.False(t, r.Cyclic())
}

func TestResolveMutualCycle(t *testing.T) {
	defs := map[string]any{
		"A": map[string]any{"properties": map[string]any{"b": ref("B")}},
		"B": map[string]any{"properties": map[string]any{"a": ref("A")}},
	}
	r := NewResolver(defs, nil)

	got := r.Resolve(ref("A"))
	assert.True(t, r.Cyclic())

	b := got.(map[string]any)["properties"].(map[string]any)["b"].(map[string]any)
	a := b["properties"].(map[string]any)["a"]
	assert.Equal(t, map[string]any{placeholderKey: "#/definitions/A"}, a)
}

func TestResolveCachesWithinOneFragment(t *testing.T) {
	defs := map[string]any{"S": map[string]any{"type": "string"}}
	diag := &Diagnostics{}
	r := NewResolver(defs, diag)

	got := r.Resolve(map[string]any{"x": ref("S"), "y": ref("S")}).(map[string]any)
	assert.Equal(t, got["x"], got["y"])
	assert.False(t, r.Cyclic(), "a repeated reference is not a cycle")
}
