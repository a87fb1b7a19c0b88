// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chunk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/schema-extract/internal/schema"
)

// weightTokenizer counts '@' characters, so a fragment's size is whatever
// the test packs into it.
type weightTokenizer struct{}

func (weightTokenizer) Encode(text string) []int {
	return make([]int, strings.Count(text, "@"))
}

func sized(n int) map[string]any {
	return map[string]any{"type": "string", "description": strings.Repeat("@", n)}
}

func refTo(name string) map[string]any {
	return map[string]any{"$ref": schema.DefinitionsPrefix + name}
}

func testOptions(threshold int, sorted bool) Options {
	return Options{Encoder: weightTokenizer{}, Threshold: threshold, SortProps: sorted}
}

func docWith(props ...any) *schema.Document {
	doc := schema.NewDocument()
	for i := 0; i+1 < len(props); i += 2 {
		doc.Properties.Set(props[i].(string), props[i+1])
	}
	return doc
}

func batchNames(r *Result) [][]string {
	var out [][]string
	for _, b := range r.Batches {
		out = append(out, b.Properties)
	}
	return out
}

func TestPlanGreedyScenario(t *testing.T) {
	doc := docWith("c", sized(5000), "a", sized(3000), "b", sized(4000))

	res, err := Plan(doc, testOptions(8000, true))
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, batchNames(res))
	assert.Equal(t, 7000, res.Batches[0].Tokens)
	assert.Equal(t, 5000, res.Batches[1].Tokens)
	require.Len(t, res.Chunks, 2)
	assert.Equal(t, []string{"a", "b"}, res.Chunks[0].PropertyNames())
	assert.Equal(t, []string{"c"}, res.Chunks[1].PropertyNames())
}

func TestPlanOversizedPropertyStandsAlone(t *testing.T) {
	doc := docWith("a", sized(1000), "big", sized(12000), "c", sized(1000))

	res, err := Plan(doc, testOptions(8000, true))
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"a"}, {"big"}, {"c"}}, batchNames(res))
	assert.Equal(t, 12000, res.Batches[1].Tokens)
	assert.True(t, containsSubstring(res.Warnings, `"big" (12000 tokens) alone exceeds threshold (8000)`))
}

func TestPlanOversizedFirstProperty(t *testing.T) {
	doc := docWith("a", sized(9000), "b", sized(10))

	res, err := Plan(doc, testOptions(8000, true))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}, {"b"}}, batchNames(res))
}

func TestPlanKeepsSchemaOrderWhenUnsorted(t *testing.T) {
	doc := docWith("zeta", sized(10), "alpha", sized(10), "mid", sized(10))

	res, err := Plan(doc, testOptions(25, false))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"zeta", "alpha"}, {"mid"}}, batchNames(res))

	res, err = Plan(doc, testOptions(25, true))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"alpha", "mid"}, {"zeta"}}, batchNames(res))
}

func TestPlanMeasuresResolvedSize(t *testing.T) {
	doc := docWith("p", refTo("D1"), "q", sized(1))
	doc.Definitions["D1"] = map[string]any{"properties": map[string]any{"x": refTo("D2")}, "note": strings.Repeat("@", 40)}
	doc.Definitions["D2"] = sized(60)

	res, err := Plan(doc, testOptions(1000, true))
	require.NoError(t, err)

	require.Len(t, res.Estimates, 2)
	assert.Equal(t, Estimate{Name: "p", Tokens: 100, Dependencies: []string{"D1"}}, res.Estimates[0])
	assert.Equal(t, 1, res.Estimates[1].Tokens)
}

func TestPlanTransitiveDefinitions(t *testing.T) {
	doc := docWith("p", refTo("D1"), "other", sized(5000))
	doc.Definitions["D1"] = map[string]any{"type": "object", "properties": map[string]any{"x": refTo("D2")}}
	doc.Definitions["D2"] = map[string]any{"type": "string"}
	doc.Definitions["Unused"] = map[string]any{"type": "number"}

	res, err := Plan(doc, testOptions(100, true))
	require.NoError(t, err)
	require.Len(t, res.Chunks, 2)

	other, p := res.Chunks[0], res.Chunks[1]
	assert.Equal(t, []string{"other"}, other.PropertyNames())
	assert.Nil(t, other.Definitions, "definitions are omitted when nothing is referenced")

	assert.Equal(t, []string{"p"}, p.PropertyNames())
	assert.Len(t, p.Definitions, 2)
	assert.Contains(t, p.Definitions, "D1")
	assert.Contains(t, p.Definitions, "D2")
}

func TestPlanKeepsDefinitionsReferencedBesideRef(t *testing.T) {
	doc := docWith("p", map[string]any{
		"$ref":       schema.DefinitionsPrefix + "A",
		"properties": map[string]any{"x": refTo("B")},
	})
	doc.SchemaURI = "https://json-schema.org/draft/2020-12/schema"
	doc.Definitions["A"] = map[string]any{"type": "object"}
	doc.Definitions["B"] = map[string]any{"type": "string"}

	res, err := Plan(doc, testOptions(100, true))
	require.NoError(t, err)
	require.Len(t, res.Chunks, 1)
	assert.ElementsMatch(t, []string{"A", "B"}, keys(res.Chunks[0].Definitions))
	assertCompiles(t, res.Chunks[0])
}

func TestPlanChunkShape(t *testing.T) {
	doc := docWith("a", sized(5), "b", sized(5), "c", sized(5))
	doc.Required = []string{"c", "a"}

	res, err := Plan(doc, testOptions(10, false))
	require.NoError(t, err)
	require.Len(t, res.Chunks, 2)

	first, second := res.Chunks[0], res.Chunks[1]
	assert.Equal(t, schema.DefaultSchemaURI, first.Schema)
	assert.Equal(t, "object", first.Type)
	assert.Equal(t, []string{"a"}, first.Required)
	assert.Equal(t, []string{"c"}, second.Required)

	doc.Required = []string{"c"}
	doc.SchemaURI = "https://json-schema.org/draft/2019-09/schema"
	res, err = Plan(doc, testOptions(10, false))
	require.NoError(t, err)
	assert.Nil(t, res.Chunks[0].Required, "required is omitted when no member is required")
	assert.Equal(t, "https://json-schema.org/draft/2019-09/schema", res.Chunks[0].Schema)

	data, err := res.Chunks[0].Marshal(false)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"required"`)
	assert.NotContains(t, string(data), `"definitions"`)
}

func TestPlanRequiredOrderFollowsSource(t *testing.T) {
	doc := docWith("a", sized(1), "b", sized(1), "c", sized(1))
	doc.Required = []string{"c", "a", "b"}

	res, err := Plan(doc, testOptions(100, true))
	require.NoError(t, err)
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, []string{"c", "a", "b"}, res.Chunks[0].Required)
}

func TestPlanMissingProperties(t *testing.T) {
	tests := []struct {
		name string
		doc  *schema.Document
		want string
	}{
		{name: "nil document", doc: nil, want: "missing a valid top-level 'properties'"},
		{name: "no properties", doc: &schema.Document{Definitions: map[string]any{}}, want: "missing a valid top-level 'properties'"},
		{name: "empty properties", doc: schema.NewDocument(), want: "missing a valid top-level 'properties'"},
		{name: "wrong shape", doc: &schema.Document{PropertiesInvalid: true}, want: "'properties' is not an object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Plan(tt.doc, testOptions(100, true))
			require.NoError(t, err)
			assert.Empty(t, res.Chunks)
			assert.NotNil(t, res.Chunks)
			assert.True(t, containsSubstring(res.Warnings, tt.want))
		})
	}
}

func TestPlanParsedMalformedProperties(t *testing.T) {
	doc, err := schema.Parse([]byte(`{"properties": "nope", "required": ["a"]}`))
	require.NoError(t, err)

	res, err := Plan(doc, testOptions(100, true))
	require.NoError(t, err)
	assert.Empty(t, res.Chunks)
}

func TestPlanBadOptions(t *testing.T) {
	doc := docWith("a", sized(1))

	_, err := Plan(doc, testOptions(0, true))
	assert.ErrorIs(t, err, ErrInvalidThreshold)

	_, err = Plan(doc, Options{Tokenizer: "no-such-encoding", Threshold: 10})
	assert.Error(t, err)
}

func TestPlanNamedTokenizer(t *testing.T) {
	doc := docWith("a", map[string]any{"type": "string"})

	res, err := Plan(doc, Options{Tokenizer: "approx", Threshold: 10})
	require.NoError(t, err)
	// {"type":"string"} is 17 bytes.
	assert.Equal(t, 5, res.Estimates[0].Tokens)
}

func TestPlanMissingDefinitionsBlock(t *testing.T) {
	doc, err := schema.Parse([]byte(`{"properties": {"a": {"$ref": "#/definitions/X"}}}`))
	require.NoError(t, err)

	res, err := Plan(doc, testOptions(100, true))
	require.NoError(t, err)
	require.Len(t, res.Chunks, 1)
	assert.Nil(t, res.Chunks[0].Definitions)
	assert.True(t, containsSubstring(res.Warnings, "missing a 'definitions' object"))
	assert.True(t, containsSubstring(res.Warnings, "reference not found during resolution: #/definitions/X"))
	assert.True(t, containsSubstring(res.Warnings, `definition "X" needed by chunk is not in the schema`))
}

func TestPlanCyclicDefinitionIsApproximate(t *testing.T) {
	doc := docWith("tree", refTo("Node"))
	doc.Definitions["Node"] = map[string]any{
		"type":       "object",
		"properties": map[string]any{"children": map[string]any{"type": "array", "items": refTo("Node")}},
	}

	res, err := Plan(doc, testOptions(100, true))
	require.NoError(t, err)

	assert.True(t, res.Estimates[0].Approximate)
	assert.True(t, containsSubstring(res.Warnings, `"tree" has a cyclic reference`))
	assert.Equal(t, []string{"Node"}, keys(res.Chunks[0].Definitions))
}

func TestPlanSerializationFailureCountsZero(t *testing.T) {
	doc := docWith("bad", map[string]any{"x": make(chan int)}, "ok", sized(3))

	res, err := Plan(doc, testOptions(100, true))
	require.NoError(t, err)

	assert.Equal(t, 0, res.Estimates[0].Tokens)
	assert.True(t, containsSubstring(res.Warnings, `serialization error during token counting for "bad"`))
	assert.Equal(t, [][]string{{"bad", "ok"}}, batchNames(res))
}

func TestPlanCoverageGap(t *testing.T) {
	doc := docWith("a", sized(1))
	doc.Required = []string{"a", "ghost"}

	res, err := Plan(doc, testOptions(100, true))
	require.NoError(t, err)

	assert.False(t, res.Coverage.Passed)
	assert.Equal(t, []string{"ghost"}, res.Coverage.Missing)
	assert.Len(t, res.Chunks, 1, "chunks are still produced")
}

func TestPlanRequiredNotAList(t *testing.T) {
	doc, err := schema.Parse([]byte(`{"properties": {"a": {}}, "required": "a"}`))
	require.NoError(t, err)

	res, err := Plan(doc, testOptions(100, true))
	require.NoError(t, err)
	assert.True(t, res.Coverage.Passed)
	assert.True(t, containsSubstring(res.Warnings, "not a list"))
}

func TestPlanConcurrentRunsAreIndependent(t *testing.T) {
	doc := randomDocument(rand.New(rand.NewSource(7)), 40, 15)
	want, err := Plan(doc, testOptions(300, true))
	require.NoError(t, err)
	wantJSON := mustJSON(t, want.Chunks)

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := Plan(doc, testOptions(300, true))
			if err == nil {
				results[i] = mustJSON(t, res.Chunks)
			}
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, wantJSON, got)
	}
}

// TestPlanProperties checks the planner's guarantees over generated schemas:
// batches partition the properties, multi-property batches respect the
// threshold, every chunk carries the definitions it references, and chunks
// compile as standalone schemas.
func TestPlanProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for iter := 0; iter < 50; iter++ {
		doc := randomDocument(rng, 1+rng.Intn(25), rng.Intn(12))
		threshold := 50 + rng.Intn(400)

		res, err := Plan(doc, testOptions(threshold, true))
		require.NoError(t, err)

		tokens := map[string]int{}
		for _, e := range res.Estimates {
			tokens[e.Name] = e.Tokens
		}

		seen := map[string]bool{}
		for _, b := range res.Batches {
			sum := 0
			for _, name := range b.Properties {
				require.False(t, seen[name], "property %q placed twice", name)
				seen[name] = true
				sum += tokens[name]
			}
			assert.Equal(t, sum, b.Tokens)
			if len(b.Properties) > 1 {
				assert.LessOrEqual(t, b.Tokens, threshold)
			}
		}
		assert.Len(t, seen, doc.Properties.Len())

		for i, c := range res.Chunks {
			for _, name := range referencedDefinitions(c) {
				assert.Contains(t, c.Definitions, name, "chunk %d references %q", i+1, name)
			}
			assertCompiles(t, c)
		}

		again, err := Plan(doc, testOptions(threshold, true))
		require.NoError(t, err)
		assert.Equal(t, mustJSON(t, res.Chunks), mustJSON(t, again.Chunks))
	}
}

func TestPack(t *testing.T) {
	est := func(pairs ...any) []Estimate {
		var out []Estimate
		for i := 0; i < len(pairs); i += 2 {
			out = append(out, Estimate{Name: pairs[i].(string), Tokens: pairs[i+1].(int)})
		}
		return out
	}

	tests := []struct {
		name      string
		in        []Estimate
		threshold int
		want      []Batch
	}{
		{name: "empty", in: nil, threshold: 10, want: nil},
		{name: "exact fit", in: est("a", 5, "b", 5), threshold: 10, want: []Batch{{Properties: []string{"a", "b"}, Tokens: 10}}},
		{name: "one over", in: est("a", 5, "b", 6), threshold: 10, want: []Batch{{Properties: []string{"a"}, Tokens: 5}, {Properties: []string{"b"}, Tokens: 6}}},
		{name: "zero sized", in: est("a", 0, "b", 0, "c", 10), threshold: 10, want: []Batch{{Properties: []string{"a", "b", "c"}, Tokens: 10}}},
		{
			name:      "no look-back",
			in:        est("a", 6, "b", 6, "c", 4),
			threshold: 10,
			want:      []Batch{{Properties: []string{"a"}, Tokens: 6}, {Properties: []string{"b", "c"}, Tokens: 10}},
		},
		{
			name:      "oversized in the middle",
			in:        est("a", 2, "big", 50, "c", 2),
			threshold: 10,
			want:      []Batch{{Properties: []string{"a"}, Tokens: 2}, {Properties: []string{"big"}, Tokens: 50}, {Properties: []string{"c"}, Tokens: 2}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Pack(tt.in, tt.threshold))
		})
	}
}

// --- helpers ---

// randomDocument builds a schema whose definitions only reference
// definitions with a higher index plus occasional self references, and
// whose properties reference random definitions.
func randomDocument(rng *rand.Rand, nProps, nDefs int) *schema.Document {
	doc := schema.NewDocument()
	for d := 0; d < nDefs; d++ {
		body := sized(rng.Intn(60))
		if d+1 < nDefs && rng.Intn(2) == 0 {
			target := d + 1 + rng.Intn(nDefs-d-1)
			body["items"] = refTo(fmt.Sprintf("D%d", target))
		}
		if rng.Intn(8) == 0 {
			body["additionalProperties"] = refTo(fmt.Sprintf("D%d", d))
		}
		doc.Definitions[fmt.Sprintf("D%d", d)] = body
	}
	for p := 0; p < nProps; p++ {
		prop := sized(rng.Intn(150))
		if nDefs > 0 && rng.Intn(3) > 0 {
			prop["anyOf"] = []any{refTo(fmt.Sprintf("D%d", rng.Intn(nDefs)))}
		}
		doc.Properties.Set(fmt.Sprintf("p%02d", rng.Intn(1000)*100+p), prop)
	}
	return doc
}

func referencedDefinitions(c Chunk) []string {
	set := map[string]bool{}
	for pair := c.Properties.Oldest(); pair != nil; pair = pair.Next() {
		for _, n := range schema.DirectDependencies(pair.Value) {
			set[n] = true
		}
	}
	for _, body := range c.Definitions {
		for _, n := range schema.DirectDependencies(body) {
			set[n] = true
		}
	}
	var out []string
	for n := range set {
		out = append(out, n)
	}
	return out
}

func assertCompiles(t *testing.T, c Chunk) {
	t.Helper()
	data, err := c.Marshal(false)
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	require.NoError(t, compiler.AddResource("chunk.json", bytes.NewReader(data)))
	_, err = compiler.Compile("chunk.json")
	assert.NoError(t, err, "chunk must resolve every reference on its own")
}

func mustJSON(t *testing.T, v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		t.Error(err)
	}
	return string(data)
}

func keys(m map[string]any) []string {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	return out
}

func containsSubstring(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
