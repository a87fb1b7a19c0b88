// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package chunk splits a JSON Schema into token-bounded chunks.
//
// Top-level properties are measured with their references inlined, packed
// greedily in one left-to-right pass under a token threshold, and each batch
// is emitted as a standalone schema carrying the transitive closure of the
// definitions it references. Every chunk can be sent to a model on its own.
package chunk

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/pdiddy/schema-extract/internal/schema"
	"github.com/pdiddy/schema-extract/internal/tokenizer"
)

// DefaultThreshold is the default token budget for one batch of properties.
const DefaultThreshold = 10000

// ErrInvalidThreshold is returned for a threshold that is not positive.
var ErrInvalidThreshold = errors.New("chunk: threshold must be > 0")

// Options control a planning run.
type Options struct {
	// Tokenizer names the encoding used to measure properties.
	Tokenizer string

	// Encoder overrides Tokenizer when set.
	Encoder tokenizer.Tokenizer

	// Threshold is the token budget for a batch. A single property larger
	// than the threshold still gets a batch of its own.
	Threshold int

	// SortProps orders properties by name before batching; otherwise the
	// schema's own order is kept.
	SortProps bool

	// Logger receives progress and warnings. Nil discards them.
	Logger *slog.Logger
}

// Result is everything a planning run produced.
type Result struct {
	Chunks    []Chunk    `json:"chunks"`
	Batches   []Batch    `json:"batches"`
	Estimates []Estimate `json:"estimates"`
	Coverage  Coverage   `json:"coverage"`
	Warnings  []string   `json:"warnings,omitempty"`
}

// planner is the state of one planning run. Its caches live exactly as long
// as the run, so concurrent Plan calls never share them.
type planner struct {
	doc      *schema.Document
	tok      tokenizer.Tokenizer
	opts     Options
	log      *slog.Logger
	diag     *schema.Diagnostics
	resolver *schema.Resolver
	graph    *schema.Graph
}

// Plan partitions doc's top-level properties into chunks.
//
// It returns an error only for bad options (non-positive threshold, unknown
// tokenizer). A schema without a usable properties object yields an empty
// Result; reference and serialization problems are logged, recorded in
// Result.Warnings, and planning carries on with degraded estimates.
func Plan(doc *schema.Document, opts Options) (*Result, error) {
	if opts.Threshold <= 0 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidThreshold, opts.Threshold)
	}

	tok := opts.Encoder
	if tok == nil {
		name := opts.Tokenizer
		if name == "" {
			name = tokenizer.DefaultEncoding
		}
		var err error
		tok, err = tokenizer.Get(name)
		if err != nil {
			return nil, err
		}
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	result := &Result{Chunks: []Chunk{}}

	if doc == nil || doc.Properties == nil || doc.Properties.Len() == 0 {
		msg := "schema is missing a valid top-level 'properties' object"
		if doc != nil && doc.PropertiesInvalid {
			msg = "schema 'properties' is not an object"
		}
		log.Error(msg)
		result.Warnings = append(result.Warnings, msg)
		return result, nil
	}

	diag := &schema.Diagnostics{Logger: log}
	if doc.DefinitionsMissing {
		diag.Warnf("schema is missing a 'definitions' object; refs may not resolve")
	}
	if doc.Definitions == nil {
		doc.Definitions = map[string]any{}
	}

	p := &planner{
		doc:      doc,
		tok:      tok,
		opts:     opts,
		log:      log,
		diag:     diag,
		resolver: schema.NewResolver(doc.Definitions, diag),
		graph:    schema.NewGraph(doc.Definitions, diag),
	}

	log.Info("calculating token counts and direct dependencies", "properties", doc.Properties.Len())
	result.Estimates = p.estimate()

	log.Info("batching properties", "threshold", opts.Threshold, "sorted", opts.SortProps)
	result.Batches = Pack(p.order(result.Estimates), opts.Threshold)
	log.Info("created property batches", "batches", len(result.Batches))

	result.Coverage = p.checkCoverage(result.Batches)

	log.Info("generating minimal schema chunks")
	byName := make(map[string]Estimate, len(result.Estimates))
	for _, e := range result.Estimates {
		byName[e.Name] = e
	}
	for i, b := range result.Batches {
		c := p.assemble(b, byName)
		log.Debug("generated chunk", "index", i+1, "properties", len(b.Properties), "definitions", len(c.Definitions))
		result.Chunks = append(result.Chunks, c)
	}
	log.Info("schema chunk generation complete", "chunks", len(result.Chunks))

	result.Warnings = append(result.Warnings, diag.Warnings...)
	return result, nil
}

// estimate measures each property in schema order. The resolution cache is
// reset per property so one property's expansions never leak into another.
func (p *planner) estimate() []Estimate {
	estimates := make([]Estimate, 0, p.doc.Properties.Len())
	for pair := p.doc.Properties.Oldest(); pair != nil; pair = pair.Next() {
		p.resolver.Reset()
		resolved := p.resolver.Resolve(pair.Value)

		tokens, err := tokenizer.Count(resolved, p.tok)
		if err != nil {
			msg := fmt.Sprintf("serialization error during token counting for %q: %v", pair.Key, err)
			p.log.Error(msg)
			p.diag.Warnings = append(p.diag.Warnings, msg)
		}

		e := Estimate{
			Name:         pair.Key,
			Tokens:       tokens,
			Approximate:  p.resolver.Cyclic(),
			Dependencies: schema.DirectDependencies(pair.Value),
		}
		p.log.Debug("measured property", "property", e.Name, "tokens", e.Tokens, "dependencies", e.Dependencies)
		if e.Approximate {
			p.diag.Warnf("property %q has a cyclic reference; its estimate of %d tokens is approximate", e.Name, e.Tokens)
		}
		if e.Tokens > p.opts.Threshold {
			p.diag.Warnf("property %q (%d tokens) alone exceeds threshold (%d)", e.Name, e.Tokens, p.opts.Threshold)
		}
		estimates = append(estimates, e)
	}
	return estimates
}

// order returns the estimates in batching order.
func (p *planner) order(estimates []Estimate) []Estimate {
	ordered := make([]Estimate, len(estimates))
	copy(ordered, estimates)
	if p.opts.SortProps {
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })
	}
	return ordered
}

func (p *planner) checkCoverage(batches []Batch) Coverage {
	if p.doc.RequiredInvalid {
		p.diag.Warnf("schema 'required' field is not a list; skipping coverage validation")
		return Coverage{Passed: true}
	}

	cov := CheckCoverage(p.doc.Required, batches)
	switch {
	case len(p.doc.Required) == 0:
		p.log.Info("no top-level required fields to validate")
	case cov.Passed:
		p.log.Info("validation successful: all required fields are covered", "required", len(p.doc.Required))
	default:
		p.log.Error("validation failed: required fields not covered by any batch", "missing", cov.Missing)
	}
	return cov
}

// assemble builds the standalone schema for one batch.
func (p *planner) assemble(b Batch, byName map[string]Estimate) Chunk {
	props := newProperties()
	var seeds []string
	for _, name := range b.Properties {
		v, _ := p.doc.Properties.Get(name)
		props.Set(name, v)
		seeds = append(seeds, byName[name].Dependencies...)
	}

	defs := make(map[string]any)
	for _, name := range p.graph.Closure(seeds) {
		body, ok := p.doc.Definitions[name]
		if !ok {
			p.diag.Warnf("definition %q needed by chunk is not in the schema", name)
			continue
		}
		defs[name] = body
	}

	inBatch := make(map[string]bool, len(b.Properties))
	for _, name := range b.Properties {
		inBatch[name] = true
	}
	var required []string
	for _, name := range p.doc.Required {
		if inBatch[name] {
			required = append(required, name)
		}
	}

	uri := p.doc.SchemaURI
	if uri == "" {
		uri = schema.DefaultSchemaURI
	}

	c := Chunk{
		Schema:     uri,
		Type:       "object",
		Properties: props,
		Required:   required,
	}
	if len(defs) > 0 {
		c.Definitions = defs
	}
	return c
}
