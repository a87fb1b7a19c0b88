// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schema

import "sort"

// DirectDependencies returns the sorted names of the definitions referenced
// anywhere inside v, including keys that sit next to a $ref. References are
// not followed.
func DirectDependencies(v any) []string {
	set := make(map[string]struct{})
	collectRefs(v, set)
	return sortedKeys(set)
}

func collectRefs(v any, into map[string]struct{}) {
	switch n := v.(type) {
	case map[string]any:
		if ref, ok := n["$ref"]; ok {
			if s, ok := ref.(string); ok {
				if name, ok := RefName(s); ok {
					into[name] = struct{}{}
				}
			}
		}
		for key, child := range n {
			if key == "$ref" {
				continue
			}
			collectRefs(child, into)
		}
	case []any:
		for _, child := range n {
			collectRefs(child, into)
		}
	}
}

// Graph answers dependency questions about a schema's definitions. It
// memoizes each definition's direct dependencies, so one Graph belongs to
// one planning run and must not be shared between goroutines.
type Graph struct {
	defs  map[string]any
	diag  *Diagnostics
	cache map[string][]string
}

// NewGraph returns a graph over the given definitions with an empty cache.
func NewGraph(defs map[string]any, diag *Diagnostics) *Graph {
	return &Graph{
		defs:  defs,
		diag:  diag,
		cache: make(map[string][]string),
	}
}

// Direct returns the direct dependencies of the named definition. A missing
// definition has none and produces a warning each time it is asked for.
func (g *Graph) Direct(name string) []string {
	if deps, ok := g.cache[name]; ok {
		return deps
	}
	body, ok := g.defs[name]
	if !ok || body == nil {
		g.diag.Warnf("definition %q not found while finding dependencies", name)
		return nil
	}
	deps := DirectDependencies(body)
	g.cache[name] = deps
	return deps
}

// Closure returns every definition needed by the seed names, seeds
// included, in sorted order. It walks breadth-first and never requeues a
// name already in the result, so reference cycles terminate.
func (g *Graph) Closure(seeds []string) []string {
	result := make(map[string]struct{}, len(seeds))
	queue := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if _, ok := result[s]; ok {
			continue
		}
		result[s] = struct{}{}
		queue = append(queue, s)
	}

	for head := 0; head < len(queue); head++ {
		for _, dep := range g.Direct(queue[head]) {
			if _, ok := result[dep]; ok {
				continue
			}
			result[dep] = struct{}{}
			queue = append(queue, dep)
		}
	}

	return sortedKeys(result)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
