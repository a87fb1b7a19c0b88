// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schema

// placeholderKey marks a reference whose resolution was still in progress
// when it was met again.
const placeholderKey = "$ref_processing"

// Resolver inlines #/definitions references so a fragment can be measured
// at its full size. It is not a general $ref resolver: only direct
// #/definitions/<name> pointers are followed, and keys next to a $ref are
// ignored.
//
// A Resolver caches resolved pointers. The cache must be Reset between
// independent fragments; a Resolver is not safe for concurrent use.
type Resolver struct {
	defs    map[string]any
	diag    *Diagnostics
	cache   map[string]any
	pending map[string]bool
	cyclic  bool
}

// NewResolver returns a resolver over the given definitions.
func NewResolver(defs map[string]any, diag *Diagnostics) *Resolver {
	return &Resolver{
		defs:    defs,
		diag:    diag,
		cache:   make(map[string]any),
		pending: make(map[string]bool),
	}
}

// Reset clears the resolution cache and the cycle flag.
func (r *Resolver) Reset() {
	clear(r.cache)
	clear(r.pending)
	r.cyclic = false
}

// Cyclic reports whether a reference cycle was cut short since the last
// Reset. When true, anything resolved in that window contains a placeholder
// instead of a full expansion and its size is an under-estimate.
func (r *Resolver) Cyclic() bool {
	return r.cyclic
}

// Resolve returns a copy of v with every resolvable reference replaced by
// the resolved definition body. Unresolvable references are left in place.
// Resolved values may share structure with each other and must be treated
// as read-only.
func (r *Resolver) Resolve(v any) any {
	switch n := v.(type) {
	case map[string]any:
		if ref, ok := n["$ref"]; ok {
			return r.resolveRef(n, ref)
		}
		out := make(map[string]any, len(n))
		for k, child := range n {
			out[k] = r.Resolve(child)
		}
		return out
	case []any:
		out := make([]any, len(n))
		for i, child := range n {
			out[i] = r.Resolve(child)
		}
		return out
	default:
		return v
	}
}

func (r *Resolver) resolveRef(node map[string]any, ref any) any {
	ptr, ok := ref.(string)
	if !ok {
		r.diag.Warnf("unsupported reference value %v", ref)
		return node
	}

	if cached, ok := r.cache[ptr]; ok {
		if r.pending[ptr] {
			r.cyclic = true
		}
		return cached
	}

	name, ok := directRefName(ptr)
	if !ok {
		r.diag.Warnf("unsupported reference type encountered: %s", ptr)
		return node
	}
	body, ok := r.defs[name]
	if !ok || body == nil {
		r.diag.Warnf("reference not found during resolution: %s", ptr)
		return node
	}

	r.cache[ptr] = map[string]any{placeholderKey: ptr}
	r.pending[ptr] = true
	resolved := r.Resolve(body)
	delete(r.pending, ptr)
	r.cache[ptr] = resolved
	return resolved
}
