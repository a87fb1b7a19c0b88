// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chunk

import "sort"

// Coverage reports whether every required top-level property landed in
// some batch. A failed check is informational; chunks are produced anyway
// and the caller decides whether to treat it as fatal.
type Coverage struct {
	Passed  bool     `json:"passed" yaml:"passed"`
	Missing []string `json:"missing,omitempty" yaml:"missing,omitempty"`
}

// CheckCoverage returns required minus the properties found in batches.
// An empty required list always passes.
func CheckCoverage(required []string, batches []Batch) Coverage {
	if len(required) == 0 {
		return Coverage{Passed: true}
	}

	covered := make(map[string]bool)
	for _, b := range batches {
		for _, name := range b.Properties {
			covered[name] = true
		}
	}

	seen := make(map[string]bool)
	var missing []string
	for _, name := range required {
		if covered[name] || seen[name] {
			continue
		}
		seen[name] = true
		missing = append(missing, name)
	}
	sort.Strings(missing)

	return Coverage{Passed: len(missing) == 0, Missing: missing}
}
