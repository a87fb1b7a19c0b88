// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chunk

// Pack groups estimates into batches in a single left-to-right pass. A batch
// is closed when adding the next property would push it over threshold; a
// property that alone exceeds threshold still starts (and fills) its own
// batch. Pack never reorders or repacks.
func Pack(estimates []Estimate, threshold int) []Batch {
	var batches []Batch
	var cur Batch

	for _, e := range estimates {
		if len(cur.Properties) > 0 && cur.Tokens+e.Tokens > threshold {
			batches = append(batches, cur)
			cur = Batch{}
		}
		cur.Properties = append(cur.Properties, e.Name)
		cur.Tokens += e.Tokens
	}
	if len(cur.Properties) > 0 {
		batches = append(batches, cur)
	}
	return batches
}
