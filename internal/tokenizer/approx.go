// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tokenizer

import "hash/fnv"

// ApproxEncoding names the heuristic tokenizer.
const ApproxEncoding = "approx"

// bytesPerToken is the usual rule of thumb for English text and JSON.
const bytesPerToken = 4

// Approx estimates one token per four bytes of input, rounding up. It needs
// no rank data and suits models whose tokenizer is not available locally.
type Approx struct{}

// Encode returns one id per four-byte piece of text.
func (Approx) Encode(text string) []int {
	if text == "" {
		return nil
	}
	ids := make([]int, 0, (len(text)+bytesPerToken-1)/bytesPerToken)
	for start := 0; start < len(text); start += bytesPerToken {
		end := min(start+bytesPerToken, len(text))
		h := fnv.New32a()
		h.Write([]byte(text[start:end]))
		ids = append(ids, int(h.Sum32()))
	}
	return ids
}
