// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tokenizer counts model tokens for schema fragments and text.
// Encodings are looked up by name; BPE encodings use tiktoken rank files
// bundled with the binary so counting never touches the network.
package tokenizer

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultEncoding is the encoding used when none is configured.
const DefaultEncoding = "cl100k_base"

// ErrUnknownEncoding is returned by Get for names with no registered encoding.
var ErrUnknownEncoding = errors.New("unknown tokenizer encoding")

// Tokenizer turns text into token ids. Only the number of ids is used.
type Tokenizer interface {
	Encode(text string) []int
}

// bpeEncodings are served by tiktoken.
var bpeEncodings = map[string]bool{
	"cl100k_base": true,
	"p50k_base":   true,
	"r50k_base":   true,
}

var (
	loaderOnce sync.Once
	mu         sync.Mutex
	loaded     = map[string]Tokenizer{}
)

// Get returns the tokenizer registered under name. BPE encodings are built
// on first use and shared afterwards.
func Get(name string) (Tokenizer, error) {
	if name == ApproxEncoding {
		return Approx{}, nil
	}
	if !bpeEncodings[name] {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownEncoding, name, Names())
	}

	mu.Lock()
	defer mu.Unlock()
	if tok, ok := loaded[name]; ok {
		return tok, nil
	}

	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("initializing tokenizer %q: %w", name, err)
	}
	tok := bpe{enc: enc}
	loaded[name] = tok
	return tok, nil
}

// Names lists every registered encoding name.
func Names() []string {
	names := []string{ApproxEncoding}
	for n := range bpeEncodings {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type bpe struct {
	enc *tiktoken.Tiktoken
}

func (b bpe) Encode(text string) []int {
	return b.enc.Encode(text, nil, nil)
}

// Count serializes v to compact JSON and returns its token count. Map keys
// are emitted in sorted order, so equal fragments always count the same.
// When v cannot be serialized Count returns 0 and the error.
func Count(v any, tok Tokenizer) (int, error) {
	data, err := Canonical(v)
	if err != nil {
		return 0, err
	}
	return len(tok.Encode(string(data))), nil
}

// CountText returns the token count of raw text.
func CountText(text string, tok Tokenizer) int {
	if text == "" {
		return 0
	}
	return len(tok.Encode(text))
}

// Canonical returns the compact serialization used for counting.
func Canonical(v any) ([]byte, error) {
	data, err := json.MarshalNoEscape(v)
	if err != nil {
		return nil, fmt.Errorf("serializing fragment for token count: %w", err)
	}
	return data, nil
}
