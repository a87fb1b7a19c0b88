// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// parseObject extracts the JSON object from a model reply. Models sometimes
// wrap the object in a Markdown code fence or surround it with prose; both
// are tolerated. The returned object is compacted.
func parseObject(text string) (json.RawMessage, error) {
	s := strings.TrimSpace(stripCodeFence(text))
	if s == "" {
		return nil, io.ErrUnexpectedEOF
	}

	if obj, err := compactObject(s); err == nil {
		return obj, nil
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start != -1 && end == -1 {
		return nil, io.ErrUnexpectedEOF
	}
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object found in model output (len=%d)", len(s))
	}

	obj, err := compactObject(s[start : end+1])
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal extracted JSON (len=%d): %w", end+1-start, err)
	}
	return obj, nil
}

var errNotObject = errors.New("reply is not a JSON object")

func compactObject(s string) (json.RawMessage, error) {
	if !strings.HasPrefix(s, "{") {
		return nil, errNotObject
	}
	if !json.Valid([]byte(s)) {
		var v any
		return nil, json.Unmarshal([]byte(s), &v)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(s)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// stripCodeFence returns the body of the first ``` fenced block, or text
// unchanged when there is none.
func stripCodeFence(text string) string {
	open := strings.Index(text, "```")
	if open == -1 {
		return text
	}
	body := text[open+3:]
	if nl := strings.IndexByte(body, '\n'); nl != -1 {
		// Drop the info string, e.g. "json".
		body = body[nl+1:]
	}
	if end := strings.Index(body, "```"); end != -1 {
		body = body[:end]
	}
	return body
}
