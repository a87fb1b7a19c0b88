// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// validate checks data against the request's chunk schema and returns one
// line per violated leaf, formatted as "location: message".
func validate(req Request, data []byte) []string {
	url := fmt.Sprintf("schema_chunk_%d.json", req.Index)
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(req.Schema)); err != nil {
		return []string{fmt.Sprintf("invalid chunk schema: %v", err)}
	}
	sch, err := compiler.Compile(url)
	if err != nil {
		return []string{fmt.Sprintf("invalid chunk schema: %v", err)}
	}

	v, err := unmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return []string{fmt.Sprintf("decoding reply: %v", err)}
	}

	err = sch.Validate(v)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []string{err.Error()}
	}
	var out []string
	collectLeaves(verr, &out)
	return out
}

func collectLeaves(e *jsonschema.ValidationError, out *[]string) {
	if len(e.Causes) == 0 {
		loc := e.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		*out = append(*out, loc+": "+e.Message)
		return
	}
	for _, c := range e.Causes {
		collectLeaves(c, out)
	}
}

// unmarshalJSON decodes r the way jsonschema v5 expects instances to be
// decoded (json.Number for numbers) and rejects trailing data.
func unmarshalJSON(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("invalid character after top-level value")
	}
	return v, nil
}
