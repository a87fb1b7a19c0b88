// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract sends a document to a language model once per schema
// chunk and collects the structured objects it returns.
//
// Each chunk is an independent request. A chunk whose backend call keeps
// failing, or whose reply is not JSON, yields an error envelope instead of
// aborting the run, so the caller always gets one result per chunk.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sourcegraph/conc/pool"

	"github.com/pdiddy/schema-extract/internal/chunk"
)

const (
	defaultMaxRetries  = 3
	defaultConcurrency = 4
)

// parseFailure is the error text recorded when a reply is not valid JSON.
const parseFailure = "Failed to parse response as JSON"

// AIBackend abstracts the Generative AI API so tests can supply a mock.
// Extract returns the model's raw text for one chunk.
type AIBackend interface {
	Extract(ctx context.Context, req Request) (string, error)
}

// Request is one extraction call: the full document and the chunk schema
// the reply must follow.
type Request struct {
	Document string
	Schema   json.RawMessage

	// Index is the 1-based position of the chunk within the plan.
	Index int
}

// Failure is the envelope recorded for a chunk that produced no object.
type Failure struct {
	Error   string `json:"error" yaml:"error"`
	RawText string `json:"raw_text,omitempty" yaml:"raw_text,omitempty"`
}

// ChunkResult is the outcome of one chunk.
type ChunkResult struct {
	Index      int             `json:"index"`
	Properties []string        `json:"properties"`
	Data       json.RawMessage `json:"data,omitempty"`
	Failure    *Failure        `json:"failure,omitempty"`
	Violations []string        `json:"violations,omitempty"`
	Attempts   int             `json:"attempts"`
	Elapsed    time.Duration   `json:"elapsed"`
}

// OK reports whether the chunk produced a JSON object.
func (r ChunkResult) OK() bool {
	return r.Failure == nil
}

// Runner fans chunk requests out to a backend.
type Runner struct {
	Backend AIBackend

	// Concurrency bounds the number of in-flight chunk calls. Zero means 4.
	Concurrency int

	// MaxRetries is the number of retries after a failed backend call.
	// Zero means 3.
	MaxRetries int

	// Validate checks each parsed object against its chunk schema.
	Validate bool

	Logger *slog.Logger
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

// Run extracts document against every chunk and returns the results in
// chunk order. Only context cancellation and unusable chunks are returned
// as errors; per-chunk failures are recorded in the output.
func (r *Runner) Run(ctx context.Context, document string, chunks []chunk.Chunk) (*Output, error) {
	if r.Backend == nil {
		return nil, errors.New("extract: no backend configured")
	}

	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	reqs := make([]Request, len(chunks))
	for i, c := range chunks {
		data, err := c.Marshal(false)
		if err != nil {
			return nil, fmt.Errorf("encoding chunk %d: %w", i+1, err)
		}
		reqs[i] = Request{Document: document, Schema: data, Index: i + 1}
	}

	out := &Output{Results: make([]ChunkResult, len(chunks))}
	p := pool.New().WithMaxGoroutines(concurrency)
	for i := range chunks {
		i := i
		p.Go(func() {
			out.Results[i] = r.runChunk(ctx, logger, reqs[i], chunks[i].PropertyNames())
		})
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Runner) runChunk(ctx context.Context, logger *slog.Logger, req Request, props []string) ChunkResult {
	res := ChunkResult{Index: req.Index, Properties: props}
	start := time.Now()
	defer func() { res.Elapsed = time.Since(start) }()

	logger.Info("extracting chunk", "chunk", req.Index, "properties", len(props))

	text, attempts, err := callWithRetry(ctx, r.Backend, req, r.maxRetries(), logger)
	res.Attempts = attempts
	if err != nil {
		logger.Error("chunk extraction failed", "chunk", req.Index, "attempts", attempts, "error", err)
		res.Failure = &Failure{Error: err.Error()}
		return res
	}

	data, err := parseObject(text)
	if err != nil {
		logger.Warn("chunk reply is not JSON", "chunk", req.Index, "error", err)
		res.Failure = &Failure{Error: parseFailure, RawText: text}
		return res
	}
	res.Data = data

	if r.Validate {
		res.Violations = validate(req, data)
		if len(res.Violations) > 0 {
			logger.Warn("chunk reply does not match its schema", "chunk", req.Index, "violations", len(res.Violations))
		}
	}
	return res
}

func (r *Runner) maxRetries() int {
	if r.MaxRetries <= 0 {
		return defaultMaxRetries
	}
	return r.MaxRetries
}

// callWithRetry calls the AI backend with exponential backoff and reports
// how many attempts were made.
func callWithRetry(ctx context.Context, backend AIBackend, req Request, maxRetries int, logger *slog.Logger) (string, int, error) {
	attempts := 0
	text, err := retry.DoWithData(
		func() (string, error) {
			attempts++
			return backend.Extract(ctx, req)
		},
		retry.Context(ctx),
		retry.Attempts(uint(maxRetries+1)),
		retry.Delay(backoffBase),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("retrying chunk", "chunk", req.Index, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return "", attempts, fmt.Errorf("after %d attempts: %w", attempts, err)
	}
	return text, attempts, nil
}
