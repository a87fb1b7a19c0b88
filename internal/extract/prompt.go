// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"text/template"

	"github.com/pdiddy/schema-extract/internal/httputil"
)

// extractionPromptTmpl is the instruction sent with every chunk. The
// document itself travels as a separate message part.
var extractionPromptTmpl = template.Must(template.New("extraction").Parse(`Review the provided document. Extract the relevant information based on the JSON schema below.
Ensure the output strictly adheres to the schema.
Think carefully about the schema and the content of the document and extract the relevant information correctly.
Output should be in JSON format only.
If certain information is not present in the document, do not include it in the output. Strictly only include information that is present in the document.
If you are not sure about a particular extracted value, add "needs_review": true to the output and a "review_reason" string explaining why.

This is the JSON schema (part {{.Index}}):
{{.Schema}}
`))

// renderPrompt executes the extraction prompt template for one chunk.
func renderPrompt(req Request) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Index  int
		Schema string
	}{Index: req.Index, Schema: string(req.Schema)}
	if err := extractionPromptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// documentMessage wraps the document so the model can tell it apart from
// the instructions.
func documentMessage(document string) string {
	return "<document>\n" + document + "\n</document>"
}

// claudeAPIURL is the Claude API endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

const claudeMaxTokens = 8000

// ClaudeBackend calls the Claude Messages API.
type ClaudeBackend struct {
	APIKey string
	Model  string
	Client *http.Client

	// URL overrides the Messages API endpoint.
	URL string

	// MaxRetries bounds HTTP-level retries on 429 and 5xx responses; zero
	// uses the httputil default.
	MaxRetries int
}

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Extract sends one chunk request and returns the model's text.
func (c *ClaudeBackend) Extract(ctx context.Context, r Request) (string, error) {
	prompt, err := renderPrompt(r)
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}

	reqBody := claudeRequest{
		Model:     c.Model,
		MaxTokens: claudeMaxTokens,
		System:    prompt,
		Messages: []claudeMessage{
			{Role: "user", Content: documentMessage(r.Document)},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := c.URL
	if url == "" {
		url = claudeAPIURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, c.MaxRetries)
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Claude API returned %d: %s", resp.StatusCode, string(body))
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return "", fmt.Errorf("decoding Claude response: %w", err)
	}

	for _, block := range cResp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in Claude API response")
}
