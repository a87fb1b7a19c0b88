// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

const openAIMaxOutputTokens = 8000

// OpenAIBackend calls the OpenAI Responses API with the chunk schema as a
// non-strict JSON schema text format.
type OpenAIBackend struct {
	Client *openai.Client
	Model  string
}

// NewOpenAIBackend builds a backend for model. Extra options are passed to
// the client, e.g. option.WithBaseURL in tests.
func NewOpenAIBackend(apiKey, model string, opts ...option.RequestOption) *OpenAIBackend {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := openai.NewClient(opts...)
	return &OpenAIBackend{Client: &client, Model: model}
}

// Extract sends one chunk request and returns the model's output text.
func (o *OpenAIBackend) Extract(ctx context.Context, r Request) (string, error) {
	if o.Client == nil {
		return "", errors.New("openai backend: client is nil")
	}
	if o.Model == "" {
		return "", errors.New("openai backend: model is empty")
	}

	prompt, err := renderPrompt(r)
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}

	var schemaObj map[string]any
	if err := json.Unmarshal(r.Schema, &schemaObj); err != nil {
		return "", fmt.Errorf("decoding chunk schema: %w", err)
	}

	params := responses.ResponseNewParams{
		Model:           o.Model,
		MaxOutputTokens: openai.Int(openAIMaxOutputTokens),
		Temperature:     openai.Float(0),
		Instructions:    openai.String(prompt),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(documentMessage(r.Document), responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:   fmt.Sprintf("schema_chunk_%d", r.Index),
					Schema: schemaObj,
					Strict: openai.Bool(false),
					Type:   "json_schema",
				},
			},
		},
	}

	resp, err := o.Client.Responses.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("calling OpenAI API: %w", err)
	}
	text := resp.OutputText()
	if text == "" {
		return "", errors.New("no text content in OpenAI response")
	}
	return text, nil
}
