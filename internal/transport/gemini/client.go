package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-3-flash-preview"

var (
	ErrEmptyResponse = errors.New("empty response from model")
	ErrNotConfigured = errors.New("gemini client is not configured")
)

// moveSchema constrains the reply to {"move": <integer>}.
var moveSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"move": {
			Type:        genai.TypeInteger,
			Description: "The index of the board (0-8) for the next move.",
		},
	},
	Required: []string{"move"},
}

type Client struct {
	client *genai.Client
	model  string
}

// New creates a Gemini API client. baseURL may be empty to use the public endpoint.
func New(ctx context.Context, apiKey, model, baseURL string) (*Client, error) {
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Client{client: client, model: model}, nil
}

// SuggestMove sends the prompt and returns the raw JSON text of the reply. A nil client fails with
// ErrNotConfigured, so a server without an API key still plays the remote tier on the fallback.
func (that *Client) SuggestMove(ctx context.Context, prompt string) (string, error) {
	if that == nil {
		return "", ErrNotConfigured
	}

	response, err := that.client.Models.GenerateContent(ctx, that.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   moveSchema,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := response.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}

	return text, nil
}
