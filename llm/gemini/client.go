// Package gemini implements the llm.Client interface against Google's
// Gemini models through their OpenAI-compatible endpoint, reusing the same
// wire client as the openai package with a different base URL.
package gemini

import (
	"context"
	"fmt"

	"github.com/valet-agent/valet/llm"
	"github.com/valet-agent/valet/llm/openai"
)

// DefaultBaseURL is Google's OpenAI-compatible Gemini endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// DefaultModel is used when neither config nor request name a model.
const DefaultModel = "gemini-1.5-flash"

// Client implements the llm.Client interface for Gemini.
type Client struct {
	inner *openai.Client
}

// NewClient creates a new Gemini-backed Client.
func NewClient(apiKey, baseURL, model string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	inner, err := openai.NewClient(apiKey, baseURL, model, "")
	if err != nil {
		return nil, err
	}
	return &Client{inner: inner}, nil
}

// Complete implements llm.Client.Complete.
func (c *Client) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	return c.inner.Complete(ctx, req)
}
