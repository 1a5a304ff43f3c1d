// Package openai implements the llm.Client interface on top of the OpenAI
// chat completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/valet-agent/valet/llm"
)

// OpenAI API errors don't directly expose retry-after headers.
// We use a default retry-after duration for rate limits.
const defaultRetryAfter = 60 * time.Second

// Client implements the llm.Client interface for OpenAI's API.
type Client struct {
	client *openai.Client
	model  string // default model if the request does not specify one
}

// NewClient creates a new OpenAI-backed Client.
// If apiKey is empty, it returns an error.
// If baseURL is empty, the default OpenAI API endpoint is used.
func NewClient(apiKey, baseURL, model, organization string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if organization != "" {
		config.OrgID = organization
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

// Complete implements llm.Client.Complete.
func (c *Client) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if !req.HasInput() {
		return nil, llm.ErrEmptyPrompt
	}

	model := req.Model
	if model == "" {
		model = c.model
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toChatMessages(req),
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, mapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, llm.NewProviderError("completion returned no choices", nil)
	}

	return &llm.Response{
		Text: resp.Choices[0].Message.Content,
		Usage: &llm.Usage{
			InputTokens:  int64(resp.Usage.PromptTokens),
			OutputTokens: int64(resp.Usage.CompletionTokens),
		},
	}, nil
}

// toChatMessages converts an llm.Request into OpenAI chat message format,
// prepending the system prompt when present.
func toChatMessages(req *llm.Request) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		var role string
		switch m.Role {
		case llm.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case llm.RoleSystem:
			role = openai.ChatMessageRoleSystem
		default:
			role = openai.ChatMessageRoleUser
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return msgs
}

// mapError converts provider-specific errors into the neutral llm.Error
// taxonomy so callers can make retry decisions without knowing the provider.
func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			retryAfter := defaultRetryAfter
			return llm.NewRateLimitError("openai rate limit exceeded", &retryAfter, err)
		case http.StatusBadRequest:
			return &llm.Error{
				Type:        llm.ErrorTypeInvalidRequest,
				Message:     "openai rejected the request",
				StatusCode:  apiErr.HTTPStatusCode,
				ProviderErr: err,
			}
		default:
			if apiErr.HTTPStatusCode >= 500 {
				return &llm.Error{
					Type:        llm.ErrorTypeProvider,
					Message:     "openai server error",
					Retryable:   true,
					StatusCode:  apiErr.HTTPStatusCode,
					ProviderErr: err,
				}
			}
			return llm.NewProviderError("openai request failed", err)
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return llm.NewNetworkError("openai request error", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &llm.Error{Type: llm.ErrorTypeTimeout, Message: "openai request timed out", Retryable: true, ProviderErr: err}
	}
	return llm.NewNetworkError("openai request failed", err)
}
