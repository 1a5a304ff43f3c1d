package openaiembed

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/valet-agent/valet/memory"
)

type Model string

const (
	ModelTextEmbedding3Small Model = "text-embedding-3-small"
)

type embedder struct {
	client *openai.Client
	model  Model
}

// NewEmbedder creates an Embedder backed by the OpenAI embeddings API.
func NewEmbedder(apiKey string, model Model) (memory.Embedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if model == "" {
		model = ModelTextEmbedding3Small
	}
	return &embedder{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

func (e *embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned for input")
	}
	return resp.Data[0].Embedding, nil
}
