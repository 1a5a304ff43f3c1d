package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/valet-agent/valet/llm"
)

const summarizeSystem = `You are a memory summarization assistant. Your task is to fold raw conversation snippets into one compact factual statement about the user and what was discussed.

Rules:
- Preserve every durable fact and stated preference
- Drop filler, greetings, and repetition
- Use plain text only (no markdown, no bullet points, no numbered lists)
- Produce at most a few concise sentences`

// ClientSummarizer implements Summarizer on top of any llm.Client.
type ClientSummarizer struct {
	client llm.Client
	model  string
}

// NewClientSummarizer wraps an LLM client as a Summarizer.
func NewClientSummarizer(client llm.Client, model string) *ClientSummarizer {
	return &ClientSummarizer{client: client, model: model}
}

// Summarize condenses the given entries into one durable statement.
func (s *ClientSummarizer) Summarize(ctx context.Context, entries []Entry) (string, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("no entries to summarize")
	}

	var b strings.Builder
	for _, e := range entries {
		b.WriteString("- ")
		b.WriteString(e.Content)
		b.WriteString("\n")
	}

	resp, err := s.client.Complete(ctx, &llm.Request{
		Model:  s.model,
		System: summarizeSystem,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "Summarize these conversation snippets:\n\n" + b.String()},
		},
		MaxTokens: 300,
	})
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	summary := strings.TrimSpace(resp.Text)
	if summary == "" {
		return "", fmt.Errorf("received empty summary from model")
	}
	return summary, nil
}
