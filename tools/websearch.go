package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/valet-agent/valet/tools/schemas"
)

const defaultSearchBaseURL = "https://api.duckduckgo.com"

type ddgResponse struct {
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	Heading       string `json:"Heading"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

// RegisterWebSearchTool registers the web search tool, backed by the
// DuckDuckGo instant answer API. baseURL overrides the endpoint for tests.
func RegisterWebSearchTool(r *Registry, client *resty.Client, baseURL string) error {
	if baseURL == "" {
		baseURL = defaultSearchBaseURL
	}
	return r.Register("web_search", schemas.WebSearchSchemas()["web_search"],
		func(ctx context.Context, args json.RawMessage) (any, error) {
			var payload struct {
				Query      string  `json:"query"`
				MaxResults float64 `json:"max_results"`
			}
			if err := json.Unmarshal(args, &payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
			}
			query := strings.TrimSpace(payload.Query)
			if query == "" {
				return nil, fmt.Errorf("query is empty")
			}
			maxResults := int(payload.MaxResults)
			if maxResults <= 0 {
				maxResults = 3
			}

			var out ddgResponse
			resp, err := client.R().
				SetContext(ctx).
				SetQueryParams(map[string]string{
					"q":             query,
					"format":        "json",
					"no_html":       "1",
					"skip_disambig": "1",
				}).
				SetResult(&out).
				Get(baseURL + "/")
			if err != nil {
				return nil, fmt.Errorf("search request failed: %w", err)
			}
			if resp.IsError() {
				return nil, fmt.Errorf("search service returned %s", resp.Status())
			}

			type hit struct {
				Title string `json:"title"`
				Text  string `json:"text"`
				URL   string `json:"url"`
			}
			var hits []hit
			if out.AbstractText != "" {
				hits = append(hits, hit{Title: out.Heading, Text: out.AbstractText, URL: out.AbstractURL})
			}
			for _, topic := range out.RelatedTopics {
				if len(hits) >= maxResults {
					break
				}
				if topic.Text == "" {
					continue
				}
				hits = append(hits, hit{Text: topic.Text, URL: topic.FirstURL})
			}
			if len(hits) == 0 {
				return nil, fmt.Errorf("no results for %q", query)
			}
			return map[string]any{
				"query":   query,
				"results": hits,
			}, nil
		})
}
