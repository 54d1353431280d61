// ABOUTME: Built-in tool definitions for the execution engine
// ABOUTME: The GotQuestions search tool proxies a remote search API verbatim

package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// searchToolDefinition describes the supplemental-search tool to the model
func searchToolDefinition() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        GotQuestionsToolName,
			Description: "Search trusted theological articles for a question or topic",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The question or topic to search for",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}

// NewGotQuestionsTool builds the search tool against a remote search endpoint.
// The endpoint's JSON body ({"results":[{"title","url"}...]} or {"error":...})
// is passed through untouched; downstream consumers own the parsing.
func NewGotQuestionsTool(endpoint string, client *http.Client) Tool {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	return Tool{
		Definition: searchToolDefinition(),
		Run: func(ctx context.Context, args map[string]any) (string, error) {
			query, _ := args["query"].(string)
			if query == "" {
				return "", fmt.Errorf("query argument is required")
			}

			u := fmt.Sprintf("%s?q=%s", endpoint, url.QueryEscape(query))
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if err != nil {
				return "", fmt.Errorf("building search request: %w", err)
			}

			resp, err := client.Do(req)
			if err != nil {
				return "", fmt.Errorf("searching: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
			if err != nil {
				return "", fmt.Errorf("reading search response: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				return "", fmt.Errorf("search returned status %d", resp.StatusCode)
			}
			return string(body), nil
		},
	}
}
