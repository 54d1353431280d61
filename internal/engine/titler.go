// ABOUTME: OpenAI-backed Titler deriving short conversation titles from transcripts
// ABOUTME: Single non-streamed completion; callers fall back to the placeholder on error

package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const titlePrompt = "Summarize this conversation as a title of at most six words. " +
	"Reply with the title only, no quotes, no trailing punctuation."

// maxTranscriptForTitle bounds how much transcript is sent to the summarizer
const maxTranscriptForTitle = 4000

// OpenAITitler implements Titler with a single chat completion
type OpenAITitler struct {
	client *openai.Client
	model  string
}

// NewOpenAITitler creates a titler using the given client configuration
func NewOpenAITitler(apiKey, baseURL, model string) *OpenAITitler {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAITitler{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Title derives a short title from the transcript
func (t *OpenAITitler) Title(ctx context.Context, transcript string) (string, error) {
	if len(transcript) > maxTranscriptForTitle {
		transcript = transcript[:maxTranscriptForTitle]
	}

	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: titlePrompt},
			{Role: openai.ChatMessageRoleUser, Content: transcript},
		},
	})
	if err != nil {
		return "", fmt.Errorf("title completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("title completion returned no choices")
	}

	title := strings.TrimSpace(resp.Choices[0].Message.Content)
	title = strings.Trim(title, `"`)
	if title == "" {
		return "", errors.New("title completion returned empty text")
	}
	return title, nil
}
