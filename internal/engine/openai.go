// ABOUTME: OpenAI-backed Engine adapter translating streamed completions into trace events
// ABOUTME: Runs a tool-call loop for the primary channel, then an optional reviewer pass

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// GotQuestionsToolName is the supplemental-search tool whose successful
// output becomes a citations block.
const GotQuestionsToolName = "search_got_questions"

// Tool pairs a function definition exposed to the model with its executor
type Tool struct {
	Definition openai.Tool
	Run        func(ctx context.Context, args map[string]any) (string, error)
}

// OpenAIEngine implements Engine on the OpenAI chat completion API.
// The primary pass streams on ChannelPrimary and may invoke registered
// tools; when a reviewer model is configured, a second pass streams a
// short review on ChannelReviewer.
type OpenAIEngine struct {
	client        *openai.Client
	model         string
	reviewerModel string
	tools         map[string]Tool
	logger        *slog.Logger
}

// OpenAIEngineConfig configures an OpenAIEngine
type OpenAIEngineConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	ReviewerModel string
	Tools         []Tool
}

const reviewerPrompt = "You are Calvin, a careful doctrinal reviewer. " +
	"Briefly assess the preceding answer for theological accuracy and pastoral tone. " +
	"Two or three sentences, no preamble."

// NewOpenAIEngine creates an engine backed by the OpenAI API
func NewOpenAIEngine(cfg OpenAIEngineConfig) *OpenAIEngine {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	tools := make(map[string]Tool, len(cfg.Tools))
	for _, t := range cfg.Tools {
		tools[t.Definition.Function.Name] = t
	}

	return &OpenAIEngine{
		client:        openai.NewClientWithConfig(clientCfg),
		model:         cfg.Model,
		reviewerModel: cfg.ReviewerModel,
		tools:         tools,
		logger:        slog.Default().With("component", "engine"),
	}
}

// Run starts the execution and returns its ordered event stream
func (e *OpenAIEngine) Run(ctx context.Context, instructions []Instruction) (<-chan TraceEvent, error) {
	if len(instructions) == 0 {
		return nil, errors.New("instruction list is empty")
	}

	events := make(chan TraceEvent, 64)
	go func() {
		defer close(events)

		emit := func(ev TraceEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		answer, err := e.runPrimary(ctx, instructions, emit)
		if err != nil {
			emit(TraceError{Err: err})
			return
		}

		if e.reviewerModel != "" && answer != "" {
			if err := e.runReviewer(ctx, answer, emit); err != nil {
				emit(TraceError{Err: fmt.Errorf("reviewer pass: %w", err)})
			}
		}
	}()
	return events, nil
}

// runPrimary drives the tool-call loop on the primary channel and returns
// the accumulated answer text.
func (e *OpenAIEngine) runPrimary(ctx context.Context, instructions []Instruction, emit func(TraceEvent) bool) (string, error) {
	messages := toChatMessages(instructions)

	var defs []openai.Tool
	for _, t := range e.tools {
		defs = append(defs, t.Definition)
	}

	var answer strings.Builder
	started := false

	// Bounded loop: each iteration is one model step, either tool calls or
	// the final streamed answer.
	for step := 0; step < 8; step++ {
		req := openai.ChatCompletionRequest{
			Model:    e.model,
			Messages: messages,
			Tools:    defs,
			Stream:   true,
		}

		stream, err := e.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			return answer.String(), fmt.Errorf("starting completion stream: %w", err)
		}

		calls, done, err := e.consumeStream(stream, emit, &answer, &started)
		stream.Close()
		if err != nil {
			return answer.String(), err
		}
		if done {
			return answer.String(), nil
		}

		pending := make([]ToolCall, 0, len(calls))
		for _, c := range calls {
			pending = append(pending, ToolCall{Name: c.Function.Name, Arguments: parseArgs(c.Function.Arguments)})
		}
		if !emit(StepStart{PendingTools: pending}) {
			return answer.String(), ctx.Err()
		}

		messages = append(messages, openai.ChatCompletionMessage{
			Role:      openai.ChatMessageRoleAssistant,
			ToolCalls: calls,
		})

		for i, call := range calls {
			if !emit(ToolStart{Name: call.Function.Name}) {
				return answer.String(), ctx.Err()
			}

			output := e.executeTool(ctx, pending[i])
			if !emit(ToolEnd{Name: call.Function.Name, Output: output}) {
				return answer.String(), ctx.Err()
			}

			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: call.ID,
				Content:    output,
			})
		}

		if !emit(StepEnd{}) {
			return answer.String(), ctx.Err()
		}
	}

	return answer.String(), errors.New("tool-call loop exceeded step budget")
}

// consumeStream reads one completion stream, emitting token events and
// accumulating tool-call deltas. Returns the assembled calls, or done=true
// when the model finished with a plain answer.
func (e *OpenAIEngine) consumeStream(
	stream *openai.ChatCompletionStream,
	emit func(TraceEvent) bool,
	answer *strings.Builder,
	started *bool,
) (calls []openai.ToolCall, done bool, err error) {
	byIndex := make(map[int]*openai.ToolCall)

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, false, fmt.Errorf("reading completion stream: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}

		delta := resp.Choices[0].Delta
		if delta.Content != "" {
			if !*started {
				*started = true
				if !emit(GenerationStart{Channel: ChannelPrimary}) {
					return nil, false, context.Canceled
				}
			}
			answer.WriteString(delta.Content)
			if !emit(GenerationToken{Channel: ChannelPrimary, Text: delta.Content}) {
				return nil, false, context.Canceled
			}
		}

		for _, tc := range delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			acc, ok := byIndex[idx]
			if !ok {
				acc = &openai.ToolCall{Type: openai.ToolTypeFunction}
				byIndex[idx] = acc
			}
			if tc.ID != "" {
				acc.ID = tc.ID
			}
			if tc.Function.Name != "" {
				acc.Function.Name = tc.Function.Name
			}
			acc.Function.Arguments += tc.Function.Arguments
		}
	}

	if len(byIndex) == 0 {
		return nil, true, nil
	}
	for i := 0; i < len(byIndex); i++ {
		if acc, ok := byIndex[i]; ok {
			calls = append(calls, *acc)
		}
	}
	return calls, false, nil
}

// executeTool runs a registered tool; failures are reported in-band as the
// tool output so the model (and translator) can decide what to do with them.
func (e *OpenAIEngine) executeTool(ctx context.Context, call ToolCall) string {
	tool, ok := e.tools[call.Name]
	if !ok {
		e.logger.Warn("model requested unregistered tool", "tool", call.Name)
		return `{"error":"unknown tool"}`
	}

	output, err := tool.Run(ctx, call.Arguments)
	if err != nil {
		e.logger.Warn("tool execution failed", "tool", call.Name, "error", err)
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	return output
}

// runReviewer streams a short secondary review of the primary answer
func (e *OpenAIEngine) runReviewer(ctx context.Context, answer string, emit func(TraceEvent) bool) error {
	req := openai.ChatCompletionRequest{
		Model: e.reviewerModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: reviewerPrompt},
			{Role: openai.ChatMessageRoleUser, Content: answer},
		},
		Stream: true,
	}

	stream, err := e.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return fmt.Errorf("starting reviewer stream: %w", err)
	}
	defer stream.Close()

	started := false
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading reviewer stream: %w", err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
			continue
		}

		if !started {
			started = true
			if !emit(GenerationStart{Channel: ChannelReviewer}) {
				return ctx.Err()
			}
		}
		if !emit(GenerationToken{Channel: ChannelReviewer, Text: resp.Choices[0].Delta.Content}) {
			return ctx.Err()
		}
	}
}

func toChatMessages(instructions []Instruction) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(instructions))
	for _, ins := range instructions {
		role := openai.ChatMessageRoleUser
		switch ins.Role {
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: ins.Content})
	}
	return messages
}

func parseArgs(raw string) map[string]any {
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]any{}
	}
	return args
}
