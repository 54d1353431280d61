// ABOUTME: Translates the engine's internal trace into client progress frames
// ABOUTME: Announce-once latches, per-tool dedupe, citations parsing, token accumulation

package turn

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Jegama/calvinist-parrot-sub000/internal/engine"
	"github.com/Jegama/calvinist-parrot-sub000/internal/metrics"
)

// Translator consumes trace events one at a time and emits the frames the
// client protocol defines for them. It runs strictly single-threaded per
// turn: frame order equals event order, always.
//
// The protocol is intentionally narrower than the trace surface. Planning
// and drafting are announced at most once per turn, each tool name is
// announced at most once per turn, and unrecognized event kinds are
// swallowed so new engine trace kinds never leak to clients.
type Translator struct {
	writer FrameWriter
	logger *slog.Logger

	announcedPlanning bool
	announcedDrafting bool
	announcedTools    map[string]bool
	activeTools       map[string]bool

	primary   strings.Builder
	reviewer  strings.Builder
	citations []string
}

// NewTranslator creates a translator writing to w
func NewTranslator(w FrameWriter, logger *slog.Logger) *Translator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Translator{
		writer:         w,
		logger:         logger.With("component", "translator"),
		announcedTools: make(map[string]bool),
		activeTools:    make(map[string]bool),
	}
}

// Handle translates one trace event. A returned error means generation
// itself failed; the caller surfaces it and moves on to persistence.
func (t *Translator) Handle(event engine.TraceEvent) error {
	switch ev := event.(type) {
	case engine.StepStart:
		if !t.announcedPlanning {
			t.announcedPlanning = true
			t.writer.Write(ProgressFrame("Mapping out a plan", "Reviewing the question and deciding how to answer it."))
		}
		for _, call := range ev.PendingTools {
			t.announceTool(call.Name, call)
		}

	case engine.ToolStart:
		t.activeTools[ev.Name] = true
		metrics.RecordToolCall(ev.Name)
		t.announceTool(ev.Name, engine.ToolCall{Name: ev.Name})

	case engine.ToolEnd:
		delete(t.activeTools, ev.Name)
		if ev.Name == engine.GotQuestionsToolName {
			t.handleCitations(ev.Output)
		}

	case engine.StepEnd:
		clear(t.activeTools)

	case engine.GenerationStart:
		if !t.announcedDrafting {
			t.announcedDrafting = true
			t.writer.Write(ProgressFrame("Drafting response", "Writing out the answer."))
		}

	case engine.GenerationToken:
		switch ev.Channel {
		case engine.ChannelPrimary:
			t.primary.WriteString(ev.Text)
		case engine.ChannelReviewer:
			t.reviewer.WriteString(ev.Text)
		}
		t.writer.Write(TokenFrame(ev.Channel, ev.Text))

	case engine.TraceError:
		return ev.Err

	case engine.Unknown:
		t.logger.Debug("swallowing unrecognized trace event", "kind", ev.Kind)

	default:
		t.logger.Debug("swallowing unhandled trace event", "event", fmt.Sprintf("%T", event))
	}

	return nil
}

// Finish announces the final stage once the trace is exhausted
func (t *Translator) Finish() {
	t.writer.Write(ProgressFrame("Final polishing", "Checking the answer before saving it."))
}

// PrimaryText returns the accumulated primary-channel reply
func (t *Translator) PrimaryText() string {
	return t.primary.String()
}

// ReviewerText returns the accumulated reviewer-channel reply
func (t *Translator) ReviewerText() string {
	return t.reviewer.String()
}

// CitationBlocks returns the citations blocks queued for persistence
func (t *Translator) CitationBlocks() []string {
	return t.citations
}

// announceTool emits a friendly progress frame for a tool, at most once
// per tool name per turn
func (t *Translator) announceTool(name string, call engine.ToolCall) {
	if name == "" || t.announcedTools[name] {
		return
	}
	t.announcedTools[name] = true

	if name == engine.GotQuestionsToolName {
		if query := call.StringArg("query"); query != "" {
			t.writer.Write(ProgressFrame("Consulting trusted resources", query))
			return
		}
		t.writer.Write(ProgressFrame("Consulting trusted resources", "Searching for supporting articles."))
		return
	}

	t.writer.Write(ProgressFrame(fmt.Sprintf("Using %s", humanizeToolName(name)), ""))
}

// citationResult is the citations tool's structured output
type citationResult struct {
	Results []struct {
		Title string `json:"title"`
		URL   string `json:"url"`
	} `json:"results"`
	Error string `json:"error"`
}

// handleCitations parses a citations tool payload. Any failure here is
// non-fatal: the turn continues without a citations frame.
func (t *Translator) handleCitations(output string) {
	var result citationResult
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.logger.Warn("citations payload unparsable, skipping", "error", err)
		return
	}
	if result.Error != "" {
		t.logger.Warn("citations tool reported an error, skipping", "tool_error", result.Error)
		return
	}
	if len(result.Results) == 0 {
		t.logger.Debug("citations tool returned no results")
		return
	}

	var sb strings.Builder
	for _, r := range result.Results {
		fmt.Fprintf(&sb, "* [%s](%s)\n", r.Title, r.URL)
	}
	block := strings.TrimRight(sb.String(), "\n")

	t.writer.Write(CitationsFrame(block))
	t.citations = append(t.citations, block)
	t.writer.Write(ProgressFrame("Synthesizing answer", "Folding the supporting articles into the reply."))
}

// humanizeToolName turns snake_case tool names into readable labels
func humanizeToolName(name string) string {
	if name == "" {
		return "a tool"
	}
	return strings.ReplaceAll(name, "_", " ")
}
