// ABOUTME: Orchestrates one conversational turn end to end
// ABOUTME: History, memory context, engine trace, frames, atomic persistence

package turn

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Jegama/calvinist-parrot-sub000/internal/engine"
	"github.com/Jegama/calvinist-parrot-sub000/internal/memory"
	"github.com/Jegama/calvinist-parrot-sub000/internal/store"
)

// memoryUpdateTimeout bounds the detached post-turn memory task
const memoryUpdateTimeout = 30 * time.Second

// ContextBuilder produces the optional personalization block for a turn
type ContextBuilder interface {
	BuildContext(ctx context.Context, ownerID, query string) string
}

// Request is one validated turn request. The caller has already resolved
// identity and confirmed the session exists and belongs to the requester.
type Request struct {
	Session *store.Session
	Message string
	// Continuation means the user message is already persisted; this
	// turn must not write it again
	Continuation bool
}

// Runner drives one turn per call. All collaborators are injected; a nil
// Memory or Updater simply disables that concern.
type Runner struct {
	Store        store.Store
	Engine       engine.Engine
	Coordinator  *Coordinator
	Memory       ContextBuilder
	Updater      memory.Updater
	SystemPrompt string
	Logger       *slog.Logger
}

// Run streams one turn to w. It never returns an error: once streaming
// has started every failure is surfaced as an error frame, and the stream
// always terminates with exactly one done frame, even on panic.
func (r *Runner) Run(ctx context.Context, w FrameWriter, req Request) {
	logger := r.logger().With("session_id", req.Session.ID)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("turn pipeline panicked", "panic", rec)
			w.Write(ErrorFrame(StageGeneration, "internal error"))
		}
		w.Write(DoneFrame())
	}()

	w.Write(InfoFrame())

	prior, err := r.Store.ListMessages(ctx, req.Session.ID)
	if err != nil {
		logger.Error("failed to load session history", "error", err)
		w.Write(ErrorFrame(StageGeneration, "failed to load conversation history"))
		return
	}

	var memoryContext string
	if r.Memory != nil {
		memoryContext = r.Memory.BuildContext(ctx, req.Session.OwnerID, req.Message)
	}

	instructions := memory.Assemble(r.SystemPrompt, memoryContext, req.Session.OwnerID, prior)
	if !req.Continuation && req.Message != "" {
		instructions = append(instructions, engine.Instruction{Role: engine.RoleUser, Content: req.Message})
	}

	translator := NewTranslator(w, logger)
	generationFailed := false

	events, err := r.Engine.Run(ctx, instructions)
	if err != nil {
		logger.Error("engine failed to start", "error", err)
		w.Write(ErrorFrame(StageGeneration, "generation failed to start"))
		generationFailed = true
	} else {
		for event := range events {
			if handleErr := translator.Handle(event); handleErr != nil {
				logger.Error("generation failed mid-trace", "error", handleErr)
				w.Write(ErrorFrame(StageGeneration, "generation failed"))
				generationFailed = true
			}
		}
	}

	if !generationFailed {
		translator.Finish()
	}

	// Persistence runs even after a generation failure: partial state
	// already accumulated must not be thrown away with the error.
	result := TurnResult{
		SessionID:       req.Session.ID,
		Question:        req.Message,
		PersistQuestion: !req.Continuation && req.Message != "",
		AssistantText:   translator.PrimaryText(),
		ReviewerText:    translator.ReviewerText(),
		CitationBlocks:  translator.CitationBlocks(),
	}

	if r.hasWrites(result) {
		switch err := r.Coordinator.Commit(ctx, result); {
		case err == nil:
		case isMetadataError(err):
			logger.Warn("conversation metadata step failed", "error", err)
			w.Write(ErrorFrame(StageConversation, "failed to update conversation metadata"))
		default:
			logger.Error("failed to persist turn", "error", err)
			w.Write(ErrorFrame(StagePersist, "failed to save messages"))
		}
	}

	r.fireMemoryUpdate(req.Session.OwnerID, transcript(result))
}

// fireMemoryUpdate launches the detached long-term memory task. Its
// failures are logged only: it never blocks or fails the turn.
func (r *Runner) fireMemoryUpdate(ownerID, turnTranscript string) {
	if r.Updater == nil || turnTranscript == "" {
		return
	}
	logger := r.logger()

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("memory update panicked", "panic", rec)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), memoryUpdateTimeout)
		defer cancel()

		if err := r.Updater.Update(ctx, ownerID, turnTranscript); err != nil {
			logger.Warn("background memory update failed", "owner_id", ownerID, "error", err)
		}
	}()
}

func (r *Runner) hasWrites(result TurnResult) bool {
	return result.PersistQuestion || result.AssistantText != "" ||
		result.ReviewerText != "" || len(result.CitationBlocks) > 0
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default().With("component", "turn")
}

func isMetadataError(err error) bool {
	return errors.Is(err, ErrConversationMetadata)
}
