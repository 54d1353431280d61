// ABOUTME: Accumulates a turn's pending writes and commits them as one batch
// ABOUTME: Title derivation with placeholder fallback lives here too

package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Jegama/calvinist-parrot-sub000/internal/engine"
	"github.com/Jegama/calvinist-parrot-sub000/internal/store"
)

// ErrConversationMetadata marks a failure while resolving conversation
// metadata for the title step, as opposed to the message batch itself
var ErrConversationMetadata = errors.New("conversation metadata unavailable")

// TurnResult is everything one completed turn wants persisted
type TurnResult struct {
	SessionID string
	// Question is the user's message for this turn, used for the title
	// and memory transcripts
	Question string
	// PersistQuestion is false on continuation turns: the user message
	// is already in history and must not be written twice
	PersistQuestion bool
	AssistantText   string
	ReviewerText    string
	CitationBlocks  []string
}

// Coordinator turns a TurnResult into one atomic store commit
type Coordinator struct {
	store  store.Store
	titler engine.Titler
	logger *slog.Logger
}

// NewCoordinator creates a coordinator. titler may be nil; the title then
// simply stays at the placeholder.
func NewCoordinator(st store.Store, titler engine.Titler, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:  st,
		titler: titler,
		logger: logger.With("component", "coordinator"),
	}
}

// Commit writes the turn's accumulated messages and, when the session is
// still untitled, a freshly derived title, in a single atomic batch.
// An ErrConversationMetadata return means the messages were still
// committed; only the title step was skipped.
func (c *Coordinator) Commit(ctx context.Context, result TurnResult) error {
	write := &store.TurnWrite{SessionID: result.SessionID}
	now := time.Now()

	appendMessage := func(kind, body string) {
		if body == "" {
			return
		}
		write.Messages = append(write.Messages, &store.Message{
			ID:        uuid.NewString(),
			SessionID: result.SessionID,
			Kind:      kind,
			Body:      body,
			CreatedAt: now,
		})
		now = now.Add(time.Microsecond)
	}

	if result.PersistQuestion {
		appendMessage(store.KindUser, result.Question)
	}
	appendMessage(store.KindAssistant, result.AssistantText)
	appendMessage(store.KindReviewer, result.ReviewerText)
	for _, block := range result.CitationBlocks {
		appendMessage(store.KindCitations, block)
	}

	title, metaErr := c.resolveTitle(ctx, result)
	write.Title = title

	if err := c.store.CommitTurn(ctx, write); err != nil {
		return fmt.Errorf("committing turn batch: %w", err)
	}

	return metaErr
}

// resolveTitle decides whether this commit should also set the session
// title. It reads the session fresh so concurrent turns racing on the
// placeholder resolve via the store's conditional update, not stale state.
// Title generation failure falls back to the placeholder silently.
func (c *Coordinator) resolveTitle(ctx context.Context, result TurnResult) (string, error) {
	session, err := c.store.GetSession(ctx, result.SessionID)
	if err != nil {
		c.logger.Warn("failed to load session for title step", "session_id", result.SessionID, "error", err)
		return "", fmt.Errorf("%w: %v", ErrConversationMetadata, err)
	}
	if session.Title != store.PlaceholderTitle {
		return "", nil
	}
	if c.titler == nil {
		return "", nil
	}

	title, err := c.titler.Title(ctx, transcript(result))
	if err != nil || strings.TrimSpace(title) == "" {
		c.logger.Warn("title generation failed, keeping placeholder", "session_id", result.SessionID, "error", err)
		return "", nil
	}
	return strings.TrimSpace(title), nil
}

// transcript renders the turn as plain text for the summarizer and for
// the background memory update
func transcript(result TurnResult) string {
	var sb strings.Builder
	if result.Question != "" {
		fmt.Fprintf(&sb, "User: %s\n", result.Question)
	}
	if result.AssistantText != "" {
		fmt.Fprintf(&sb, "Parrot: %s\n", result.AssistantText)
	}
	if result.ReviewerText != "" {
		fmt.Fprintf(&sb, "Calvin: %s\n", result.ReviewerText)
	}
	return strings.TrimRight(sb.String(), "\n")
}
