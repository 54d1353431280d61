// ABOUTME: Tests for the atomic turn-commit coordinator and title derivation

package turn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jegama/calvinist-parrot-sub000/internal/store"
)

type fakeTitler struct {
	title string
	err   error
	calls int
}

func (f *fakeTitler) Title(context.Context, string) (string, error) {
	f.calls++
	return f.title, f.err
}

func newCommitFixture(t *testing.T) (store.Store, *store.Session) {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	session := &store.Session{
		ID:        uuid.NewString(),
		OwnerID:   "u1",
		Title:     store.PlaceholderTitle,
		CreatedAt: time.Now(),
	}
	require.NoError(t, st.CreateSession(context.Background(), session))
	return st, session
}

func kinds(messages []*store.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.Kind
	}
	return out
}

func TestCommit_FullTurn(t *testing.T) {
	st, session := newCommitFixture(t)
	titler := &fakeTitler{title: "The Nature of Grace"}
	c := NewCoordinator(st, titler, nil)
	ctx := context.Background()

	err := c.Commit(ctx, TurnResult{
		SessionID:       session.ID,
		Question:        "What is grace?",
		PersistQuestion: true,
		AssistantText:   "Unmerited favor.",
		ReviewerText:    "Well put.",
		CitationBlocks:  []string{"* [Grace](https://example.org)"},
	})
	require.NoError(t, err)

	messages, err := st.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{store.KindUser, store.KindAssistant, store.KindReviewer, store.KindCitations}, kinds(messages))

	got, err := st.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "The Nature of Grace", got.Title)
}

func TestCommit_ContinuationSkipsUserMessage(t *testing.T) {
	st, session := newCommitFixture(t)
	c := NewCoordinator(st, &fakeTitler{title: "t"}, nil)
	ctx := context.Background()

	err := c.Commit(ctx, TurnResult{
		SessionID:       session.ID,
		Question:        "What is grace?",
		PersistQuestion: false,
		AssistantText:   "Unmerited favor.",
	})
	require.NoError(t, err)

	messages, err := st.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{store.KindAssistant}, kinds(messages))
}

func TestCommit_TitlerFailureKeepsPlaceholder(t *testing.T) {
	st, session := newCommitFixture(t)
	c := NewCoordinator(st, &fakeTitler{err: errors.New("summarizer down")}, nil)
	ctx := context.Background()

	err := c.Commit(ctx, TurnResult{
		SessionID:       session.ID,
		Question:        "q",
		PersistQuestion: true,
		AssistantText:   "a",
	})
	require.NoError(t, err, "title generation failure is silent")

	got, err := st.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, store.PlaceholderTitle, got.Title, "never leave the title blank")
}

func TestCommit_TitledSessionSkipsTitler(t *testing.T) {
	st, session := newCommitFixture(t)
	titler := &fakeTitler{title: "first"}
	c := NewCoordinator(st, titler, nil)
	ctx := context.Background()

	require.NoError(t, c.Commit(ctx, TurnResult{
		SessionID: session.ID, Question: "q", PersistQuestion: true, AssistantText: "a",
	}))
	require.NoError(t, c.Commit(ctx, TurnResult{
		SessionID: session.ID, AssistantText: "b",
	}))

	assert.Equal(t, 1, titler.calls, "titled sessions never re-derive")

	got, err := st.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title)
}

// metadataFailStore fails session reads but commits batches normally
type metadataFailStore struct {
	store.Store
}

func (m *metadataFailStore) GetSession(context.Context, string) (*store.Session, error) {
	return nil, errors.New("metadata table locked")
}

func TestCommit_MetadataFailureStillCommitsMessages(t *testing.T) {
	st, session := newCommitFixture(t)
	c := NewCoordinator(&metadataFailStore{Store: st}, &fakeTitler{title: "t"}, nil)
	ctx := context.Background()

	err := c.Commit(ctx, TurnResult{
		SessionID:       session.ID,
		Question:        "q",
		PersistQuestion: true,
		AssistantText:   "a",
	})
	require.ErrorIs(t, err, ErrConversationMetadata)

	messages, listErr := st.ListMessages(ctx, session.ID)
	require.NoError(t, listErr)
	assert.Len(t, messages, 2, "the message batch still committed")
}

func TestCommit_BatchFailureSurfaces(t *testing.T) {
	st, session := newCommitFixture(t)
	c := NewCoordinator(st, nil, nil)
	ctx := context.Background()

	err := c.Commit(ctx, TurnResult{
		SessionID:       "no-such-session",
		Question:        "q",
		PersistQuestion: true,
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrConversationMetadata))

	messages, listErr := st.ListMessages(ctx, session.ID)
	require.NoError(t, listErr)
	assert.Empty(t, messages)
}

func TestTranscriptRendering(t *testing.T) {
	got := transcript(TurnResult{
		Question:      "What is grace?",
		AssistantText: "Unmerited favor.",
		ReviewerText:  "Agreed.",
	})
	assert.Equal(t, "User: What is grace?\nParrot: Unmerited favor.\nCalvin: Agreed.", got)
}
