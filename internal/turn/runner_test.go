// ABOUTME: End-to-end turn pipeline tests using a scripted engine
// ABOUTME: Terminal-frame, continuation, citation and failure-path guarantees

package turn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jegama/calvinist-parrot-sub000/internal/engine"
	"github.com/Jegama/calvinist-parrot-sub000/internal/store"
)

// notifyingUpdater records background memory updates
type notifyingUpdater struct {
	mu         sync.Mutex
	transcript string
	done       chan struct{}
	err        error
}

func newNotifyingUpdater() *notifyingUpdater {
	return &notifyingUpdater{done: make(chan struct{})}
}

func (u *notifyingUpdater) Update(_ context.Context, _, transcript string) error {
	u.mu.Lock()
	u.transcript = transcript
	u.mu.Unlock()
	close(u.done)
	return u.err
}

func (u *notifyingUpdater) wait(t *testing.T) string {
	t.Helper()
	select {
	case <-u.done:
	case <-time.After(2 * time.Second):
		t.Fatal("background memory update never fired")
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.transcript
}

type staticContext struct{ text string }

func (s staticContext) BuildContext(context.Context, string, string) string { return s.text }

// commitFailStore rejects every turn batch
type commitFailStore struct {
	store.Store
}

func (c *commitFailStore) CommitTurn(context.Context, *store.TurnWrite) error {
	return errors.New("database is locked")
}

func newRunnerFixture(t *testing.T, eng engine.Engine) (*Runner, store.Store, *store.Session) {
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

	runner := &Runner{
		Store:        st,
		Engine:       eng,
		Coordinator:  NewCoordinator(st, &fakeTitler{title: "Test Title"}, nil),
		SystemPrompt: "You are a helpful assistant.",
	}
	return runner, st, session
}

func countType(frames []Frame, frameType string) int {
	count := 0
	for _, f := range frames {
		if f.Type == frameType {
			count++
		}
	}
	return count
}

func happyTrace() []engine.TraceEvent {
	return []engine.TraceEvent{
		engine.StepStart{},
		engine.GenerationStart{Channel: engine.ChannelPrimary},
		engine.GenerationToken{Channel: engine.ChannelPrimary, Text: "By grace alone."},
		engine.GenerationStart{Channel: engine.ChannelReviewer},
		engine.GenerationToken{Channel: engine.ChannelReviewer, Text: "Sound."},
	}
}

func TestRun_HappyPath(t *testing.T) {
	runner, st, session := newRunnerFixture(t, &engine.ScriptedEngine{Events: happyTrace()})
	w := &recordingWriter{}

	runner.Run(context.Background(), w, Request{Session: session, Message: "What is grace?"})

	require.NotEmpty(t, w.frames)
	assert.Equal(t, TypeInfo, w.frames[0].Type, "stream opens with info")
	assert.Equal(t, TypeDone, w.frames[len(w.frames)-1].Type, "stream ends with done")
	assert.Equal(t, 1, countType(w.frames, TypeDone))
	assert.Zero(t, countType(w.frames, TypeError))

	messages, err := st.ListMessages(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{store.KindUser, store.KindAssistant, store.KindReviewer}, kinds(messages))

	got, err := st.GetSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test Title", got.Title)
}

func TestRun_ContinuationNoDuplicateUserMessage(t *testing.T) {
	runner, st, session := newRunnerFixture(t, &engine.ScriptedEngine{Events: happyTrace()})
	ctx := context.Background()

	require.NoError(t, st.SaveMessage(ctx, &store.Message{
		ID: uuid.NewString(), SessionID: session.ID,
		Kind: store.KindUser, Body: "What is grace?", CreatedAt: time.Now(),
	}))

	w := &recordingWriter{}
	runner.Run(ctx, w, Request{Session: session, Message: "What is grace?", Continuation: true})

	messages, err := st.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{store.KindUser, store.KindAssistant, store.KindReviewer}, kinds(messages),
		"continuation adds no second user message")
}

func TestRun_CitationsFlow(t *testing.T) {
	events := []engine.TraceEvent{
		engine.StepStart{PendingTools: []engine.ToolCall{{
			Name:      engine.GotQuestionsToolName,
			Arguments: map[string]any{"query": "grace"},
		}}},
		engine.ToolStart{Name: engine.GotQuestionsToolName},
		engine.ToolEnd{
			Name:   engine.GotQuestionsToolName,
			Output: `{"results":[{"title":"On Grace","url":"https://example.org/grace"}]}`,
		},
		engine.StepEnd{},
		engine.GenerationStart{Channel: engine.ChannelPrimary},
		engine.GenerationToken{Channel: engine.ChannelPrimary, Text: "answer"},
	}
	runner, st, session := newRunnerFixture(t, &engine.ScriptedEngine{Events: events})
	w := &recordingWriter{}

	runner.Run(context.Background(), w, Request{Session: session, Message: "q"})

	assert.Equal(t, 1, countType(w.frames, TypeGotQuestions))
	assert.Equal(t, 1, countType(w.frames, TypeDone))

	messages, err := st.ListMessages(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Contains(t, kinds(messages), store.KindCitations)
}

func TestRun_CitationToolErrorStillReachesDone(t *testing.T) {
	events := []engine.TraceEvent{
		engine.ToolEnd{Name: engine.GotQuestionsToolName, Output: `{"error":"timeout"}`},
		engine.GenerationStart{Channel: engine.ChannelPrimary},
		engine.GenerationToken{Channel: engine.ChannelPrimary, Text: "answer"},
	}
	runner, st, session := newRunnerFixture(t, &engine.ScriptedEngine{Events: events})
	w := &recordingWriter{}

	runner.Run(context.Background(), w, Request{Session: session, Message: "q"})

	assert.Zero(t, countType(w.frames, TypeGotQuestions))
	assert.Equal(t, 1, countType(w.frames, TypeDone))

	messages, err := st.ListMessages(context.Background(), session.ID)
	require.NoError(t, err)
	assert.NotContains(t, kinds(messages), store.KindCitations)
}

func TestRun_GenerationErrorStillPersistsPartialState(t *testing.T) {
	events := []engine.TraceEvent{
		engine.GenerationStart{Channel: engine.ChannelPrimary},
		engine.GenerationToken{Channel: engine.ChannelPrimary, Text: "partial answer"},
		engine.TraceError{Err: errors.New("model backend gone")},
	}
	runner, st, session := newRunnerFixture(t, &engine.ScriptedEngine{Events: events})
	w := &recordingWriter{}

	runner.Run(context.Background(), w, Request{Session: session, Message: "q"})

	require.Equal(t, 1, countType(w.frames, TypeError))
	var errFrame Frame
	for _, f := range w.frames {
		if f.Type == TypeError {
			errFrame = f
		}
	}
	assert.Equal(t, StageGeneration, errFrame.Stage)
	assert.Equal(t, 1, countType(w.frames, TypeDone), "done still emitted after generation failure")

	messages, err := st.ListMessages(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{store.KindUser, store.KindAssistant}, kinds(messages),
		"partial tokens persist despite the failure")
}

func TestRun_EngineStartFailure(t *testing.T) {
	runner, _, session := newRunnerFixture(t, &engine.ScriptedEngine{RunErr: errors.New("no api key")})
	w := &recordingWriter{}

	runner.Run(context.Background(), w, Request{Session: session, Message: "q"})

	assert.Equal(t, 1, countType(w.frames, TypeError))
	assert.Equal(t, 1, countType(w.frames, TypeDone))
}

func TestRun_PersistFailureSurfaced(t *testing.T) {
	runner, st, session := newRunnerFixture(t, &engine.ScriptedEngine{Events: happyTrace()})
	runner.Coordinator = NewCoordinator(&commitFailStore{Store: st}, nil, nil)
	w := &recordingWriter{}

	runner.Run(context.Background(), w, Request{Session: session, Message: "q"})

	found := false
	for _, f := range w.frames {
		if f.Type == TypeError && f.Stage == StagePersist {
			found = true
		}
	}
	assert.True(t, found, "commit failure surfaces as persist_messages")
	assert.Equal(t, 1, countType(w.frames, TypeDone))
}

func TestRun_BackgroundMemoryUpdateFires(t *testing.T) {
	runner, _, session := newRunnerFixture(t, &engine.ScriptedEngine{Events: happyTrace()})
	updater := newNotifyingUpdater()
	runner.Updater = updater
	w := &recordingWriter{}

	runner.Run(context.Background(), w, Request{Session: session, Message: "What is grace?"})

	transcript := updater.wait(t)
	assert.Contains(t, transcript, "What is grace?")
	assert.Contains(t, transcript, "By grace alone.")
}

func TestRun_MemoryContextFeedsEngine(t *testing.T) {
	capture := &engine.ScriptedEngine{Events: happyTrace()}
	runner, _, session := newRunnerFixture(t, capture)
	runner.Memory = staticContext{text: "user cares about covenant theology"}
	w := &recordingWriter{}

	runner.Run(context.Background(), w, Request{Session: session, Message: "q"})

	instructions := capture.LastInstructions()
	require.GreaterOrEqual(t, len(instructions), 2)
	assert.Equal(t, "user cares about covenant theology", instructions[1].Content)
}
