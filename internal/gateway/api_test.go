// ABOUTME: HTTP-level tests of the chat and session endpoints
// ABOUTME: Session creation, streamed turns, authorization and status codes

package gateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jegama/calvinist-parrot-sub000/internal/auth"
	"github.com/Jegama/calvinist-parrot-sub000/internal/config"
	"github.com/Jegama/calvinist-parrot-sub000/internal/engine"
	"github.com/Jegama/calvinist-parrot-sub000/internal/store"
	"github.com/Jegama/calvinist-parrot-sub000/internal/turn"
)

type fixedTitler struct{}

func (fixedTitler) Title(context.Context, string) (string, error) { return "Test Title", nil }

func newTestGateway(t *testing.T, eng engine.Engine) (*Gateway, store.Store) {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := &config.Config{}
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Auth.AnonCookieName = "parrot_anon_id"

	runner := &turn.Runner{
		Store:        st,
		Engine:       eng,
		Coordinator:  turn.NewCoordinator(st, fixedTitler{}, nil),
		SystemPrompt: "You are a helpful assistant.",
	}
	resolver := &auth.Resolver{CookieName: cfg.Auth.AnonCookieName}

	return New(cfg, st, runner, resolver, nil), st
}

func scriptedAnswer(text string) *engine.ScriptedEngine {
	return &engine.ScriptedEngine{Events: []engine.TraceEvent{
		engine.GenerationStart{Channel: engine.ChannelPrimary},
		engine.GenerationToken{Channel: engine.ChannelPrimary, Text: text},
	}}
}

func postChat(t *testing.T, g *Gateway, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)
	return rec
}

func createSession(t *testing.T, g *Gateway, ownerID, question string) string {
	t.Helper()
	rec := postChat(t, g, ChatRequest{OwnerID: ownerID, InitialQuestion: question})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CreateSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.SessionID)
	return resp.SessionID
}

func frameTypes(t *testing.T, body string) []string {
	t.Helper()
	var types []string
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		if scanner.Text() == "" {
			continue
		}
		var frame map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &frame), "line %q", scanner.Text())
		types = append(types, frame["type"].(string))
	}
	return types
}

func TestCreateSessionAndRetrieve(t *testing.T) {
	g, _ := newTestGateway(t, scriptedAnswer("answer"))

	sessionID := createSession(t, g, "u1", "What is the Trinity?")

	req := httptest.NewRequest(http.MethodGet, "/api/sessions?sessionId="+sessionID+"&requesterIdentity=u1", nil)
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "u1", resp.Session.OwnerID)
	assert.Equal(t, store.PlaceholderTitle, resp.Session.Title)
	require.Len(t, resp.Messages, 1, "exactly one user message after creation")
	assert.Equal(t, store.KindUser, resp.Messages[0].Kind)
	assert.Equal(t, "What is the Trinity?", resp.Messages[0].Body)
}

func TestCreateSessionWithInitialAnswer(t *testing.T) {
	g, st := newTestGateway(t, scriptedAnswer("answer"))

	rec := postChat(t, g, ChatRequest{
		OwnerID:         "u1",
		InitialQuestion: "What is grace?",
		InitialAnswer:   "Unmerited favor.",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CreateSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	messages, err := st.ListMessages(context.Background(), resp.SessionID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, store.KindUser, messages[0].Kind)
	assert.Equal(t, store.KindAssistant, messages[1].Kind)
}

func TestChatTurnStreamsFrames(t *testing.T) {
	g, st := newTestGateway(t, scriptedAnswer("By grace alone."))
	sessionID := createSession(t, g, "u1", "What is grace?")

	payload, _ := json.Marshal(ChatRequest{SessionID: sessionID, Message: "What is grace?", IsContinuation: true})
	req := httptest.NewRequest(http.MethodPost, "/api/chat?requesterIdentity=u1", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))

	types := frameTypes(t, rec.Body.String())
	require.NotEmpty(t, types)
	assert.Equal(t, "info", types[0])
	assert.Equal(t, "done", types[len(types)-1])
	assert.Contains(t, types, "parrot")

	// Continuation: the user message is not duplicated
	messages, err := st.ListMessages(context.Background(), sessionID)
	require.NoError(t, err)
	userCount := 0
	for _, m := range messages {
		if m.Kind == store.KindUser {
			userCount++
		}
	}
	assert.Equal(t, 1, userCount)
	assert.Equal(t, store.KindAssistant, messages[len(messages)-1].Kind)
}

func TestChatTurnWrongOwner(t *testing.T) {
	g, _ := newTestGateway(t, scriptedAnswer("x"))
	sessionID := createSession(t, g, "u1", "q")

	payload, _ := json.Marshal(ChatRequest{SessionID: sessionID, Message: "more"})
	req := httptest.NewRequest(http.MethodPost, "/api/chat?requesterIdentity=u2", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"type"`, "no frames before rejection")
}

func TestChatTurnUnknownSession(t *testing.T) {
	g, _ := newTestGateway(t, scriptedAnswer("x"))

	payload, _ := json.Marshal(ChatRequest{SessionID: uuid.NewString(), Message: "q"})
	req := httptest.NewRequest(http.MethodPost, "/api/chat?requesterIdentity=u1", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatMalformedBody(t *testing.T) {
	g, _ := newTestGateway(t, scriptedAnswer("x"))

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSessionStatusCodes(t *testing.T) {
	g, _ := newTestGateway(t, scriptedAnswer("x"))
	sessionID := createSession(t, g, "u1", "q")

	cases := map[string]struct {
		url  string
		want int
	}{
		"missing session id": {"/api/sessions", http.StatusBadRequest},
		"missing identity":   {"/api/sessions?sessionId=" + sessionID, http.StatusUnauthorized},
		"wrong owner":        {"/api/sessions?sessionId=" + sessionID + "&requesterIdentity=u2", http.StatusForbidden},
		"not found":          {fmt.Sprintf("/api/sessions?sessionId=%s&requesterIdentity=u1", uuid.NewString()), http.StatusNotFound},
		"success":            {"/api/sessions?sessionId=" + sessionID + "&requesterIdentity=u1", http.StatusOK},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.url, nil)
			rec := httptest.NewRecorder()
			g.Handler().ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestGetSessionCookieIdentity(t *testing.T) {
	g, _ := newTestGateway(t, scriptedAnswer("x"))
	sessionID := createSession(t, g, "anon-abc", "q")

	req := httptest.NewRequest(http.MethodGet, "/api/sessions?sessionId="+sessionID, nil)
	req.AddCookie(&http.Cookie{Name: "parrot_anon_id", Value: "anon-abc"})
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionViewRendersTranscript(t *testing.T) {
	g, st := newTestGateway(t, scriptedAnswer("x"))
	sessionID := createSession(t, g, "u1", "What is **grace**?")

	require.NoError(t, st.SaveMessage(context.Background(), &store.Message{
		ID: uuid.NewString(), SessionID: sessionID,
		Kind: store.KindAssistant, Body: "Unmerited favor.", CreatedAt: time.Now(),
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/view?sessionId="+sessionID+"&requesterIdentity=u1", nil)
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, body, "<strong>grace</strong>", "markdown is rendered")
	assert.Contains(t, body, "Parrot")
	assert.Contains(t, body, "Unmerited favor.")
}

func TestHealthz(t *testing.T) {
	g, _ := newTestGateway(t, scriptedAnswer("x"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}
