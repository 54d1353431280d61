// ABOUTME: HTTP API handlers for the streaming chat and session retrieval
// ABOUTME: POST /api/chat streams newline-delimited frames; GET /api/sessions reads history

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Jegama/calvinist-parrot-sub000/internal/metrics"
	"github.com/Jegama/calvinist-parrot-sub000/internal/store"
	"github.com/Jegama/calvinist-parrot-sub000/internal/turn"
)

// maxRequestBody bounds chat request bodies
const maxRequestBody = 64 * 1024

// ChatRequest is the JSON request body for POST /api/chat. Exactly one of
// two shapes is expected: a turn request (sessionId + message) or a
// session-creation request (ownerId + initialQuestion).
type ChatRequest struct {
	SessionID      string `json:"sessionId,omitempty"`
	Message        string `json:"message,omitempty"`
	IsContinuation bool   `json:"isContinuation,omitempty"`

	OwnerID         string `json:"ownerId,omitempty"`
	InitialQuestion string `json:"initialQuestion,omitempty"`
	InitialAnswer   string `json:"initialAnswer,omitempty"`
}

// CreateSessionResponse is the JSON response for the creation variant
type CreateSessionResponse struct {
	SessionID string `json:"sessionId"`
}

// SessionResponse is the JSON response for GET /api/sessions
type SessionResponse struct {
	Session  SessionInfo       `json:"session"`
	Messages []MessageResponse `json:"messages"`
}

// SessionInfo is the session header in retrieval responses
type SessionInfo struct {
	ID        string `json:"id"`
	OwnerID   string `json:"ownerId"`
	Title     string `json:"title"`
	CreatedAt string `json:"createdAt"`
}

// MessageResponse is one history entry in retrieval responses
type MessageResponse struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Body      string `json:"body"`
	CreatedAt string `json:"createdAt"`
}

// handleChat handles POST /api/chat. Setup failures are rejected with a
// plain status before any frame is written; once streaming starts, all
// failures travel inside the stream as error frames.
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := parseChatRequest(r.Body)
	if err != nil {
		g.logger.Debug("rejecting malformed chat request", "error", err)
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.InitialQuestion != "" {
		g.handleCreateSession(w, r, req)
		return
	}

	if req.SessionID == "" || req.Message == "" {
		http.Error(w, "sessionId and message are required", http.StatusBadRequest)
		return
	}

	identity := g.resolver.Resolve(w, r)
	if identity.OwnerID == "" {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	session, err := g.store.GetSession(r.Context(), req.SessionID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		g.logger.Error("failed to load session", "session_id", req.SessionID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if session.OwnerID != identity.OwnerID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	writer, ok := turn.NewHTTPFrameWriter(w, g.logger)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)

	started := time.Now()
	g.runner.Run(r.Context(), writer, turn.Request{
		Session:      session,
		Message:      req.Message,
		Continuation: req.IsContinuation,
	})
	metrics.RecordTurn("completed", time.Since(started))
}

// handleCreateSession creates a new session seeded with the initial
// question and, when supplied, an initial answer. No streaming: the
// caller gets the session id and drives the first turn separately.
func (g *Gateway) handleCreateSession(w http.ResponseWriter, r *http.Request, req *ChatRequest) {
	ownerID := req.OwnerID
	if ownerID == "" {
		identity := g.resolver.Resolve(w, r)
		ownerID = identity.OwnerID
	}
	if ownerID == "" {
		http.Error(w, "ownerId is required", http.StatusUnauthorized)
		return
	}

	ctx := r.Context()
	session := &store.Session{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Title:     store.PlaceholderTitle,
		CreatedAt: time.Now(),
	}
	if err := g.store.CreateSession(ctx, session); err != nil {
		g.logger.Error("failed to create session", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	if err := g.store.SaveMessage(ctx, &store.Message{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Kind:      store.KindUser,
		Body:      req.InitialQuestion,
		CreatedAt: now,
	}); err != nil {
		g.logger.Error("failed to save initial question", "session_id", session.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if req.InitialAnswer != "" {
		if err := g.store.SaveMessage(ctx, &store.Message{
			ID:        uuid.NewString(),
			SessionID: session.ID,
			Kind:      store.KindAssistant,
			Body:      req.InitialAnswer,
			CreatedAt: now.Add(time.Microsecond),
		}); err != nil {
			g.logger.Error("failed to save initial answer", "session_id", session.ID, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	g.writeJSON(w, http.StatusOK, CreateSessionResponse{SessionID: session.ID})
}

// handleGetSession handles GET /api/sessions?sessionId=...
func (g *Gateway) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, messages, status := g.loadAuthorizedSession(r)
	if status != http.StatusOK {
		http.Error(w, http.StatusText(status), status)
		return
	}

	resp := SessionResponse{
		Session: SessionInfo{
			ID:        session.ID,
			OwnerID:   session.OwnerID,
			Title:     session.Title,
			CreatedAt: session.CreatedAt.UTC().Format(time.RFC3339),
		},
		Messages: make([]MessageResponse, 0, len(messages)),
	}
	for _, msg := range messages {
		resp.Messages = append(resp.Messages, MessageResponse{
			ID:        msg.ID,
			Kind:      msg.Kind,
			Body:      msg.Body,
			CreatedAt: msg.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	g.writeJSON(w, http.StatusOK, resp)
}

// loadAuthorizedSession resolves identity and loads the session plus its
// messages, returning the HTTP status the caller should send on failure.
// Identity resolution is read-only here: retrieval never mints cookies.
func (g *Gateway) loadAuthorizedSession(r *http.Request) (*store.Session, []*store.Message, int) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		return nil, nil, http.StatusBadRequest
	}

	identity := g.resolver.Resolve(nil, r)
	if identity.OwnerID == "" {
		return nil, nil, http.StatusUnauthorized
	}

	session, err := g.store.GetSession(r.Context(), sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, http.StatusNotFound
	}
	if err != nil {
		g.logger.Error("failed to load session", "session_id", sessionID, "error", err)
		return nil, nil, http.StatusInternalServerError
	}
	if session.OwnerID != identity.OwnerID {
		return nil, nil, http.StatusForbidden
	}

	messages, err := g.store.ListMessages(r.Context(), sessionID)
	if err != nil {
		g.logger.Error("failed to load messages", "session_id", sessionID, "error", err)
		return nil, nil, http.StatusInternalServerError
	}
	return session, messages, http.StatusOK
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

func parseChatRequest(body io.Reader) (*ChatRequest, error) {
	var req ChatRequest
	decoder := json.NewDecoder(io.LimitReader(body, maxRequestBody))
	if err := decoder.Decode(&req); err != nil {
		return nil, fmt.Errorf("decoding request: %w", err)
	}
	return &req, nil
}
