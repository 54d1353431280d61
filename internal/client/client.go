// ABOUTME: HTTP client for the parrot gateway API
// ABOUTME: Session creation, streamed turns with a per-frame callback, retrieval

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/Jegama/calvinist-parrot-sub000/internal/turn"
)

// Client talks to a running parrot gateway
type Client struct {
	baseURL    string
	identity   string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a client for the gateway at baseURL acting as identity
func New(baseURL, identity string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:  baseURL,
		identity: identity,
		// No overall timeout: turn streams are long-lived by design
		httpClient: &http.Client{},
		logger:     logger.With("component", "client"),
	}
}

// Session is the session header returned by the retrieval endpoint
type Session struct {
	ID        string `json:"id"`
	OwnerID   string `json:"ownerId"`
	Title     string `json:"title"`
	CreatedAt string `json:"createdAt"`
}

// Message is one history entry returned by the retrieval endpoint
type Message struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Body      string `json:"body"`
	CreatedAt string `json:"createdAt"`
}

// SessionHistory is the full retrieval response
type SessionHistory struct {
	Session  Session   `json:"session"`
	Messages []Message `json:"messages"`
}

// CreateSession creates a new session seeded with the initial question
// and returns its id
func (c *Client) CreateSession(ctx context.Context, initialQuestion string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"ownerId":         c.identity,
		"initialQuestion": initialQuestion,
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("creating session: unexpected status %d", resp.StatusCode)
	}

	var created struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return created.SessionID, nil
}

// Chat runs one streamed turn, invoking handle for every frame in arrival
// order. It returns once the stream is exhausted or ctx is cancelled.
func (c *Client) Chat(ctx context.Context, sessionID, message string, continuation bool, handle func(turn.Frame)) error {
	payload, err := json.Marshal(map[string]any{
		"sessionId":      sessionID,
		"message":        message,
		"isContinuation": continuation,
	})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/api/chat?requesterIdentity=%s", c.baseURL, url.QueryEscape(c.identity))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("starting turn: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("starting turn: unexpected status %d", resp.StatusCode)
	}

	reader := NewFrameReader(resp.Body, c.logger)
	started := time.Now()
	for {
		frame, err := reader.Next()
		if err == io.EOF {
			c.logger.Debug("turn stream finished", "elapsed", time.Since(started))
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading stream: %w", err)
		}
		handle(frame)
	}
}

// GetSession fetches the session header and full message history
func (c *Client) GetSession(ctx context.Context, sessionID string) (*SessionHistory, error) {
	endpoint := fmt.Sprintf("%s/api/sessions?sessionId=%s&requesterIdentity=%s",
		c.baseURL, url.QueryEscape(sessionID), url.QueryEscape(c.identity))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching session: unexpected status %d", resp.StatusCode)
	}

	var history SessionHistory
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &history, nil
}
