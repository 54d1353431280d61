// ABOUTME: Store interface and data types for conversation persistence
// ABOUTME: Defines Session, Message and the atomic TurnWrite batch commit

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateSession is returned when trying to create a session that already exists
var ErrDuplicateSession = errors.New("session already exists")

// PlaceholderTitle is the title every new session starts with.
// It is rewritten at most once, the first time a turn completes while the
// stored title still equals this value.
const PlaceholderTitle = "New Conversation"

// Session represents one conversation owned by a single user
type Session struct {
	ID        string
	OwnerID   string
	Title     string
	CreatedAt time.Time
}

// MessageKind constants for message kinds
const (
	KindUser      = "user"      // Turn-initiating user input
	KindAssistant = "assistant" // Primary generated answer
	KindReviewer  = "reviewer"  // Secondary reviewer commentary
	KindCitations = "citations" // Formatted reference list from a tool
)

// Message is a single append-only entry in a session's history.
// Messages are never mutated after creation; render order is creation order.
type Message struct {
	ID        string
	SessionID string
	Kind      string
	Body      string
	CreatedAt time.Time
}

// TurnWrite is the atomic batch committed at the end of one turn.
// Messages are inserted in slice order. Title, when non-empty, is applied
// only if the stored title still equals PlaceholderTitle, so a derived
// title can never be overwritten by a later turn.
type TurnWrite struct {
	SessionID string
	Messages  []*Message
	Title     string
}

// Store defines the interface for session and message persistence
type Store interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)

	SaveMessage(ctx context.Context, msg *Message) error
	ListMessages(ctx context.Context, sessionID string) ([]*Message, error)

	// CommitTurn applies the whole batch in a single transaction.
	// Either every message insert and the conditional title update land,
	// or none of them do.
	CommitTurn(ctx context.Context, write *TurnWrite) error

	Close() error
}
