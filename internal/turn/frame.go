// ABOUTME: Client-facing progress frame model for the streaming turn protocol
// ABOUTME: One JSON object per line, discriminated by the type field

package turn

import (
	"github.com/Jegama/calvinist-parrot-sub000/internal/engine"
)

// Frame types. The set is closed: clients rely on it being stable even as
// the internal trace surface grows.
const (
	TypeInfo         = "info"
	TypeDone         = "done"
	TypeProgress     = "progress"
	TypeParrot       = "parrot"
	TypeCalvin       = "calvin"
	TypeGotQuestions = "gotQuestions"
	TypeError        = "error"
)

// Error stages surfaced to the client
const (
	StageGeneration   = "generation"
	StagePersist      = "persist_messages"
	StageConversation = "conversation_metadata"
)

// Frame is one streamed protocol record. Frames are transient: they exist
// only for the duration of one response and are never persisted.
type Frame struct {
	Type    string `json:"type"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message,omitempty"`
}

// InfoFrame opens a stream
func InfoFrame() Frame {
	return Frame{Type: TypeInfo}
}

// DoneFrame terminates a stream. Emitted exactly once per turn.
func DoneFrame() Frame {
	return Frame{Type: TypeDone}
}

// ProgressFrame describes a stage transition in human terms
func ProgressFrame(title, content string) Frame {
	return Frame{Type: TypeProgress, Title: title, Content: content}
}

// TokenFrame carries one generation token chunk on its channel
func TokenFrame(channel engine.Channel, text string) Frame {
	return Frame{Type: string(channel), Content: text}
}

// CitationsFrame carries a markdown reference list
func CitationsFrame(content string) Frame {
	return Frame{Type: TypeGotQuestions, Content: content}
}

// ErrorFrame surfaces a non-fatal failure without aborting the stream
func ErrorFrame(stage, message string) Frame {
	return Frame{Type: TypeError, Stage: stage, Message: message}
}
