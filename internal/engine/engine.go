// ABOUTME: Engine and Titler interfaces plus the instruction list they consume
// ABOUTME: The gateway treats execution as an opaque ordered stream of trace events

package engine

import "context"

// Role identifies who an instruction is attributed to
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Instruction is one entry in the ordered list fed to an engine
type Instruction struct {
	Role    Role
	Content string
}

// Engine drives one agentic execution. Run returns an ordered channel of
// trace events; the channel is closed when the execution is exhausted.
// A failing execution delivers a final TraceError before closing. Frame
// order downstream equals event order here, so implementations must not
// reorder events.
type Engine interface {
	Run(ctx context.Context, instructions []Instruction) (<-chan TraceEvent, error)
}

// Titler derives a short conversation title from a turn transcript.
// It is an external collaborator; failures fall back to the placeholder.
type Titler interface {
	Title(ctx context.Context, transcript string) (string, error)
}
