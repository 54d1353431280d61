// ABOUTME: Closed tagged union of execution trace events emitted by an engine
// ABOUTME: The translator pattern-matches these; Unknown catches future event kinds

package engine

// Channel identifies which logical speaker is generating tokens
type Channel string

const (
	// ChannelPrimary is the main answer speaker
	ChannelPrimary Channel = "parrot"
	// ChannelReviewer is the secondary reviewer speaker
	ChannelReviewer Channel = "calvin"
)

// ToolCall describes a pending or running tool invocation
type ToolCall struct {
	Name      string
	Arguments map[string]any
}

// StringArg returns a string argument by name, or "" if absent or not a string
func (tc ToolCall) StringArg(name string) string {
	v, ok := tc.Arguments[name].(string)
	if !ok {
		return ""
	}
	return v
}

// TraceEvent is one event in an engine's execution trace. The set of
// variants is closed: consumers switch over the concrete types below and
// must treat Unknown as "swallow, do not forward".
type TraceEvent interface {
	isTraceEvent()
}

// GenerationStart announces that a speaker began producing tokens
type GenerationStart struct {
	Channel Channel
}

// GenerationToken carries one incremental token chunk
type GenerationToken struct {
	Channel Channel
	Text    string
}

// StepStart opens an agent step; PendingTools lists tool calls the step
// is about to make, when the engine knows them up front.
type StepStart struct {
	PendingTools []ToolCall
}

// ToolStart announces a tool beginning execution
type ToolStart struct {
	Name string
}

// ToolEnd carries a completed tool's raw output
type ToolEnd struct {
	Name   string
	Output string
}

// StepEnd closes an agent step; any tools attributed to it are finished
type StepEnd struct{}

// TraceError reports a failure while producing the trace. It is always the
// final event an engine emits before closing the channel.
type TraceError struct {
	Err error
}

// Unknown represents an event kind this version does not recognize
type Unknown struct {
	Kind string
}

func (GenerationStart) isTraceEvent() {}
func (GenerationToken) isTraceEvent() {}
func (StepStart) isTraceEvent()       {}
func (ToolStart) isTraceEvent()       {}
func (ToolEnd) isTraceEvent()         {}
func (StepEnd) isTraceEvent()         {}
func (TraceError) isTraceEvent()      {}
func (Unknown) isTraceEvent()         {}
