// Package engine defines the boundary to the agentic execution engine.
//
// The gateway never looks inside an execution: it feeds an ordered
// instruction list to an Engine and consumes a single ordered channel of
// trace events (generation start/tokens, step and tool lifecycle). The
// event set is a closed tagged union with an Unknown catch-all, so new
// upstream event kinds surface in code review rather than being silently
// mishandled.
//
// OpenAIEngine is the production implementation; ScriptedEngine replays
// canned traces for tests.
package engine
