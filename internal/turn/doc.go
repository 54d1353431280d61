// Package turn orchestrates one conversational turn end to end.
//
// A turn flows through five pieces, all in this package:
//
//   - Frame: the closed set of client-facing protocol records, one JSON
//     object per line on the wire (info, progress, parrot, calvin,
//     gotQuestions, error, done).
//   - FrameWriter / HTTPFrameWriter: the transport. Frames reach the
//     client in emission order, flushed individually.
//   - Translator: the state machine mapping the engine's internal trace
//     onto frames. Planning and drafting announce at most once; tool
//     names announce at most once; citations tool output is parsed and,
//     on success, both streamed and queued for persistence. Unrecognized
//     trace kinds are swallowed.
//   - Coordinator: accumulates the turn's pending writes (user message,
//     assistant reply, reviewer note, citations, title) and commits them
//     as a single atomic store batch.
//   - Runner: the outer pipeline. It guarantees exactly one done frame
//     per turn regardless of failures, surfaces generation and
//     persistence errors as error frames rather than aborting the
//     stream, and fires the detached long-term memory update after the
//     commit.
package turn
