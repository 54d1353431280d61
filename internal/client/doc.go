// Package client consumes the gateway's streaming API.
//
// FrameReader implements the consumer side of the newline-delimited frame
// protocol: raw bytes are read incrementally, split on newlines with a
// carry-over buffer for the trailing partial line, blank lines are
// ignored, and a line that fails to parse is logged and skipped rather
// than aborting the stream.
//
// Client layers session creation, streamed turns and history retrieval on
// top of that. The parrot-cli command is its main consumer.
package client
