// ABOUTME: Incremental reader for the newline-delimited frame protocol
// ABOUTME: Carry-over buffering for partial lines, per-line error tolerance

package client

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/Jegama/calvinist-parrot-sub000/internal/turn"
)

// readChunkSize is how much raw data one Read pulls off the wire
const readChunkSize = 4096

// FrameReader incrementally decodes frames from a live response body.
// Bytes arrive in arbitrary chunks; the reader splits on newlines and
// holds the trailing (possibly incomplete) line in a carry-over buffer
// until its newline arrives. A line that fails to parse is logged and
// skipped: one corrupt line must not kill the whole session.
type FrameReader struct {
	source io.Reader
	logger *slog.Logger

	carry   string
	pending []turn.Frame
	eof     bool
}

// NewFrameReader wraps a response body
func NewFrameReader(source io.Reader, logger *slog.Logger) *FrameReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &FrameReader{
		source: source,
		logger: logger.With("component", "client"),
	}
}

// Next returns the next frame. io.EOF signals a cleanly exhausted stream.
func (fr *FrameReader) Next() (turn.Frame, error) {
	for {
		if len(fr.pending) > 0 {
			frame := fr.pending[0]
			fr.pending = fr.pending[1:]
			return frame, nil
		}
		if fr.eof {
			return turn.Frame{}, io.EOF
		}
		if err := fr.fill(); err != nil {
			return turn.Frame{}, err
		}
	}
}

// fill reads one chunk and converts complete lines into pending frames
func (fr *FrameReader) fill() error {
	buf := make([]byte, readChunkSize)
	n, err := fr.source.Read(buf)
	if n > 0 {
		fr.consume(string(buf[:n]))
	}

	switch {
	case errors.Is(err, io.EOF):
		// A non-empty carry at EOF is a truncated final line
		if strings.TrimSpace(fr.carry) != "" {
			fr.logger.Warn("stream ended mid-line, dropping partial frame", "partial", fr.carry)
		}
		fr.carry = ""
		fr.eof = true
		return nil
	case err != nil:
		return err
	default:
		return nil
	}
}

// consume appends raw bytes to the carry-over buffer and parses every
// complete line out of it
func (fr *FrameReader) consume(data string) {
	fr.carry += data
	for {
		idx := strings.IndexByte(fr.carry, '\n')
		if idx < 0 {
			return
		}
		line := fr.carry[:idx]
		fr.carry = fr.carry[idx+1:]

		if strings.TrimSpace(line) == "" {
			continue
		}

		var frame turn.Frame
		if err := json.Unmarshal([]byte(line), &frame); err != nil {
			fr.logger.Warn("skipping unparsable frame line", "line", line, "error", err)
			continue
		}
		fr.pending = append(fr.pending, frame)
	}
}
