// ABOUTME: Frame transport over a live HTTP response body
// ABOUTME: Newline-delimited JSON, flushed per frame, silent after client loss

package turn

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Jegama/calvinist-parrot-sub000/internal/metrics"
)

// FrameWriter delivers frames to the client in emission order
type FrameWriter interface {
	Write(frame Frame)
}

// HTTPFrameWriter streams frames over an http.ResponseWriter, one JSON
// object per line, flushing after each so the client sees progress live.
// Once a write fails the client is gone; subsequent frames are dropped
// rather than propagated as errors, since there is nobody left to tell.
type HTTPFrameWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	logger  *slog.Logger
	failed  bool
}

// NewHTTPFrameWriter wraps a response writer. Returns false when the
// underlying writer cannot flush, which rules out streaming entirely.
func NewHTTPFrameWriter(w http.ResponseWriter, logger *slog.Logger) (*HTTPFrameWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPFrameWriter{
		w:       w,
		flusher: flusher,
		logger:  logger.With("component", "stream"),
	}, true
}

// Write serializes and flushes one frame
func (hw *HTTPFrameWriter) Write(frame Frame) {
	if hw.failed {
		return
	}

	data, err := json.Marshal(frame)
	if err != nil {
		hw.logger.Error("failed to marshal frame", "type", frame.Type, "error", err)
		return
	}
	data = append(data, '\n')

	if _, err := hw.w.Write(data); err != nil {
		hw.logger.Debug("client disconnected mid-stream", "error", err)
		hw.failed = true
		return
	}
	hw.flusher.Flush()
	metrics.RecordFrame(frame.Type)
}
