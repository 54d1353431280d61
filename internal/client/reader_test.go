// ABOUTME: Tests for incremental frame parsing under adversarial chunking

package client

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jegama/calvinist-parrot-sub000/internal/turn"
)

// chunkedReader serves its chunks one per Read call
type chunkedReader struct {
	chunks []string
}

func (cr *chunkedReader) Read(p []byte) (int, error) {
	if len(cr.chunks) == 0 {
		return 0, io.EOF
	}
	chunk := cr.chunks[0]
	cr.chunks = cr.chunks[1:]
	n := copy(p, chunk)
	return n, nil
}

func readAll(t *testing.T, fr *FrameReader) []turn.Frame {
	t.Helper()
	var frames []turn.Frame
	for {
		frame, err := fr.Next()
		if err == io.EOF {
			return frames
		}
		require.NoError(t, err)
		frames = append(frames, frame)
	}
}

func TestFrameReader_SplitAcrossChunks(t *testing.T) {
	// A frame boundary never aligns with a chunk boundary here
	reader := &chunkedReader{chunks: []string{
		`{"type":"in`,
		`fo"}` + "\n" + `{"type":"parrot","conte`,
		`nt":"By grace"}` + "\n",
		`{"type":"done"}` + "\n",
	}}
	fr := NewFrameReader(reader, nil)

	frames := readAll(t, fr)
	require.Len(t, frames, 3)
	assert.Equal(t, turn.TypeInfo, frames[0].Type)
	assert.Equal(t, "By grace", frames[1].Content)
	assert.Equal(t, turn.TypeDone, frames[2].Type)
}

func TestFrameReader_SkipsBlankLines(t *testing.T) {
	reader := &chunkedReader{chunks: []string{
		`{"type":"info"}` + "\n\n\n" + `{"type":"done"}` + "\n",
	}}
	fr := NewFrameReader(reader, nil)

	frames := readAll(t, fr)
	require.Len(t, frames, 2)
}

func TestFrameReader_BadLineSkippedNotFatal(t *testing.T) {
	reader := &chunkedReader{chunks: []string{
		`{"type":"info"}` + "\n" + `garbage that is not json` + "\n" + `{"type":"done"}` + "\n",
	}}
	fr := NewFrameReader(reader, nil)

	frames := readAll(t, fr)
	require.Len(t, frames, 2, "corrupt line is skipped, stream continues")
	assert.Equal(t, turn.TypeInfo, frames[0].Type)
	assert.Equal(t, turn.TypeDone, frames[1].Type)
}

func TestFrameReader_TruncatedFinalLineDropped(t *testing.T) {
	reader := &chunkedReader{chunks: []string{
		`{"type":"info"}` + "\n" + `{"type":"done`,
	}}
	fr := NewFrameReader(reader, nil)

	frames := readAll(t, fr)
	require.Len(t, frames, 1, "a partial trailing line is not a frame")
}

func TestFrameReader_OneByteChunks(t *testing.T) {
	raw := `{"type":"progress","title":"Mapping out a plan","content":"x"}` + "\n"
	chunks := make([]string, 0, len(raw))
	for _, b := range []byte(raw) {
		chunks = append(chunks, string(b))
	}
	fr := NewFrameReader(&chunkedReader{chunks: chunks}, nil)

	frames := readAll(t, fr)
	require.Len(t, frames, 1)
	assert.Equal(t, "Mapping out a plan", frames[0].Title)
}
