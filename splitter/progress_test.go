package splitter

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingProgressWriter struct {
	countCalls []struct {
		total int64
		desc  string
	}
}

func (r *recordingProgressWriter) NewCountProgress(total int64, description string) Progress {
	r.countCalls = append(r.countCalls, struct {
		total int64
		desc  string
	}{total, description})
	return &recordingProgress{}
}

func (r *recordingProgressWriter) NewBytesProgress(total int64, description string) Progress {
	return &recordingProgress{}
}

type recordingProgress struct {
	written int
	closed  bool
}

func (p *recordingProgress) Write(data []byte) (int, error) {
	p.written += len(data)
	return len(data), nil
}

func (p *recordingProgress) Add(num int) {}

func (p *recordingProgress) Close() error {
	p.closed = true
	return nil
}

func resetProgressWriter() {
	progressWriterMu.Lock()
	defer progressWriterMu.Unlock()
	progressWriter = &defaultProgressWriter{}
	quietMode = false
}

// TestRunSetsQuietModeFromVerboseFlag mirrors run.go's "SetQuietMode(!cfg.Verbose)"
// call: the --verbose flag (§6) should be the only thing that turns progress
// bars on, with quiet the default for planet-scale batch runs.
func TestRunSetsQuietModeFromVerboseFlag(t *testing.T) {
	defer resetProgressWriter()

	cfg := NewConfig()
	cfg.Verbose = false
	SetQuietMode(!cfg.Verbose)
	assert.True(t, IsQuietMode())
	_, quiet := getProgressWriter().(*quietProgressWriter)
	assert.True(t, quiet)

	cfg.Verbose = true
	SetQuietMode(!cfg.Verbose)
	assert.False(t, IsQuietMode())
	_, loud := getProgressWriter().(*defaultProgressWriter)
	assert.True(t, loud)
}

// TestProgressReaderTeesBytesRead covers OpenDecoder's progressReader helper
// (element.go), which is what lets pass 1/2 report progress without knowing
// the element count up front: every byte read from the input must also
// reach the Progress's io.Writer side.
func TestProgressReaderTeesBytesRead(t *testing.T) {
	src := strings.NewReader("0123456789")
	p := &recordingProgress{}

	tee := progressReader(src, p)
	data, err := io.ReadAll(tee)
	assert.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))
	assert.Equal(t, 10, p.written)
}

func TestProgressReaderNilProgressIsPassthrough(t *testing.T) {
	src := strings.NewReader("hello")
	r := progressReader(src, nil)
	data, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

// TestSetProgressWriterOverridesDefault exercises the custom-writer hook
// write.go's batch loop relies on (getProgressWriter().NewCountProgress),
// the same hook ingest.go/ingest2.go use for their byte-based bars.
func TestSetProgressWriterOverridesDefault(t *testing.T) {
	defer resetProgressWriter()

	rec := &recordingProgressWriter{}
	SetProgressWriter(rec)

	progress := getProgressWriter().NewCountProgress(42, "pass 3: writing tiles")
	assert.Len(t, rec.countCalls, 1)
	assert.Equal(t, int64(42), rec.countCalls[0].total)
	assert.Equal(t, "pass 3: writing tiles", rec.countCalls[0].desc)

	progress.Add(1)
	assert.NoError(t, progress.Close())
	assert.True(t, progress.(*recordingProgress).closed)
}

func TestSetProgressWriterNilFallsBackToQuiet(t *testing.T) {
	defer resetProgressWriter()

	SetProgressWriter(nil)
	_, ok := getProgressWriter().(*quietProgressWriter)
	assert.True(t, ok)
}

func TestQuietProgressIsANoOp(t *testing.T) {
	p := &quietProgress{}
	n, err := p.Write([]byte("ignored"))
	assert.NoError(t, err)
	assert.Equal(t, len("ignored"), n)
	p.Add(100)
	assert.NoError(t, p.Close())
}
