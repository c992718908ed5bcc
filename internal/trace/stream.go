package trace

import (
	"bufio"
	"io"
	"os"
	"sync"
)

// StreamTracer writes every event to a buffered writer. Events reach the
// underlying writer on Flush, on Close, or when the buffer fills.
type StreamTracer struct {
	mu     sync.Mutex
	dst    io.Writer
	buf    *bufio.Writer
	level  Level
	format Format
}

func NewStreamTracer(w io.Writer, level Level, format Format) *StreamTracer {
	return &StreamTracer{dst: w, buf: bufio.NewWriter(w), level: level, format: format}
}

func (t *StreamTracer) Emit(ev *Event) {
	if !t.level.ShouldEmit(ev.Scope) && ev.Kind != KindHeartbeat {
		return
	}
	data := FormatEvent(ev, t.format)

	t.mu.Lock()
	defer t.mu.Unlock()
	// a failing trace writer never fails a run
	_, _ = t.buf.Write(data)
	if ev.Kind == KindHeartbeat {
		_ = t.buf.Flush()
	}
}

func (t *StreamTracer) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.Flush()
}

// Close flushes and closes the writer unless it is stdout or stderr.
func (t *StreamTracer) Close() error {
	if err := t.Flush(); err != nil {
		return err
	}
	return closeOutput(t.dst)
}

func (t *StreamTracer) Level() Level { return t.level }

func (t *StreamTracer) Enabled() bool { return t.level > LevelOff }

func closeOutput(w io.Writer) error {
	if w == nil || w == os.Stderr || w == os.Stdout {
		return nil
	}
	if closer, ok := w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
