package trace

import (
	"io"
	"sync"
)

// RingTracer is a flight recorder: it keeps only the most recent events and
// writes them out when closed, so a long run can be traced at debug level
// without flooding the output.
type RingTracer struct {
	mu     sync.Mutex
	events []Event
	next   int
	count  int
	total  uint64
	level  Level

	dump   io.Writer
	format Format
	closed bool
}

// NewRingTracer returns a ring holding capacity events (4096 when <= 0).
func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = 4096
	}
	return &RingTracer{events: make([]Event, capacity), level: level}
}

// DumpOnClose makes Close write the retained events to w.
func (t *RingTracer) DumpOnClose(w io.Writer, format Format) *RingTracer {
	t.mu.Lock()
	t.dump, t.format = w, format
	t.mu.Unlock()
	return t
}

func (t *RingTracer) Emit(ev *Event) {
	if !t.level.ShouldEmit(ev.Scope) && ev.Kind != KindHeartbeat {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events[t.next] = *ev
	t.next = (t.next + 1) % len(t.events)
	t.count = min(t.count+1, len(t.events))
	t.total++
}

// Snapshot returns the retained events, oldest first.
func (t *RingTracer) Snapshot() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Event, 0, t.count)
	start := (t.next - t.count + len(t.events)) % len(t.events)
	for i := range t.count {
		out = append(out, t.events[(start+i)%len(t.events)])
	}
	return out
}

// Dropped reports how many events were overwritten.
func (t *RingTracer) Dropped() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total - uint64(t.count)
}

// Dump writes the retained events to w.
func (t *RingTracer) Dump(w io.Writer, format Format) error {
	for _, ev := range t.Snapshot() {
		if _, err := w.Write(FormatEvent(&ev, format)); err != nil {
			return err
		}
	}
	return nil
}

func (t *RingTracer) Flush() error { return nil }

// Close writes the retained events to the DumpOnClose writer, once.
func (t *RingTracer) Close() error {
	t.mu.Lock()
	if t.closed || t.dump == nil {
		t.closed = true
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	w, format := t.dump, t.format
	t.mu.Unlock()

	if err := t.Dump(w, format); err != nil {
		return err
	}
	return closeOutput(w)
}

func (t *RingTracer) Level() Level { return t.level }

func (t *RingTracer) Enabled() bool { return t.level > LevelOff }
