package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"cbind/internal/pipeline"
)

func TestProgressTracksRuns(t *testing.T) {
	m := NewProgressModel("generating", []string{"zlib", "sqlite"}, nil).(*progressModel)

	m.applyEvent(pipeline.Event{Run: "zlib", Stage: pipeline.StageLayoutResolved, Status: pipeline.StatusWorking})
	if got := m.items[0].status; got != "layout" {
		t.Fatalf("status = %q, want layout", got)
	}
	if p := m.percent(); p <= 0 || p >= 1 {
		t.Fatalf("percent = %v", p)
	}

	m.applyEvent(pipeline.Event{Run: "zlib", Stage: pipeline.StageEmitted, Status: pipeline.StatusDone, Elapsed: 2 * time.Millisecond})
	m.applyEvent(pipeline.Event{Run: "sqlite", Stage: pipeline.StageGraphBuilt, Status: pipeline.StatusError, Err: errors.New("by-value cycle")})
	m.applyEvent(pipeline.Event{Run: "unknown", Status: pipeline.StatusDone})
	if p := m.percent(); p != 1 {
		t.Fatalf("percent = %v, want 1", p)
	}

	view := m.View()
	for _, want := range []string{"zlib", "sqlite", "2.0 ms", "by-value cycle"} {
		if !strings.Contains(view, want) {
			t.Errorf("view lacks %q:\n%s", want, view)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("a/very/long/path/to/header.h", 10); got != "a/very/..." {
		t.Fatalf("truncate = %q", got)
	}
}
