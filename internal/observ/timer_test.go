package observ_test

import (
	"strings"
	"testing"

	"cbind/internal/observ"
)

func TestTimerReport(t *testing.T) {
	tm := observ.NewTimer()
	tm.End(tm.Begin("ingesting"), "3 entries")
	tm.End(tm.Begin("emit"), "")
	tm.End(7, "ignored")

	rep := tm.Report()
	if len(rep.Phases) != 2 || rep.Phases[0].Name != "ingesting" || rep.Phases[0].Note != "3 entries" {
		t.Fatalf("unexpected report: %+v", rep)
	}
	sum := tm.Summary()
	if !strings.Contains(sum, "// 3 entries") || !strings.Contains(sum, "total") {
		t.Fatalf("unexpected summary:\n%s", sum)
	}
	if empty := observ.NewTimer().Report(); len(empty.Phases) != 0 || empty.TotalMS != 0 {
		t.Fatalf("empty timer report: %+v", empty)
	}
}

func TestMergeSumsByName(t *testing.T) {
	a := observ.Report{TotalMS: 3, Phases: []observ.PhaseReport{{Name: "graph", DurationMS: 1}, {Name: "emit", DurationMS: 2, Note: "x"}}}
	b := observ.Report{TotalMS: 4, Phases: []observ.PhaseReport{{Name: "emit", DurationMS: 4}}}
	m := observ.Merge(a, b)
	if m.TotalMS != 7 || len(m.Phases) != 2 {
		t.Fatalf("merged: %+v", m)
	}
	if m.Phases[0].Name != "graph" || m.Phases[1].DurationMS != 6 || m.Phases[1].Note != "" {
		t.Fatalf("merged phases: %+v", m.Phases)
	}
}
