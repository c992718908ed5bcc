package diag

import "testing"

func TestFormatShort(t *testing.T) {
	bag := NewBag(0)
	r := BagReporter{Bag: bag}
	ReportWarning(r, LayoutSizeMismatch, ParseLoc(3, "sample.h:12"), "size 8,\nfront end says 16").
		WithNote(ParseLoc(1, "sample.h:2"), "declared here").
		Emit()
	ReportError(r, IngMalformedEntry, Loc{Entry: 0}, "bad json").Emit()
	bag.Sort()

	expected := "error ING1002 entry #0 bad json\n" +
		"warning LAY3001 sample.h:12 size 8, front end says 16\n" +
		"note LAY3001 sample.h:2 declared here"
	if got := FormatShort(bag.Items(), true); got != expected {
		t.Fatalf("unexpected output:\nwant:\n%s\n\ngot:\n%s", expected, got)
	}
}

func TestBagLimitAndMerge(t *testing.T) {
	bag := NewBag(1)
	if !bag.Add(New(SevInfo, NameCollision, NoLoc, "a")) {
		t.Fatalf("first diagnostic rejected")
	}
	if bag.Add(New(SevInfo, NameCollision, NoLoc, "b")) {
		t.Fatalf("limit not enforced")
	}
	other := NewBag(0)
	other.Add(NewError(GraphValueCycle, NoLoc, "cycle"))
	bag.Merge(other)
	if bag.Len() != 2 || !bag.HasErrors() {
		t.Fatalf("merge lost diagnostics: %d", bag.Len())
	}
	if got := len(bag.Filter(GraphValueCycle)); got != 1 {
		t.Fatalf("filter = %d, want 1", got)
	}
}

func TestDedupReporter(t *testing.T) {
	bag := NewBag(0)
	r := NewDedupReporter(BagReporter{Bag: bag})
	for range 3 {
		r.Report(ConstUnresolved, SevWarning, Loc{Entry: 7}, "FOO: function-like macro", nil)
	}
	r.Report(ConstUnresolved, SevWarning, Loc{Entry: 8}, "FOO: function-like macro", nil)
	if bag.Len() != 2 {
		t.Fatalf("dedup kept %d diagnostics, want 2", bag.Len())
	}
}

func TestParseLoc(t *testing.T) {
	loc := ParseLoc(2, "/usr/include/stdlib.h:465")
	if loc.File != "/usr/include/stdlib.h" || loc.Line != 465 {
		t.Fatalf("unexpected loc %+v", loc)
	}
	if got := ParseLoc(0, "<builtin>").String(); got != "<builtin>" {
		t.Fatalf("unexpected string %q", got)
	}
	if NoLoc.IsValid() {
		t.Fatalf("NoLoc must be invalid")
	}
}
