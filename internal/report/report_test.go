package report_test

import (
	"bytes"
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"cbind/internal/diag"
	"cbind/internal/pipeline"
	"cbind/internal/report"
	"cbind/internal/stream"
)

const sample = `{"kind":"macro","name":"FOO","body":"(1+2)"}
{"kind":"macro","name":"BAR","body":"some_function(1)"}
not json at all
{"kind":"struct","name":"point","fields":[{"name":"x","type":{"kind":"fundamental","name":"int"}}]}
`

func run(t *testing.T) *pipeline.Result {
	t.Helper()
	entries, err := stream.DecodeNDJSON(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	res, err := pipeline.Run(context.Background(), &pipeline.Request{Name: "sample", Entries: entries})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return res
}

func TestParseFormat(t *testing.T) {
	cases := map[string]report.Format{"": report.FormatText, "YAML": report.FormatYAML, "yml": report.FormatYAML, "json": report.FormatJSON}
	for in, want := range cases {
		got, err := report.ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := report.ParseFormat("xml"); err == nil {
		t.Fatalf("xml accepted")
	}
}

func TestFromResultsFiltersSeverity(t *testing.T) {
	res := run(t)
	all := report.FromResults([]*pipeline.Result{res, nil}, report.Options{})
	if len(all.Runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(all.Runs))
	}
	warned := report.FromResults([]*pipeline.Result{res}, report.Options{MinSeverity: diag.SevWarning})
	if len(warned.Runs[0].Diagnostics) >= len(all.Runs[0].Diagnostics) {
		t.Fatalf("severity filter kept %d of %d", len(warned.Runs[0].Diagnostics), len(all.Runs[0].Diagnostics))
	}
	for _, d := range warned.Runs[0].Diagnostics {
		if d.Severity == "info" {
			t.Fatalf("info diagnostic survived: %+v", d)
		}
	}
	if all.Runs[0].Timings != nil {
		t.Fatalf("timings included without being asked for")
	}
}

func TestYAMLAndJSONCarryOmissions(t *testing.T) {
	doc := report.FromResults([]*pipeline.Result{run(t)}, report.Options{Timings: true})

	var buf bytes.Buffer
	if err := report.Write(&buf, doc, report.FormatYAML); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	var fromYAML report.Document
	if err := yaml.Unmarshal(buf.Bytes(), &fromYAML); err != nil {
		t.Fatalf("decode yaml: %v\n%s", err, buf.String())
	}
	if len(fromYAML.Runs) != 1 || len(fromYAML.Runs[0].Omissions) != 2 {
		t.Fatalf("yaml runs: %+v", fromYAML.Runs)
	}
	if fromYAML.Runs[0].Timings == nil || len(fromYAML.Runs[0].Timings.Phases) != len(pipeline.Stages) {
		t.Fatalf("yaml timings: %+v", fromYAML.Runs[0].Timings)
	}

	buf.Reset()
	if err := report.Write(&buf, doc, report.FormatJSON); err != nil {
		t.Fatalf("json: %v", err)
	}
	var fromJSON report.Document
	if err := json.Unmarshal(buf.Bytes(), &fromJSON); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if fromJSON.Runs[0].Name != "sample" || fromJSON.Runs[0].Units == 0 {
		t.Fatalf("json run: %+v", fromJSON.Runs[0])
	}
}

func TestTextAlignsOmissions(t *testing.T) {
	doc := report.FromResults([]*pipeline.Result{run(t)}, report.Options{})
	var buf bytes.Buffer
	if err := report.Write(&buf, doc, report.FormatText); err != nil {
		t.Fatalf("text: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "sample: ") || !strings.Contains(out, "2 omissions") {
		t.Fatalf("unexpected header:\n%s", out)
	}
	if !strings.Contains(out, "unresolved macro BAR") {
		t.Fatalf("missing unresolved macro:\n%s", out)
	}
	cell := regexp.MustCompile(`^  (\S.*?)\s{2,}\S`)
	var columns []int
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "  skipped ") || strings.HasPrefix(line, "  unresolved ") {
			m := cell.FindStringIndex(line)
			if m == nil {
				t.Fatalf("row without reason: %q", line)
			}
			columns = append(columns, m[1])
		}
	}
	if len(columns) != 2 || columns[0] != columns[1] {
		t.Fatalf("omission rows not aligned: %v\n%s", columns, out)
	}
}

func TestQuerySelectsOmissions(t *testing.T) {
	doc := report.FromResults([]*pipeline.Result{run(t)}, report.Options{})
	names, err := report.Query(context.Background(), doc, `.runs[].omissions[] | select(.kind == "unresolved") | .name`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(names) != 1 || names[0] != "macro BAR" {
		t.Fatalf("names = %v", names)
	}

	var buf bytes.Buffer
	if err := report.WriteQuery(context.Background(), &buf, doc, `.runs[0] | {name, units}`); err != nil {
		t.Fatalf("write query: %v", err)
	}
	if !strings.HasPrefix(buf.String(), `{"name":"sample","units":`) {
		t.Fatalf("query output = %q", buf.String())
	}

	if _, err := report.Query(context.Background(), doc, ".runs[["); err == nil {
		t.Fatalf("malformed query accepted")
	}
	if _, err := report.Query(context.Background(), doc, `error("boom")`); err == nil {
		t.Fatalf("query error swallowed")
	}
}
