package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"cbind/internal/constant"
	"cbind/internal/layout"
	"cbind/internal/pipeline"
	"cbind/internal/stream"
)

const manifestText = `
jobs = 2

[defaults]
library = "z"
target = "aarch64"
assertions = true
defines = ["zconf.defines"]

[[binding]]
name = "zlib"
inputs = ["zlib.ndjson"]
output = "zlib/zlib.go"

[[binding]]
inputs = ["gzip.msgpack"]
output = "gzip/gzip.go"
library = "gz"
target = "x86_64-linux-gnu"
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestFindManifestWalksUp(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, manifestName), manifestText)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path, ok, err := findManifest(nested)
	if err != nil || !ok {
		t.Fatalf("findManifest: %v %v", ok, err)
	}
	if path != filepath.Join(root, manifestName) {
		t.Fatalf("path = %s", path)
	}
}

func TestLoadManifestAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), manifestName)
	writeFile(t, path, manifestText)
	m, err := loadManifest(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Config.Jobs != 2 || len(m.Config.Bindings) != 2 {
		t.Fatalf("config: %+v", m.Config)
	}
	zlib, gzip := m.Config.Bindings[0], m.Config.Bindings[1]
	if zlib.Library != "z" || zlib.Target != "aarch64" || zlib.Assertions == nil || !*zlib.Assertions {
		t.Fatalf("zlib defaults not applied: %+v", zlib)
	}
	if gzip.Name != "gzip/gzip.go" || gzip.Library != "gz" || gzip.Target != "x86_64-linux-gnu" {
		t.Fatalf("gzip overrides lost: %+v", gzip)
	}
	if len(gzip.Defines) != 1 {
		t.Fatalf("gzip defines = %v", gzip.Defines)
	}
}

func TestLoadManifestRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"no bindings": "jobs = 1\n",
		"no output":   "[[binding]]\ninputs = [\"a.ndjson\"]\n",
		"unknown key": "[[binding]]\ninputs = [\"a.ndjson\"]\noutput = \"a.go\"\nlibary = \"x\"\n",
		"duplicate":   "[[binding]]\nname = \"a\"\ninputs = [\"a\"]\noutput = \"a.go\"\n[[binding]]\nname = \"a\"\ninputs = [\"b\"]\noutput = \"b.go\"\n",
	}
	for name, text := range cases {
		path := filepath.Join(t.TempDir(), manifestName)
		writeFile(t, path, text)
		if _, err := loadManifest(path); err == nil {
			t.Fatalf("%s: manifest accepted", name)
		}
	}
}

func TestBindingRequestResolvesPaths(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, manifestName)
	writeFile(t, path, manifestText)
	m, err := loadManifest(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	stores := newStoreSet()
	defer stores.Close()

	req, err := m.Config.Bindings[0].request(context.Background(), m.Root, stores, 50)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if req.Output != filepath.Join(root, "zlib", "zlib.go") {
		t.Fatalf("output = %s", req.Output)
	}
	want := []pipeline.Input{
		{Path: filepath.Join(root, "zlib.ndjson")},
		{Path: filepath.Join(root, "zconf.defines"), Format: stream.FormatDefines},
	}
	if len(req.Inputs) != len(want) {
		t.Fatalf("inputs = %+v", req.Inputs)
	}
	for i := range want {
		if req.Inputs[i] != want[i] {
			t.Fatalf("input %d = %+v, want %+v", i, req.Inputs[i], want[i])
		}
	}
	if req.Config.Target.Triple != layout.AArch64LinuxGNU().Triple || !req.Config.Assertions {
		t.Fatalf("config = %+v", req.Config)
	}
	if req.Config.Docs == nil || req.Config.MaxDiagnostics != 50 {
		t.Fatalf("docs/max diagnostics not set: %+v", req.Config)
	}
}

func TestBindingRequestSharesStores(t *testing.T) {
	root := t.TempDir()
	stores := newStoreSet()
	defer stores.Close()
	b := bindingConfig{Inputs: []string{"a.ndjson"}, Names: "names.msgpack"}
	first, err := b.request(context.Background(), root, stores, 0)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := b.request(context.Background(), root, stores, 0)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.Config.Store == nil || first.Config.Store != second.Config.Store {
		t.Fatalf("stores not shared")
	}
}

func TestDocSourceRejectsUnknownKinds(t *testing.T) {
	if _, err := docSource(context.Background(), []string{"manpages"}, nil); err == nil {
		t.Fatalf("unknown source accepted")
	}
	if _, err := docSource(context.Background(), []string{"headers"}, nil); err == nil {
		t.Fatalf("headers without files accepted")
	}
	src, err := docSource(context.Background(), []string{"none"}, nil)
	if err != nil || src != nil {
		t.Fatalf("none = %v, %v", src, err)
	}
}

func TestFormatLiteral(t *testing.T) {
	ev := constant.NewEvaluator(layout.X86_64LinuxGNU())
	ev.DefineMacro("WIDTH", nil, false, "640")
	cases := map[string]string{
		"WIDTH * 2": "1280 (int)",
		"1u << 31":  "2147483648 (unsigned int)",
		`"a" "b"`:   `"ab"`,
		"'A'":       "'A' (",
	}
	for text, want := range cases {
		lit, err := ev.Eval(text)
		if err != nil {
			t.Fatalf("eval %q: %v", text, err)
		}
		if got := formatLiteral(lit); !strings.HasPrefix(got, want) {
			t.Fatalf("%q = %s, want %s", text, got, want)
		}
	}
}

func TestBindingFromFlags(t *testing.T) {
	f := pflag.NewFlagSet("generate", pflag.ContinueOnError)
	addBindingFlags(f)
	err := f.Parse([]string{"-o", "out/z.go", "--library", "z", "--docs", "prototypes,frontend", "--assertions", "zlib.ndjson"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	b, err := bindingFromFlags(f, f.Args())
	if err != nil {
		t.Fatalf("bindingFromFlags: %v", err)
	}
	if b.Output != "out/z.go" || b.Library != "z" || b.Target != "x86_64-linux-gnu" {
		t.Fatalf("binding = %+v", b)
	}
	if len(b.Inputs) != 1 || len(b.Docs) != 2 || b.Assertions == nil || !*b.Assertions {
		t.Fatalf("binding = %+v", b)
	}
}
