// Package emit renders the ordered declaration graph as a Go source file
// that binds the C library through github.com/jupiterrider/ffi.
package emit

import (
	"fmt"
	"go/format"
	"slices"
	"strings"

	"cbind/internal/decl"
	"cbind/internal/diag"
	"cbind/internal/docs"
	"cbind/internal/layout"
	"cbind/internal/naming"
	"cbind/internal/typegraph"
)

// Options configures one emitted file.
type Options struct {
	Package    string
	Library    string // base name of the shared library, e.g. "z" for libz.so
	Target     layout.Target
	Source     string      // recorded in the file header
	Docs       docs.Source // nil disables docstrings
	Assertions bool        // emit compile-time size and offset checks
}

// Unit is the rendered text of one step of the order.
type Unit struct {
	Node    decl.NodeID
	Name    string
	Ordinal int
	Forward bool
	Text    string
}

// Dropped is a declaration the emitter could not bind.
type Dropped struct {
	Node   decl.NodeID
	Name   string
	Reason string
}

func (d Dropped) String() string { return d.Name + ": " + d.Reason }

// File is the emitted compilation unit.
type File struct {
	Source  []byte
	Units   []Unit
	Dropped []Dropped
}

// FormatError reports generated text that go/format rejects.
type FormatError struct {
	Unit string
	Err  error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("generated code for %s does not parse: %v", e.Unit, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Emitter holds the state of one emission.
type Emitter struct {
	arena  *decl.Arena
	names  *naming.Table
	layout *layout.Engine
	opts   Options
	r      diag.Reporter

	plans       map[decl.NodeID]*recordPlan
	recordAlign map[decl.NodeID]int
	forwarded   map[decl.NodeID]bool

	imports    map[string]bool
	helpers    map[helperKind]bool
	binds      []string // symbol variables
	bindings   []string // statements of loadFuncs
	assertions []string
	dropped    []Dropped
	undoc      int
}

// Emit renders every step of order. Only a unit that go/format rejects
// fails the run.
func Emit(g *typegraph.Graph, order *typegraph.Order, names *naming.Table, opts Options, r diag.Reporter) (*File, error) {
	if r == nil {
		r = diag.NopReporter{}
	}
	if opts.Package == "" {
		opts.Package = "bindings"
	}
	if opts.Target.PtrSize == 0 {
		opts.Target = layout.X86_64LinuxGNU()
	}
	e := &Emitter{
		arena:       g.Arena(),
		names:       names,
		layout:      layout.New(opts.Target, g.Arena()),
		opts:        opts,
		r:           r,
		plans:       make(map[decl.NodeID]*recordPlan),
		recordAlign: make(map[decl.NodeID]int),
		forwarded:   make(map[decl.NodeID]bool),
		imports:     map[string]bool{"ffi": true, "fmt": true},
		helpers:     make(map[helperKind]bool),
	}

	file := &File{}
	for _, step := range order.Steps() {
		text := e.unit(step)
		if text == "" {
			continue
		}
		src, err := format.Source([]byte(text))
		name := typegraph.Describe(e.arena, step.ID)
		if err != nil {
			diag.ReportError(r, diag.EmitFormat, e.arena.MustNode(step.ID).Loc, err.Error()).Emit()
			return nil, &FormatError{Unit: name, Err: err}
		}
		file.Units = append(file.Units, Unit{
			Node:    step.ID,
			Name:    e.names.Name(step.ID),
			Ordinal: len(file.Units),
			Forward: step.Forward,
			Text:    string(src),
		})
	}

	var body strings.Builder
	for _, u := range file.Units {
		body.WriteString(u.Text)
		body.WriteString("\n")
	}
	e.writeLoader(&body)
	e.writeAssertions(&body)
	e.writeHelpers(&body)

	var out strings.Builder
	e.writeHeader(&out)
	out.WriteString(body.String())

	src, err := format.Source([]byte(out.String()))
	if err != nil {
		diag.ReportError(r, diag.EmitFormat, diag.NoLoc, err.Error()).Emit()
		return nil, &FormatError{Unit: "package " + opts.Package, Err: err}
	}
	file.Source = src
	file.Dropped = e.dropped
	if opts.Docs != nil && e.undoc > 0 {
		diag.ReportInfo(r, diag.EmitNoDocstring, diag.NoLoc,
			fmt.Sprintf("%d declarations have no docstring", e.undoc)).Emit()
	}
	return file, nil
}

// unit renders one step. Typedefs merged into their aggregate and
// unresolved macros render nothing.
func (e *Emitter) unit(step typegraph.Step) string {
	var w strings.Builder
	id := step.ID
	n := e.arena.MustNode(id)
	if step.Forward {
		// only records with a descriptor need one declared ahead
		if rec := e.arena.Record(id); n.Kind.IsAggregate() && rec.Complete && rec.Layout != nil && rec.Layout.Size > 0 {
			e.emitForward(&w, id)
		}
		return w.String()
	}
	switch n.Kind {
	case decl.KindStruct, decl.KindUnion:
		rec := e.arena.Record(id)
		if rec == nil || rec.Layout == nil {
			if rec != nil && rec.Complete {
				e.drop(id, "record has no layout; emitted as an incomplete type")
			}
			e.emitOpaque(&w, id)
			return w.String()
		}
		e.emitRecord(&w, id)
	case decl.KindEnum:
		e.emitEnum(&w, id)
	case decl.KindTypedef:
		e.emitTypedef(&w, id)
	case decl.KindFunction:
		e.emitFunction(&w, id)
	case decl.KindVariable:
		e.emitVariable(&w, id)
	case decl.KindMacro:
		e.emitMacro(&w, id)
	}
	return w.String()
}

func (e *Emitter) use(pkg string) { e.imports[pkg] = true }

func (e *Emitter) drop(id decl.NodeID, reason string) {
	n := e.arena.MustNode(id)
	name := typegraph.Describe(e.arena, id)
	e.dropped = append(e.dropped, Dropped{Node: id, Name: name, Reason: reason})
	diag.ReportWarning(e.r, diag.EmitDropped, n.Loc, name+": "+reason).Emit()
}

// doc writes the comment above a declaration: the docstring when a source
// is configured, otherwise the fallback text.
func (e *Emitter) doc(w *strings.Builder, id decl.NodeID, fallback string) {
	text := fallback
	if e.opts.Docs != nil {
		if doc, ok := e.opts.Docs.Docstring(e.arena.Symbol(id)); ok {
			text = doc
		} else {
			e.undoc++
		}
	}
	if text == "" {
		return
	}
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			w.WriteString("//\n")
			continue
		}
		w.WriteString("// " + line + "\n")
	}
}

var importPaths = map[string]string{
	"errors":   "errors",
	"fmt":      "fmt",
	"filepath": "path/filepath",
	"runtime":  "runtime",
	"unsafe":   "unsafe",
	"ffi":      "github.com/jupiterrider/ffi",
}

func (e *Emitter) writeHeader(w *strings.Builder) {
	w.WriteString("// Code generated by cbind; DO NOT EDIT.\n")
	if e.opts.Source != "" {
		fmt.Fprintf(w, "// Source: %s\n", e.opts.Source)
	}
	fmt.Fprintf(w, "// Target: %s\n\npackage %s\n\nimport (\n", e.opts.Target.Triple, e.opts.Package)
	var std []string
	for pkg := range e.imports {
		if pkg != "ffi" {
			std = append(std, importPaths[pkg])
		}
	}
	slices.Sort(std)
	for _, path := range std {
		fmt.Fprintf(w, "\t%q\n", path)
	}
	fmt.Fprintf(w, "\n\t%q\n)\n\n", importPaths["ffi"])
}

func (e *Emitter) writeAssertions(w *strings.Builder) {
	if len(e.assertions) == 0 {
		return
	}
	w.WriteString("\nfunc _() {\n")
	w.WriteString("\t// An \"invalid array index\" compiler error signifies that the C layout changed.\n")
	w.WriteString("\tvar x [1]struct{}\n")
	for _, a := range e.assertions {
		w.WriteString("\t" + a + "\n")
	}
	w.WriteString("}\n")
}

// ReservedNames lists package-level identifiers of every emitted file.
func ReservedNames() []string {
	names := []string{"lib", "Load", "LibraryPath", "loadFuncs"}
	for pkg := range importPaths {
		names = append(names, pkg)
	}
	for _, h := range helperNames {
		names = append(names, h...)
	}
	slices.Sort(names)
	return names
}

// ReservedPrefixes are prefixes of generated package-level names.
func ReservedPrefixes() []string { return []string{"FFIType", "fn", "sym"} }

// LocalNames are identifiers generated inside function wrappers.
func LocalNames() []string {
	return append([]string{"ret", "err"}, ReservedNames()...)
}
