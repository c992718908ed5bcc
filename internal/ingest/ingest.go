// Package ingest turns the ordered declaration stream into arena nodes and
// registers them with the type graph.
package ingest

import (
	"encoding/json"
	"fmt"

	"cbind/internal/decl"
	"cbind/internal/diag"
	"cbind/internal/stream"
	"cbind/internal/typegraph"
)

// Ingester consumes stream entries one at a time. It keeps the C scopes
// needed to resolve references: tags, typedef names and ordinary
// declarations.
type Ingester struct {
	g     *typegraph.Graph
	arena *decl.Arena
	r     diag.Reporter

	tags     map[string]decl.NodeID
	typedefs map[string]decl.NodeID
	ordinary map[string]decl.NodeID // functions and variables
	macros   map[string]decl.NodeID

	// fingerprints of complete definitions, for duplicate detection
	defs map[decl.NodeID]string

	entryTags map[string]decl.Kind

	anon    map[decl.NodeID]int
	ordinal int
	skipped []*Error
}

// New creates an ingester writing into a fresh graph.
func New(r diag.Reporter) *Ingester {
	if r == nil {
		r = diag.NopReporter{}
	}
	g := typegraph.New()
	return &Ingester{
		g:        g,
		arena:    g.Arena(),
		r:        r,
		tags:     make(map[string]decl.NodeID),
		typedefs: make(map[string]decl.NodeID),
		ordinary: make(map[string]decl.NodeID),
		macros:   make(map[string]decl.NodeID),
		defs:     make(map[decl.NodeID]string),
		anon:     make(map[decl.NodeID]int),
	}
}

// Result is the outcome of ingesting a whole stream.
type Result struct {
	Graph   *typegraph.Graph
	Skipped []*Error
}

// Ingest feeds every entry to a new Ingester.
func Ingest(entries []stream.Entry, r diag.Reporter) *Result {
	in := New(r)
	for i := range entries {
		_ = in.Add(&entries[i])
	}
	return in.Result()
}

// Graph returns the graph built so far.
func (in *Ingester) Graph() *typegraph.Graph { return in.g }

// Skipped returns the skipped entries in stream order.
func (in *Ingester) Skipped() []*Error { return in.skipped }

// Result packages the graph and the skipped entries.
func (in *Ingester) Result() *Result {
	return &Result{Graph: in.g, Skipped: in.skipped}
}

// Add ingests the next entry of the stream. A non-nil error is the *Error
// recording why the entry was skipped; ingestion may continue.
func (in *Ingester) Add(e *stream.Entry) error {
	ordinal := in.ordinal
	in.ordinal++
	loc := diag.ParseLoc(ordinal, e.Location)

	if err := in.add(ordinal, loc, e); err != nil {
		err.Entry, err.Kind, err.Name = ordinal, e.Kind, e.Name
		in.skipped = append(in.skipped, err)
		diag.ReportWarning(in.r, err.Code, loc, err.Error()).Emit()
		return err
	}
	return nil
}

func (in *Ingester) add(ordinal int, loc diag.Loc, e *stream.Entry) *Error {
	if e.Malformed != "" {
		return skip(diag.IngMalformedEntry, "%s", e.Malformed)
	}
	kind, ok := decl.ParseKind(e.Kind)
	if !ok || kind.IsDerived() {
		return skip(diag.IngUnknownKind, "unsupported declaration kind %q", e.Kind)
	}
	if err := in.validate(kind, e); err != nil {
		return err
	}

	b := &builder{in: in, ordinal: ordinal, loc: loc}
	switch kind {
	case decl.KindStruct, decl.KindUnion:
		return b.record(kind, e)
	case decl.KindEnum:
		return b.enum(e)
	case decl.KindTypedef:
		return b.typedef(e)
	case decl.KindFunction:
		return b.function(e)
	case decl.KindVariable:
		return b.variable(e)
	case decl.KindMacro:
		return b.macro(e)
	}
	return skip(diag.IngUnknownKind, "unsupported declaration kind %q", e.Kind)
}

// fingerprint renders the parts of a definition that must agree between
// two declarations of the same entity. Locations and documentation are
// left out.
func fingerprint(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	return string(data)
}

type recordShape struct {
	Kind   string
	Fields []stream.Field
	Values []stream.EnumValue
	Packed bool
	Size   *int
	Align  *int
}

type typedefShape struct {
	Type *stream.Type
}

type functionShape struct {
	Result   *stream.Type
	Params   []*stream.Type
	Variadic bool
	CallConv string
}

func protoShape(e *stream.Entry) functionShape {
	s := functionShape{Result: e.Result, Variadic: e.Variadic, CallConv: e.CallConv}
	for _, p := range e.Params {
		s.Params = append(s.Params, p.Type)
	}
	return s
}
