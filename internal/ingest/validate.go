package ingest

import (
	"cbind/internal/decl"
	"cbind/internal/diag"
	"cbind/internal/stream"
)

// validate checks an entry before any node is created so that a skipped
// entry leaves nothing behind in the arena.
func (in *Ingester) validate(kind decl.Kind, e *stream.Entry) *Error {
	// tags named by this entry, so that a body nested inside the entry is
	// checked against the kinds introduced before it
	in.entryTags = make(map[string]decl.Kind)
	switch kind {
	case decl.KindStruct, decl.KindUnion, decl.KindEnum:
		if e.Name != "" {
			if err := in.checkTag(kind, e.Name); err != nil {
				return err
			}
		}
		for i := range e.Fields {
			if e.Fields[i].Type == nil {
				return skip(diag.IngMalformedEntry, "field %d has no type", i)
			}
			if w := e.Fields[i].BitWidth; w != nil && *w < 0 {
				return skip(diag.IngMalformedEntry, "field %d has negative bit width", i)
			}
			if err := in.checkType(e.Fields[i].Type); err != nil {
				return err
			}
		}
		if kind == decl.KindEnum && len(e.Fields) > 0 {
			return skip(diag.IngMalformedEntry, "enum with fields")
		}
	case decl.KindTypedef:
		if e.Name == "" {
			return skip(diag.IngMissingName, "typedef without a name")
		}
		if e.Type == nil {
			return skip(diag.IngMalformedEntry, "typedef without a target type")
		}
		return in.checkType(e.Type)
	case decl.KindVariable:
		if e.Name == "" {
			return skip(diag.IngMissingName, "variable without a name")
		}
		if e.Type == nil {
			return skip(diag.IngMalformedEntry, "variable without a type")
		}
		return in.checkType(e.Type)
	case decl.KindFunction:
		if e.Name == "" {
			return skip(diag.IngMissingName, "function without a name")
		}
		if err := in.checkType(e.Result); err != nil {
			return err
		}
		for i := range e.Params {
			if e.Params[i].Type == nil {
				return skip(diag.IngMalformedEntry, "parameter %d has no type", i)
			}
			if err := in.checkType(e.Params[i].Type); err != nil {
				return err
			}
		}
	case decl.KindMacro:
		if e.Name == "" {
			return skip(diag.IngMissingName, "macro without a name")
		}
	}
	return nil
}

// checkType walks a nested descriptor. A nil descriptor stands for void.
func (in *Ingester) checkType(t *stream.Type) *Error {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case "fundamental":
		if _, err := decl.ParseScalar(t.Name); err != nil && t.Size == nil {
			return skip(diag.IngUnknownTypeName, "%v", err)
		}
	case "pointer":
		return in.checkType(t.Elem)
	case "array":
		if t.Elem == nil {
			return skip(diag.IngMalformedEntry, "array without element type")
		}
		if t.Count != nil && *t.Count < decl.CountIncomplete {
			return skip(diag.IngMalformedEntry, "array with negative length %d", *t.Count)
		}
		return in.checkType(t.Elem)
	case "function_pointer":
		if err := in.checkType(t.Result); err != nil {
			return err
		}
		for i := range t.Params {
			if err := in.checkType(t.Params[i].Type); err != nil {
				return err
			}
		}
	case "struct", "union", "enum":
		kind, _ := decl.ParseKind(t.Kind)
		if t.Name != "" {
			if err := in.checkTag(kind, t.Name); err != nil {
				return err
			}
		}
		if !t.HasBody() {
			if t.Name == "" {
				return skip(diag.IngMalformedEntry, "reference to an anonymous %s", t.Kind)
			}
			return nil
		}
		for i := range t.Fields {
			if t.Fields[i].Type == nil {
				return skip(diag.IngMalformedEntry, "field %d of inline %s has no type", i, t.Kind)
			}
			if err := in.checkType(t.Fields[i].Type); err != nil {
				return err
			}
		}
	case "typedef":
		if _, ok := in.typedefs[t.Name]; !ok {
			return skip(diag.IngUnknownTypeName, "unknown type name %q", t.Name)
		}
	default:
		return skip(diag.IngMalformedEntry, "unknown type descriptor kind %q", t.Kind)
	}
	return nil
}

// checkTag rejects a tag used with a kind other than the one it was
// declared with, earlier in the stream or earlier in the same entry.
func (in *Ingester) checkTag(kind decl.Kind, name string) *Error {
	pk, ok := in.entryTags[name]
	if !ok {
		if prev, seen := in.tags[name]; seen {
			pk, ok = in.arena.MustNode(prev).Kind, true
		}
	}
	if ok && pk != kind {
		return skip(diag.IngIncompatibleDefinition, "%s %s was declared as %s", kind, name, pk)
	}
	in.entryTags[name] = kind
	return nil
}
