package emit

import (
	"fmt"
	"strings"

	"cbind/internal/decl"
	"cbind/internal/diag"
)

// param is the Go side of one C parameter.
type param struct {
	name    string
	goType  string
	ffiType string
	cstring bool
}

func (e *Emitter) emitFunction(w *strings.Builder, id decl.NodeID) {
	n := e.arena.MustNode(id)
	sig := e.arena.Signature(id)
	name := e.names.Name(id)
	if sig == nil {
		return
	}
	if sig.Variadic {
		e.emitVariadic(w, id, n, name)
		return
	}

	var result string
	if !e.isVoid(sig.Result) {
		ffiType, ok := e.ffiType(sig.Result)
		if !ok {
			e.drop(id, "result type cannot be passed through libffi")
			return
		}
		result = ffiType
	} else {
		result = "&ffi.TypeVoid"
	}

	pnames := e.names.Params(id)
	if len(pnames) != len(sig.Params) {
		pnames = make([]string, len(sig.Params))
		for i := range pnames {
			pnames[i] = fmt.Sprintf("arg%d", i)
		}
	}
	params := make([]param, 0, len(sig.Params))
	for i, p := range sig.Params {
		pt := p.Type
		if e.isArray(pt) {
			pt = decl.NoNode
		}
		var pr param
		pr.name = pnames[i]
		switch {
		case pt == decl.NoNode:
			pr.goType, pr.ffiType = e.pointerType(e.arrayElem(p.Type)), "&ffi.TypePointer"
		case e.isCString(pt):
			pr.goType, pr.ffiType, pr.cstring = "string", "&ffi.TypePointer", true
		default:
			ffiType, ok := e.ffiType(pt)
			if !ok {
				e.drop(id, fmt.Sprintf("parameter %d cannot be passed through libffi", i))
				return
			}
			pr.goType, pr.ffiType = e.goType(pt), ffiType
		}
		params = append(params, pr)
	}

	fn := "fn" + name
	prep := append([]string{fmt.Sprintf("%q", n.Name), result}, ffiTypes(params)...)
	e.binds = append(e.binds, fmt.Sprintf("\tvar %s ffi.Fun", fn))
	e.bindings = append(e.bindings, fmt.Sprintf(
		"if %s, err = lib.Prep(%s); err != nil {\n\terrs = append(errs, fmt.Errorf(%q, err))\n}", fn, strings.Join(prep, ", "), n.Name+": %w"))

	e.doc(w, id, "")
	if sig.CallConv != decl.CallDefault {
		if e.opts.Docs != nil {
			w.WriteString("//\n")
		}
		fmt.Fprintf(w, "// Calling convention: %s.\n", sig.CallConv)
	}

	args := make([]string, len(params))
	for i, p := range params {
		args[i] = p.name + " " + p.goType
	}
	retType, retVar, retExpr := e.result(sig.Result)
	if retType != "" {
		fmt.Fprintf(w, "func %s(%s) %s {\n", name, strings.Join(args, ", "), retType)
	} else {
		fmt.Fprintf(w, "func %s(%s) {\n", name, strings.Join(args, ", "))
	}

	call := []string{"nil"}
	if retVar != "" {
		fmt.Fprintf(w, "\tvar ret %s\n", retVar)
		call[0] = "unsafe.Pointer(&ret)"
	}
	var keep []string
	for _, p := range params {
		if p.cstring {
			e.helper(helperCString)
			e.use("runtime")
			fmt.Fprintf(w, "\t_%s := cString(%s)\n", p.name, p.name)
			call = append(call, "unsafe.Pointer(&_"+p.name+")")
			keep = append(keep, "_"+p.name)
			continue
		}
		call = append(call, "unsafe.Pointer(&"+p.name+")")
	}
	if len(call) > 1 || retVar != "" {
		e.use("unsafe")
	}
	fmt.Fprintf(w, "\t%s.Call(%s)\n", fn, strings.Join(call, ", "))
	for _, k := range keep {
		fmt.Fprintf(w, "\truntime.KeepAlive(%s)\n", k)
	}
	if retExpr != "" {
		fmt.Fprintf(w, "\treturn %s\n", retExpr)
	}
	w.WriteString("}\n")
}

func ffiTypes(params []param) []string {
	out := make([]string, len(params))
	for i, p := range params {
		out[i] = p.ffiType
	}
	return out
}

// result picks the Go result type, the type of the return slot and the
// expression converting the slot. Integers narrower than a register come
// back widened in an ffi.Arg.
func (e *Emitter) result(id decl.NodeID) (goType, slot, expr string) {
	if e.isVoid(id) {
		return "", "", ""
	}
	if e.isCString(id) {
		e.helper(helperGoString)
		return "string", "*byte", "goString(ret)"
	}
	goType = e.goType(id)
	rid, n := e.resolve(id)
	var sc scalar
	switch n.Kind {
	case decl.KindFundamental:
		sc = e.scalarOf(rid)
	case decl.KindEnum:
		sc = e.enumScalar(rid)
	default:
		return goType, goType, "ret"
	}
	if !sc.small {
		return goType, goType, "ret"
	}
	if sc.goType == "bool" {
		return goType, "ffi.Arg", "ret != 0"
	}
	if sc.signed && goType != sc.goType {
		// the sign of a narrow value lives in its low bits
		return goType, "ffi.Arg", fmt.Sprintf("%s(%s(ret))", goType, sc.goType)
	}
	return goType, "ffi.Arg", fmt.Sprintf("%s(ret)", goType)
}

// emitVariadic binds a variadic function as a preparer: every call site
// passes the libffi types of its variadic arguments.
func (e *Emitter) emitVariadic(w *strings.Builder, id decl.NodeID, n decl.Node, name string) {
	sig := e.arena.Signature(id)
	if len(sig.Params) == 0 {
		e.drop(id, "variadic function without fixed parameters")
		return
	}
	result := "&ffi.TypeVoid"
	if !e.isVoid(sig.Result) {
		ffiType, ok := e.ffiType(sig.Result)
		if !ok {
			e.drop(id, "result type cannot be passed through libffi")
			return
		}
		result = ffiType
	}
	fixed := make([]string, len(sig.Params))
	for i, p := range sig.Params {
		if e.isArray(p.Type) {
			fixed[i] = "&ffi.TypePointer"
			continue
		}
		ffiType, ok := e.ffiType(p.Type)
		if !ok {
			e.drop(id, fmt.Sprintf("parameter %d cannot be passed through libffi", i))
			return
		}
		fixed[i] = ffiType
	}
	diag.ReportInfo(e.r, diag.EmitVariadic, n.Loc,
		fmt.Sprintf("%s is variadic; bound as a per-call preparer", n.Name)).Emit()

	e.doc(w, id, "")
	if e.opts.Docs != nil {
		w.WriteString("//\n")
	}
	fmt.Fprintf(w, "// %s prepares a call of the variadic C function %s. Pass the types of\n", name, n.Name)
	w.WriteString("// the variadic arguments; the fixed ones are supplied.\n")
	fmt.Fprintf(w, "func %s(variadic ...*ffi.Type) (ffi.Fun, error) {\n", name)
	fmt.Fprintf(w, "\treturn lib.PrepVar(%q, %d, %s, append([]*ffi.Type{%s}, variadic...)...)\n}\n",
		n.Name, len(fixed), result, strings.Join(fixed, ", "))
}

func (e *Emitter) emitVariable(w *strings.Builder, id decl.NodeID) {
	n := e.arena.MustNode(id)
	name := e.names.Name(id)
	typ := e.goType(n.Elem)
	if typ == "" || e.isVoid(n.Elem) {
		e.drop(id, "variable has no object type")
		return
	}
	sym := "sym" + name
	e.use("unsafe")
	e.binds = append(e.binds, fmt.Sprintf("\tvar %s uintptr", sym))
	e.bindings = append(e.bindings, fmt.Sprintf(
		"if %s, err = lib.Get(%q); err != nil {\n\terrs = append(errs, fmt.Errorf(%q, err))\n}", sym, n.Name, n.Name+": %w"))

	e.doc(w, id, fmt.Sprintf("%s returns a pointer to the C variable %s.", name, n.Name))
	fmt.Fprintf(w, "func %s() *%s {\n\treturn (*%s)(unsafe.Pointer(%s))\n}\n", name, typ, typ, sym)

	e.emitInitial(w, id, name)
}

// emitInitial writes the folded initializer of a variable as a constant of
// the variable's type. The value is the one in the library image before
// any code runs.
func (e *Emitter) emitInitial(w *strings.Builder, id decl.NodeID, accessor string) {
	v := e.arena.Variable(id)
	init := e.names.Initial(id)
	if v == nil || v.Value == nil || init == "" {
		return
	}
	typ, value, reason := e.literal(v.Value)
	if reason != "" || value == "" {
		return
	}
	if v.Value.Kind != decl.LitString {
		elem := e.arena.MustNode(id).Elem
		if t, n := e.resolve(elem); n.Kind == decl.KindFundamental && e.scalarOf(t).opaque {
			return
		}
		typ = e.goType(elem)
	}
	fmt.Fprintf(w, "\n// %s is the initial value of the variable behind %s.\n", init, accessor)
	writeConst(w, init, typ, value)
}

func (e *Emitter) writeLoader(w *strings.Builder) {
	w.WriteString(`
var lib ffi.Lib

// Load opens the shared library at path and binds its symbols. Symbols
// missing from the library are reported together; the others stay usable.
func Load(path string) error {
	var err error
	lib, err = ffi.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load library: %w", err)
	}
	return loadFuncs()
}
`)
	if e.opts.Library != "" {
		e.use("runtime")
		e.use("filepath")
		fmt.Fprintf(w, `
// LibraryPath returns the file name of the library inside dir for the
// running platform.
func LibraryPath(dir string) string {
	var filename string
	switch runtime.GOOS {
	case "darwin":
		filename = "lib%[1]s.dylib"
	case "windows":
		filename = "%[1]s.dll"
	default:
		filename = "lib%[1]s.so"
	}
	return filepath.Join(dir, filename)
}
`, e.opts.Library)
	}

	if len(e.bindings) == 0 {
		w.WriteString("\nfunc loadFuncs() error { return nil }\n")
		return
	}
	e.use("errors")
	w.WriteString("\nvar (\n")
	for _, b := range e.binds {
		w.WriteString(strings.TrimPrefix(b, "\tvar ") + "\n")
	}
	w.WriteString(")\n\nfunc loadFuncs() error {\n\tvar (\n\t\terr  error\n\t\terrs []error\n\t)\n")
	for _, b := range e.bindings {
		for _, line := range strings.Split(b, "\n") {
			w.WriteString("\t" + line + "\n")
		}
	}
	w.WriteString("\treturn errors.Join(errs...)\n}\n")
}
