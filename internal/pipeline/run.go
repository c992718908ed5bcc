package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"cbind/internal/constant"
	"cbind/internal/decl"
	"cbind/internal/diag"
	"cbind/internal/emit"
	"cbind/internal/ingest"
	"cbind/internal/layout"
	"cbind/internal/naming"
	"cbind/internal/observ"
	"cbind/internal/stream"
	"cbind/internal/trace"
	"cbind/internal/typegraph"
)

// OmissionKind classifies a declaration missing from the output.
type OmissionKind string

const (
	OmitSkipped    OmissionKind = "skipped"    // rejected by the ingester
	OmitUnresolved OmissionKind = "unresolved" // macro without a constant value
	OmitDropped    OmissionKind = "dropped"    // not expressible in Go + ffi
)

// Omission is one declaration of the stream that has no Go binding.
type Omission struct {
	Kind   OmissionKind `json:"kind" yaml:"kind"`
	Name   string       `json:"name" yaml:"name"`
	Reason string       `json:"reason" yaml:"reason"`
}

// Mismatch is a layout fact on which the front end and the local
// computation disagree. The front-end value is the one emitted.
type Mismatch struct {
	Declaration string `json:"declaration" yaml:"declaration"`
	Detail      string `json:"detail" yaml:"detail"`
}

// Result is the outcome of one run.
type Result struct {
	Name       string
	Source     []byte
	Units      []emit.Unit
	Omissions  []Omission
	Mismatches []Mismatch
	Bag        *diag.Bag
	Timings    Timings
	Report     observ.Report
}

// storeMu serializes load, assign and save on name stores shared between
// concurrent runs.
var storeMu sync.Mutex

// Run executes every stage for req. Only a by-value cycle in the graph, a
// failing name store or a cancelled context stop the run; everything else
// becomes an omission or a diagnostic.
func Run(ctx context.Context, req *Request) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return nil, fmt.Errorf("missing run request")
	}
	reqCopy := *req
	req = &reqCopy
	if err := req.normalize(); err != nil {
		return nil, err
	}
	r := &runner{
		ctx:    ctx,
		req:    req,
		cfg:    req.Config,
		tracer: trace.FromContext(ctx),
		timer:  observ.NewTimer(),
		res:    &Result{Name: req.Name, Bag: diag.NewBag(req.Config.MaxDiagnostics)},
	}
	// one entry can repeat a warning, e.g. for every field that redefines
	// the same tag
	r.rep = diag.NewDedupReporter(diag.BagReporter{Bag: r.res.Bag})
	emitStage(req.Progress, req.Name, StageIngesting, StatusQueued, nil, 0)

	span := trace.Begin(r.tracer, trace.ScopeRun, "run", trace.CurrentSpan(ctx).SpanID)
	r.parent = span.ID()
	err := r.run()
	r.res.Report = r.timer.Report()
	if err != nil {
		span.WithExtra("error", err.Error()).End(req.Name)
		return r.res, err
	}
	span.WithExtra("omissions", strconv.Itoa(len(r.res.Omissions))).End(req.Name)
	emitStage(req.Progress, req.Name, StageEmitted, StatusDone, nil, r.res.Timings.Sum())
	return r.res, nil
}

type runner struct {
	ctx    context.Context
	req    *Request
	cfg    Config
	rep    diag.Reporter
	tracer trace.Tracer
	parent uint64
	timer  *observ.Timer
	res    *Result

	graph *typegraph.Graph
	order *typegraph.Order
	names *naming.Table
}

func (r *runner) run() error {
	steps := []struct {
		stage Stage
		fn    func() (string, error)
	}{
		{StageIngesting, r.ingest},
		{StageGraphBuilt, r.buildGraph},
		{StageLayoutResolved, r.resolveLayout},
		{StageConstantsResolved, r.resolveConstants},
		{StageNamesAssigned, r.assignNames},
		{StageEmitted, r.emit},
	}
	for _, step := range steps {
		if err := r.ctx.Err(); err != nil {
			emitStage(r.req.Progress, r.req.Name, step.stage, StatusError, err, 0)
			return err
		}
		if err := r.stage(step.stage, step.fn); err != nil {
			return err
		}
	}
	return nil
}

// stage runs fn inside a trace span and a timer phase.
func (r *runner) stage(stage Stage, fn func() (string, error)) error {
	emitStage(r.req.Progress, r.req.Name, stage, StatusWorking, nil, 0)
	span := trace.Begin(r.tracer, trace.ScopeStage, string(stage), r.parent)
	idx := r.timer.Begin(string(stage))
	start := time.Now()

	note, err := fn()

	elapsed := time.Since(start)
	r.timer.End(idx, note)
	r.res.Timings.Set(stage, elapsed)
	if err != nil {
		span.WithExtra("error", err.Error()).End(note)
		emitStage(r.req.Progress, r.req.Name, stage, StatusError, err, elapsed)
		return err
	}
	span.End(note)
	return nil
}

func (r *runner) ingest() (string, error) {
	entries := r.req.Entries
	if entries == nil {
		for _, in := range r.req.Inputs {
			got, err := stream.ReadFile(in.Path, in.Format)
			if err != nil {
				// a partial read still yields the entries decoded so far
				diag.ReportError(r.rep, diag.IOReadFailed, diag.Loc{File: in.Path}, err.Error()).Emit()
				if got == nil {
					return "", fmt.Errorf("read declarations: %w", err)
				}
			}
			entries = append(entries, got...)
		}
	}
	res := ingest.Ingest(entries, r.rep)
	for _, s := range res.Skipped {
		trace.Point(r.tracer, trace.ScopeDecl, "skipped", s.Error(), r.parent)
		name := s.Name
		if name == "" {
			name = "entry #" + strconv.Itoa(s.Entry)
		} else if s.Kind != "" {
			name = s.Kind + " " + name
		}
		r.res.Omissions = append(r.res.Omissions, Omission{Kind: OmitSkipped, Name: name, Reason: s.Reason})
	}
	r.graph = res.Graph
	return fmt.Sprintf("%d entries, %d skipped", len(entries), len(res.Skipped)), nil
}

func (r *runner) buildGraph() (string, error) {
	order, err := r.graph.DependencyOrder()
	if err != nil {
		var cycle *typegraph.CycleError
		if errors.As(err, &cycle) && len(cycle.Cycle) > 0 {
			loc := r.graph.Arena().MustNode(cycle.Cycle[0]).Loc
			diag.ReportError(r.rep, diag.GraphValueCycle, loc, cycle.Error()).Emit()
		}
		return "", fmt.Errorf("order declarations: %w", err)
	}
	r.order = order
	forwards := 0
	for _, step := range order.Steps() {
		if step.Forward {
			forwards++
		}
	}
	return fmt.Sprintf("%d nodes, %d forward", r.graph.Len(), forwards), nil
}

func (r *runner) resolveLayout() (string, error) {
	mismatches, err := layout.Resolve(r.graph, r.cfg.Target, r.rep)
	for _, m := range mismatches {
		r.res.Mismatches = append(r.res.Mismatches, Mismatch{
			Declaration: typegraph.Describe(r.graph.Arena(), m.Node),
			Detail:      m.String(),
		})
	}
	if err != nil {
		return "", fmt.Errorf("resolve layout: %w", err)
	}
	return fmt.Sprintf("%s, %d mismatches", r.cfg.Target.Triple, len(mismatches)), nil
}

func (r *runner) resolveConstants() (string, error) {
	unresolved := constant.Resolve(r.graph, r.cfg.Target, r.rep)
	for _, u := range unresolved {
		trace.Point(r.tracer, trace.ScopeDecl, "unresolved", u.Error(), r.parent)
		name := "macro " + u.Name
		if u.Kind == decl.KindVariable {
			name = "initializer of " + u.Name
		}
		r.res.Omissions = append(r.res.Omissions, Omission{Kind: OmitUnresolved, Name: name, Reason: u.Reason})
	}
	return fmt.Sprintf("%d unresolved", len(unresolved)), nil
}

func (r *runner) assignNames() (string, error) {
	opts := naming.Options{
		Style:            r.cfg.Naming,
		Reserved:         emit.ReservedNames(),
		ReservedPrefixes: emit.ReservedPrefixes(),
		LocalReserved:    emit.LocalNames(),
	}
	store := r.cfg.Store
	if store == nil {
		r.names = naming.Assign(r.graph, opts, r.rep)
		return fmt.Sprintf("%d names", len(r.names.Snapshot())), nil
	}

	storeMu.Lock()
	defer storeMu.Unlock()
	prev, err := store.Load(r.ctx, r.cfg.StoreScope)
	if err != nil {
		diag.ReportError(r.rep, diag.IOStoreFailed, diag.NoLoc, err.Error()).Emit()
		return "", fmt.Errorf("load names: %w", err)
	}
	opts.Previous = prev
	r.names = naming.Assign(r.graph, opts, r.rep)

	// names of declarations absent from this stream stay reserved for
	// their owners
	merged := make(map[string]string, len(prev)+len(r.names.Snapshot()))
	for k, v := range prev {
		merged[k] = v
	}
	for k, v := range r.names.Snapshot() {
		merged[k] = v
	}
	if err := store.Save(r.ctx, r.cfg.StoreScope, merged); err != nil {
		diag.ReportError(r.rep, diag.IOStoreFailed, diag.NoLoc, err.Error()).Emit()
		return "", fmt.Errorf("save names: %w", err)
	}
	return fmt.Sprintf("%d names, %d reused", len(r.names.Snapshot()), len(prev)), nil
}

func (r *runner) emit() (string, error) {
	source := r.req.Name
	if len(r.req.Inputs) > 0 {
		source = r.req.Inputs[0].Path
	}
	file, err := emit.Emit(r.graph, r.order, r.names, emit.Options{
		Package:    r.cfg.Package,
		Library:    r.cfg.Library,
		Target:     r.cfg.Target,
		Source:     source,
		Docs:       r.cfg.Docs,
		Assertions: r.cfg.Assertions,
	}, r.rep)
	if err != nil {
		return "", fmt.Errorf("emit: %w", err)
	}
	for _, d := range file.Dropped {
		r.res.Omissions = append(r.res.Omissions, Omission{Kind: OmitDropped, Name: d.Name, Reason: d.Reason})
	}
	r.res.Source = file.Source
	r.res.Units = file.Units
	if r.req.Output != "" {
		if err := emit.WriteFile(r.req.Output, file.Source); err != nil {
			diag.ReportError(r.rep, diag.IOWriteFailed, diag.Loc{File: r.req.Output}, err.Error()).Emit()
			return "", fmt.Errorf("write output: %w", err)
		}
	}
	return fmt.Sprintf("%d units, %d bytes", len(file.Units), len(file.Source)), nil
}
