// Package trace provides leveled span tracing for generation runs.
//
// # Usage
//
//	cbind generate --trace=- --trace-level=stage decls.ndjson
//
// # Tracers
//
//   - Nop: zero-overhead tracer used when tracing is disabled
//   - StreamTracer: writes every event immediately (text or NDJSON)
//   - RingTracer: keeps the last N events and writes them when closed
//
// A Heartbeat adds periodic events with goroutine and heap counts.
//
// # Scopes and levels
//
// ScopeRun covers one generation run, ScopeStage the pipeline stages
// (ingest, graph, layout, constants, names, emit), ScopeDecl individual
// declarations and ScopeExpr macro expression folding. LevelStage emits runs
// and stages, LevelDetail adds declarations, LevelDebug emits everything.
//
// Tracers travel through the pipeline in a context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopeStage, "layout", 0)
//	defer span.End("")
package trace
