package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"cbind/internal/trace"
)

// RunAll runs independent requests with at most jobs in flight (GOMAXPROCS
// when jobs <= 0). Each request builds its own graph; results keep the
// order of reqs. A failing run does not cancel the others: its error is
// returned with the results of the rest.
func RunAll(ctx context.Context, reqs []*Request, jobs int) ([]*Result, error) {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	results := make([]*Result, len(reqs))
	errs := make([]error, len(reqs))

	span := trace.Begin(trace.FromContext(ctx), trace.ScopeRun, "batch", trace.CurrentSpan(ctx).SpanID)
	defer span.End(fmt.Sprintf("%d runs", len(reqs)))
	if id := span.ID(); id != 0 {
		ctx = trace.WithSpanContext(ctx, trace.SpanContext{SpanID: id})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := Run(gctx, req)
			results[i] = res
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", requestName(req, i), err)
			}
			// cancellation of the parent stops every run
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, errors.Join(errs...)
}

func requestName(req *Request, i int) string {
	if req != nil && req.Name != "" {
		return req.Name
	}
	if req != nil && req.Output != "" {
		return req.Output
	}
	return fmt.Sprintf("request #%d", i)
}
