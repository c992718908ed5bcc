package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"cbind/internal/docs"
	"cbind/internal/layout"
	"cbind/internal/naming"
	"cbind/internal/pipeline"
	"cbind/internal/stream"
)

// bindingConfig describes one generated file. It is filled from generate
// flags or from a [[binding]] table of cbind.toml.
type bindingConfig struct {
	Name       string   `toml:"name"`
	Inputs     []string `toml:"inputs"`
	Format     string   `toml:"format"`
	Defines    []string `toml:"defines"`
	Output     string   `toml:"output"`
	Package    string   `toml:"package"`
	Library    string   `toml:"library"`
	Target     string   `toml:"target"`
	Naming     string   `toml:"naming"`
	Names      string   `toml:"names"`
	Docs       []string `toml:"docs"`
	Headers    []string `toml:"headers"`
	Assertions *bool    `toml:"assertions"`
}

// withDefaults fills the unset fields of b from d.
func (b bindingConfig) withDefaults(d bindingConfig) bindingConfig {
	pick := func(v, def string) string {
		if strings.TrimSpace(v) == "" {
			return def
		}
		return v
	}
	b.Format = pick(b.Format, d.Format)
	b.Library = pick(b.Library, d.Library)
	b.Target = pick(b.Target, d.Target)
	b.Naming = pick(b.Naming, d.Naming)
	b.Names = pick(b.Names, d.Names)
	if len(b.Defines) == 0 {
		b.Defines = d.Defines
	}
	if len(b.Docs) == 0 {
		b.Docs = d.Docs
	}
	if len(b.Headers) == 0 {
		b.Headers = d.Headers
	}
	if b.Assertions == nil {
		b.Assertions = d.Assertions
	}
	return b
}

// storeSet shares one open name store per path between bindings.
type storeSet struct {
	stores map[string]naming.Store
}

func newStoreSet() *storeSet {
	return &storeSet{stores: make(map[string]naming.Store)}
}

func (s *storeSet) open(path string) (naming.Store, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if st, ok := s.stores[abs]; ok {
		return st, nil
	}
	st, err := naming.OpenStore(abs)
	if err != nil {
		return nil, fmt.Errorf("open name store: %w", err)
	}
	s.stores[abs] = st
	return st, nil
}

func (s *storeSet) Close() error {
	var errs []error
	for _, st := range s.stores {
		errs = append(errs, st.Close())
	}
	return errors.Join(errs...)
}

// request turns b into a pipeline request. Relative paths are resolved
// against dir.
func (b bindingConfig) request(ctx context.Context, dir string, stores *storeSet, maxDiagnostics int) (*pipeline.Request, error) {
	if len(b.Inputs) == 0 {
		return nil, fmt.Errorf("binding %q: no inputs", b.Name)
	}
	rel := func(p string) string {
		if p == "" || p == "-" || filepath.IsAbs(p) || dir == "" {
			return p
		}
		return filepath.Join(dir, p)
	}

	format, err := stream.ParseFormat(b.Format)
	if err != nil {
		return nil, err
	}
	var inputs []pipeline.Input
	for _, in := range b.Inputs {
		inputs = append(inputs, pipeline.Input{Path: rel(in), Format: format})
	}
	for _, def := range b.Defines {
		inputs = append(inputs, pipeline.Input{Path: rel(def), Format: stream.FormatDefines})
	}

	target, err := layout.ParseTarget(b.Target)
	if err != nil {
		return nil, err
	}
	style, ok := naming.ParseStyle(b.Naming)
	if !ok {
		return nil, fmt.Errorf("unknown naming style %q (expected exported|verbatim)", b.Naming)
	}
	headers := make([]string, 0, len(b.Headers))
	for _, h := range b.Headers {
		headers = append(headers, rel(h))
	}
	source, err := docSource(ctx, b.Docs, headers)
	if err != nil {
		return nil, err
	}

	cfg := pipeline.Config{
		Package:        b.Package,
		Library:        b.Library,
		Target:         target,
		Assertions:     b.Assertions != nil && *b.Assertions,
		Naming:         style,
		Docs:           source,
		MaxDiagnostics: maxDiagnostics,
	}
	if b.Names != "" {
		store, err := stores.open(rel(b.Names))
		if err != nil {
			return nil, err
		}
		cfg.Store = store
	}
	return &pipeline.Request{
		Name:   b.Name,
		Inputs: inputs,
		Output: rel(b.Output),
		Config: cfg,
	}, nil
}

// docSource builds the docstring chain named by kinds. With no kinds the
// stream's own documentation is used, followed by header comments when
// headers are given.
func docSource(ctx context.Context, kinds []string, headers []string) (docs.Source, error) {
	if len(kinds) == 0 {
		kinds = []string{"frontend"}
		if len(headers) > 0 {
			kinds = append(kinds, "headers")
		}
	}
	var chain docs.Chain
	for _, kind := range kinds {
		switch strings.ToLower(strings.TrimSpace(kind)) {
		case "none":
			return nil, nil
		case "frontend":
			chain = append(chain, docs.FrontEnd{})
		case "prototypes":
			chain = append(chain, docs.Prototypes{})
		case "headers":
			if len(headers) == 0 {
				return nil, fmt.Errorf("docs source %q needs header files", kind)
			}
			h, err := docs.ParseHeaders(ctx, headers...)
			if err != nil {
				return nil, err
			}
			chain = append(chain, h)
		default:
			return nil, fmt.Errorf("unknown docs source %q (expected frontend|prototypes|headers|none)", kind)
		}
	}
	return chain, nil
}
