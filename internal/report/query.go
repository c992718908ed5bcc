package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/itchyny/gojq"
)

// Query runs a jq expression over the JSON form of doc, e.g.
// `.runs[].omissions[] | select(.kind == "unresolved") | .name`.
func Query(ctx context.Context, doc Document, expr string) ([]any, error) {
	q, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse report query: %w", err)
	}
	// gojq only accepts plain JSON values
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	var input map[string]any
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}

	var out []any
	iter := q.RunWithContext(ctx, input)
	for {
		v, ok := iter.Next()
		if !ok {
			return out, nil
		}
		if err, isErr := v.(error); isErr {
			return out, fmt.Errorf("report query: %w", err)
		}
		out = append(out, v)
	}
}

// WriteQuery writes the results of Query one per line. Strings are
// written bare, everything else as compact JSON.
func WriteQuery(ctx context.Context, w io.Writer, doc Document, expr string) error {
	values, err := Query(ctx, doc, expr)
	if err != nil {
		return err
	}
	for _, v := range values {
		if s, ok := v.(string); ok {
			if _, err := fmt.Fprintln(w, s); err != nil {
				return err
			}
			continue
		}
		line, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode query result: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", line); err != nil {
			return err
		}
	}
	return nil
}
