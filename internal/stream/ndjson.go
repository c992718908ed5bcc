package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

const maxLine = 64 << 20

// DecodeNDJSON reads one JSON entry per line. Blank lines are ignored. A line
// that does not decode becomes a Malformed entry; decoding continues.
func DecodeNDJSON(r io.Reader) ([]Entry, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLine)
	var (
		out  []Entry
		line int
	)
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			out = append(out, Entry{Malformed: fmt.Sprintf("line %d: %v", line, err)})
			continue
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("read declaration stream: %w", err)
	}
	return out, nil
}

// EncodeNDJSON writes entries one per line. Malformed entries are dropped.
func EncodeNDJSON(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for i := range entries {
		if entries[i].Malformed != "" {
			continue
		}
		if err := enc.Encode(&entries[i]); err != nil {
			return fmt.Errorf("encode entry %d: %w", i, err)
		}
	}
	return bw.Flush()
}
