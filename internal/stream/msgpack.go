package stream

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// DecodeMsgpack reads a sequence of msgpack-encoded entries until EOF. The
// json field names are reused as msgpack keys. An entry whose body does not
// fit the Entry shape becomes Malformed; a framing error stops decoding.
func DecodeMsgpack(r io.Reader) ([]Entry, error) {
	dec := msgpack.NewDecoder(bufio.NewReader(r))
	dec.SetCustomStructTag("json")
	var out []Entry
	for {
		raw, err := dec.DecodeRaw()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("read msgpack entry %d: %w", len(out), err)
		}
		var e Entry
		if err := unmarshalEntry(raw, &e); err != nil {
			out = append(out, Entry{Malformed: fmt.Sprintf("entry %d: %v", len(out), err)})
			continue
		}
		out = append(out, e)
	}
}

func unmarshalEntry(raw msgpack.RawMessage, e *Entry) error {
	dec := msgpack.NewDecoder(bytes.NewReader(raw))
	dec.SetCustomStructTag("json")
	return dec.Decode(e)
}

// EncodeMsgpack writes entries as consecutive msgpack values.
func EncodeMsgpack(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	enc := msgpack.NewEncoder(bw)
	enc.SetCustomStructTag("json")
	enc.SetOmitEmpty(true)
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
