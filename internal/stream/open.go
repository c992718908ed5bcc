package stream

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format names a declaration stream encoding.
type Format string

const (
	FormatAuto    Format = ""
	FormatNDJSON  Format = "ndjson"
	FormatMsgpack Format = "msgpack"
	FormatCastXML Format = "castxml"
	FormatDefines Format = "defines"
)

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatAuto, FormatNDJSON, FormatMsgpack, FormatCastXML, FormatDefines:
		return f, nil
	case "auto":
		return FormatAuto, nil
	case "jsonl", "json":
		return FormatNDJSON, nil
	case "xml", "gccxml":
		return FormatCastXML, nil
	}
	return FormatAuto, fmt.Errorf("unknown stream format %q (expected ndjson|msgpack|castxml|defines)", s)
}

// DetectFormat picks a format from the file extension.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".msgpack", ".mp":
		return FormatMsgpack
	case ".xml":
		return FormatCastXML
	case ".defines", ".dm", ".h":
		return FormatDefines
	}
	return FormatNDJSON
}

// Decode reads r in the given format; FormatAuto means NDJSON.
func Decode(r io.Reader, format Format, name string) ([]Entry, error) {
	switch format {
	case FormatMsgpack:
		return DecodeMsgpack(r)
	case FormatCastXML:
		return ReadCastXML(r)
	case FormatDefines:
		return ReadDefines(r, name)
	}
	return DecodeNDJSON(r)
}

// ReadFile opens path and decodes it, detecting the format when needed.
func ReadFile(path string, format Format) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if format == FormatAuto {
		format = DetectFormat(path)
	}
	entries, err := Decode(f, format, filepath.Base(path))
	if err != nil {
		return entries, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}
