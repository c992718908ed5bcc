package emit

import "strings"

type helperKind uint8

const (
	helperBits helperKind = iota
	helperSignExtend
	helperBoolBits
	helperCString
	helperGoString
	helperFFIElems
)

var helperNames = map[helperKind][]string{
	helperBits:       {"getBits", "setBits"},
	helperSignExtend: {"signExtend"},
	helperBoolBits:   {"boolBits"},
	helperCString:    {"cString"},
	helperGoString:   {"goString"},
	helperFFIElems:   {"ffiElems", "ffiRepeat"},
}

var helperImports = map[helperKind][]string{
	helperGoString: {"unsafe"},
}

var helperSource = map[helperKind]string{
	helperBits: `
// getBits reads width bits starting at bit off of little-endian storage.
func getBits(b []byte, off, width int) uint64 {
	var v uint64
	for i := 0; i < width; i++ {
		bit := off + i
		if b[bit/8]&(1<<(bit%8)) != 0 {
			v |= 1 << i
		}
	}
	return v
}

// setBits writes the low width bits of v starting at bit off.
func setBits(b []byte, off, width int, v uint64) {
	for i := 0; i < width; i++ {
		bit := off + i
		if v&(1<<i) != 0 {
			b[bit/8] |= 1 << (bit % 8)
		} else {
			b[bit/8] &^= 1 << (bit % 8)
		}
	}
}
`,
	helperSignExtend: `
func signExtend(v uint64, width int) int64 {
	shift := 64 - width
	return int64(v<<shift) >> shift
}
`,
	helperBoolBits: `
func boolBits(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}
`,
	helperCString: `
// cString copies s into a NUL-terminated buffer.
func cString(s string) *byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return &b[0]
}
`,
	helperGoString: `
// goString copies a NUL-terminated C string.
func goString(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Add(unsafe.Pointer(p), n)) != 0 {
		n++
	}
	return string(unsafe.Slice(p, n))
}
`,
	helperFFIElems: `
func ffiRepeat(t *ffi.Type, n int) []*ffi.Type {
	out := make([]*ffi.Type, n)
	for i := range out {
		out[i] = t
	}
	return out
}

func ffiElems(groups ...[]*ffi.Type) []*ffi.Type {
	var out []*ffi.Type
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
`,
}

func (e *Emitter) helper(h helperKind) {
	e.helpers[h] = true
	for _, pkg := range helperImports[h] {
		e.use(pkg)
	}
}

func (e *Emitter) writeHelpers(w *strings.Builder) {
	for h := helperBits; h <= helperFFIElems; h++ {
		if e.helpers[h] {
			w.WriteString(helperSource[h])
		}
	}
}
