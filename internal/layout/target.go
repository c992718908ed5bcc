package layout

import (
	"fmt"
	"strings"

	"cbind/internal/decl"
)

// Target describes the data model of the ABI the front end compiled for.
type Target struct {
	Triple   string // e.g. "x86_64-linux-gnu"
	PtrSize  int    // bytes
	PtrAlign int    // bytes

	LongSize        int
	Int64Align      int // alignment of long long and double inside records
	LongDoubleSize  int
	LongDoubleAlign int
	WCharSize       int
	WCharSigned     bool
	CharSigned      bool
}

func X86_64LinuxGNU() Target {
	return Target{
		Triple:          "x86_64-linux-gnu",
		PtrSize:         8,
		PtrAlign:        8,
		LongSize:        8,
		Int64Align:      8,
		LongDoubleSize:  16,
		LongDoubleAlign: 16,
		WCharSize:       4,
		WCharSigned:     true,
		CharSigned:      true,
	}
}

func I386LinuxGNU() Target {
	return Target{
		Triple:          "i386-linux-gnu",
		PtrSize:         4,
		PtrAlign:        4,
		LongSize:        4,
		Int64Align:      4,
		LongDoubleSize:  12,
		LongDoubleAlign: 4,
		WCharSize:       4,
		WCharSigned:     true,
		CharSigned:      true,
	}
}

func AArch64LinuxGNU() Target {
	return Target{
		Triple:          "aarch64-linux-gnu",
		PtrSize:         8,
		PtrAlign:        8,
		LongSize:        8,
		Int64Align:      8,
		LongDoubleSize:  16,
		LongDoubleAlign: 16,
		WCharSize:       4,
		WCharSigned:     false,
		CharSigned:      false,
	}
}

func X86_64Windows() Target {
	return Target{
		Triple:          "x86_64-windows-msvc",
		PtrSize:         8,
		PtrAlign:        8,
		LongSize:        4,
		Int64Align:      8,
		LongDoubleSize:  8,
		LongDoubleAlign: 8,
		WCharSize:       2,
		WCharSigned:     false,
		CharSigned:      true,
	}
}

// Targets lists the known presets by triple.
func Targets() []Target {
	return []Target{X86_64LinuxGNU(), I386LinuxGNU(), AArch64LinuxGNU(), X86_64Windows()}
}

// ParseTarget resolves a triple or one of its common aliases.
func ParseTarget(s string) (Target, error) {
	if s == "" {
		return X86_64LinuxGNU(), nil
	}
	switch strings.ToLower(s) {
	case "amd64", "x86_64", "linux/amd64":
		return X86_64LinuxGNU(), nil
	case "386", "i386", "i686", "linux/386":
		return I386LinuxGNU(), nil
	case "arm64", "aarch64", "linux/arm64":
		return AArch64LinuxGNU(), nil
	case "windows/amd64", "win64":
		return X86_64Windows(), nil
	}
	for _, t := range Targets() {
		if strings.EqualFold(t.Triple, s) {
			return t, nil
		}
	}
	return Target{}, fmt.Errorf("unknown target %q", s)
}

// ScalarLayout returns the size and alignment of a fundamental type.
func (t Target) ScalarLayout(s decl.Scalar) TypeLayout {
	switch s {
	case decl.ScalarVoid:
		return TypeLayout{Size: 0, Align: 1}
	case decl.ScalarBool, decl.ScalarChar, decl.ScalarSChar, decl.ScalarUChar:
		return scalarLayoutBytes(1)
	case decl.ScalarShort, decl.ScalarUShort, decl.ScalarChar16:
		return scalarLayoutBytes(2)
	case decl.ScalarInt, decl.ScalarUInt, decl.ScalarFloat, decl.ScalarChar32:
		return scalarLayoutBytes(4)
	case decl.ScalarLong, decl.ScalarULong:
		if t.LongSize == 8 {
			return TypeLayout{Size: 8, Align: t.Int64Align}
		}
		return scalarLayoutBytes(t.LongSize)
	case decl.ScalarLongLong, decl.ScalarULongLong, decl.ScalarDouble:
		return TypeLayout{Size: 8, Align: t.Int64Align}
	case decl.ScalarInt128, decl.ScalarUInt128, decl.ScalarFloat128:
		return scalarLayoutBytes(16)
	case decl.ScalarLongDouble:
		return TypeLayout{Size: t.LongDoubleSize, Align: t.LongDoubleAlign}
	case decl.ScalarWChar:
		return scalarLayoutBytes(t.WCharSize)
	}
	return TypeLayout{Size: 0, Align: 1}
}

// IsSigned reports the signedness of an integer scalar on this target.
func (t Target) IsSigned(s decl.Scalar) bool {
	switch s {
	case decl.ScalarChar:
		return t.CharSigned
	case decl.ScalarWChar:
		return t.WCharSigned
	}
	return s.IsInteger() && !s.IsUnsigned()
}
