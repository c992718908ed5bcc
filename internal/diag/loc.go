package diag

import (
	"fmt"
	"strconv"
	"strings"
)

// Loc points at a declaration in the input stream. Entry is the stream
// ordinal, or -1 when the finding is not tied to an entry.
type Loc struct {
	Entry int
	File  string
	Line  uint32
}

// NoLoc is used for findings about the run as a whole.
var NoLoc = Loc{Entry: -1}

// ParseLoc splits a front-end "file:line" location string.
func ParseLoc(entry int, location string) Loc {
	loc := Loc{Entry: entry, File: location}
	idx := strings.LastIndexByte(location, ':')
	if idx <= 0 {
		return loc
	}
	line, err := strconv.ParseUint(location[idx+1:], 10, 32)
	if err != nil {
		return loc
	}
	loc.File = location[:idx]
	loc.Line = uint32(line)
	return loc
}

func (l Loc) IsValid() bool {
	return l.Entry >= 0 || l.File != ""
}

func (l Loc) String() string {
	switch {
	case l.File != "" && l.Line > 0:
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	case l.File != "":
		return l.File
	case l.Entry >= 0:
		return fmt.Sprintf("entry #%d", l.Entry)
	}
	return "-"
}
