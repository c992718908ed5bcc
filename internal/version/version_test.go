package version

import (
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestColoredKeepsComponents(t *testing.T) {
	saved, savedNoColor := Version, color.NoColor
	defer func() { Version, color.NoColor = saved, savedNoColor }()
	color.NoColor = true

	for _, v := range []string{"0.1.0-dev", "1.2.3", "1.0.0-beta.1"} {
		Version = v
		if got := Colored(); got != v {
			t.Errorf("Colored() = %q, want %q", got, v)
		}
	}
	Version = "nightly"
	if got := Colored(); got != "nightly" {
		t.Errorf("Colored() = %q for a non-semantic version", got)
	}
}

func TestStringIncludesCommitAndDate(t *testing.T) {
	savedCommit, savedDate, savedNoColor := GitCommit, BuildDate, color.NoColor
	defer func() { GitCommit, BuildDate, color.NoColor = savedCommit, savedDate, savedNoColor }()
	color.NoColor = true

	GitCommit = "1234567890abcdef1234"
	BuildDate = "2024-01-15T10:30:00Z"
	got := String()
	if !strings.HasPrefix(got, "cbind "+Version) {
		t.Fatalf("String() = %q", got)
	}
	if !strings.Contains(got, "(1234567890ab)") || !strings.HasSuffix(got, "built 2024-01-15T10:30:00Z") {
		t.Fatalf("String() = %q", got)
	}
}
