package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	origVersion, origCommit := Version, Commit
	defer func() {
		Version = origVersion
		Commit = origCommit
	}()

	tests := []struct {
		name    string
		version string
		commit  string
		want    string
	}{
		{name: "unknown commit", version: "1.0.0", commit: "unknown", want: "1.0.0"},
		{name: "short commit", version: "1.0.0", commit: "abc", want: "1.0.0"},
		{name: "exactly 7 chars", version: "2.0.0", commit: "1234567", want: "2.0.0"},
		{name: "full hash", version: "1.0.0", commit: "abc1234567890", want: "1.0.0 (abc1234)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Version = tt.version
			Commit = tt.commit
			if got := Info(); got != tt.want {
				t.Errorf("Info() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFull(t *testing.T) {
	origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
	defer func() {
		Version = origVersion
		Commit = origCommit
		BuildDate = origBuildDate
	}()

	Version = "1.2.3"
	Commit = "abcdef123456"
	BuildDate = "2024-01-15"

	got := Full()
	for _, part := range []string{"tagvis 1.2.3", "Commit: abcdef123456", "Built: 2024-01-15", "Go: go"} {
		if !strings.Contains(got, part) {
			t.Errorf("Full() = %q, want to contain %q", got, part)
		}
	}
}

func TestDefaultValues(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if parts := strings.Split(Version, "."); len(parts) < 2 {
		t.Errorf("Version %q doesn't appear to be semver", Version)
	}
}
