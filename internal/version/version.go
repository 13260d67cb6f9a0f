// Package version holds build information for tagvis.
package version

import "runtime"

// Overridden at build time:
// go build -ldflags "-X tagvis/internal/version.Version=0.3.0 -X tagvis/internal/version.Commit=abc123"
var (
	// Version is the semantic version of tagvis
	Version = "0.3.0"

	// Commit is the git commit hash (set at build time)
	Commit = "unknown"

	// BuildDate is the build timestamp (set at build time)
	BuildDate = "unknown"
)

// Info returns the version with a short commit suffix when one is known.
func Info() string {
	if Commit != "unknown" && len(Commit) > 7 {
		return Version + " (" + Commit[:7] + ")"
	}
	return Version
}

// Full returns the multi-line block printed by `tagvis version`.
func Full() string {
	return "tagvis " + Version + "\n" +
		"Commit: " + Commit + "\n" +
		"Built: " + BuildDate + "\n" +
		"Go: " + runtime.Version()
}
