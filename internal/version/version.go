// Package version holds build information injected at release time.
package version

import (
	"fmt"
	"runtime"
)

// Set via ldflags by GoReleaser.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info returns the full version line printed by `fhirsql version`.
func Info() string {
	return fmt.Sprintf("fhirsql %s (commit: %s, built: %s) %s",
		Version, Commit, Date, runtime.Version())
}

// Short returns just the version string.
func Short() string {
	return Version
}
