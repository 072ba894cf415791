// Package version holds build metadata set with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Set at build time:
//
//	-ldflags "-X github.com/kylemclaren/claude-office/internal/version.Version=v1.2.0"
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Short returns just the version string.
func Short() string {
	return Version
}

// Info returns the version line printed by `claude-office version`.
func Info() string {
	return fmt.Sprintf("claude-office %s (commit %s, built %s, %s/%s)", Version, Commit, Date, runtime.GOOS, runtime.GOARCH)
}

// UserAgent is sent with outgoing HTTP requests.
func UserAgent() string {
	return "claude-office/" + Version
}
