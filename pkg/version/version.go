// Package version exposes build metadata injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const appName = "greenbot"

// UserAgent is sent with every GREEN-API request.
func UserAgent() string {
	return fmt.Sprintf("%s/%s (%s/%s)", appName, Version, runtime.GOOS, runtime.GOARCH)
}

// GetFullVersion returns a user-facing build string.
func GetFullVersion() string {
	if Version == "dev" {
		return fmt.Sprintf("%s/%s (commit: %s, built: %s)", appName, Version, GitCommit, BuildTime)
	}
	return fmt.Sprintf("%s/%s", appName, Version)
}
