// Package version exposes the tool's own version.
package version

import (
	"fmt"
	"runtime"

	goversion "github.com/hashicorp/go-version"
)

var (
	// Version is the tool version, overridable at build time.
	Version = "0.4.0"
	// GitCommit is the git commit hash.
	GitCommit = "unknown"
)

// Tool returns the tool version as a validated semantic version.
func Tool() (*goversion.Version, error) {
	v, err := goversion.NewVersion(Version)
	if err != nil {
		return nil, fmt.Errorf("invalid tool version %q: %w", Version, err)
	}
	return v, nil
}

// String returns a formatted version line for the CLI.
func String() string {
	return fmt.Sprintf("fastmigrate version %s (%s/%s %s)", Version, runtime.GOOS, runtime.GOARCH, runtime.Version())
}
