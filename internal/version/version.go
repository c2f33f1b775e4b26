// Package version holds build information set at link time.
package version

import "fmt"

var (
	// Version is the release version, set with -ldflags "-X".
	Version = "0.1.0-dev"

	// GitCommit is the commit the binary was built from.
	GitCommit = ""
)

// String returns the full version string.
func String() string {
	if GitCommit == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, GitCommit)
}
