// Package version holds build information injected at link time:
//
//	go build -ldflags "-X gameforge/pkg/version.Version=v0.3.0 -X gameforge/pkg/version.Commit=$(git rev-parse --short HEAD)"
package version

import "fmt"

//nolint:gochecknoglobals // set via ldflags
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String formats the build information for --version.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date)
}
