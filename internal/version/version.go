// Package version carries build metadata set with -ldflags "-X".
package version

// Overwritten at link time, e.g.
// -X github.com/kailas-cloud/solango/internal/version.Version=v1.2.0
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
