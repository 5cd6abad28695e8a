package version

import "fmt"

var (
	// Version is set at build time with -ldflags.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// String formats the build metadata for --version output and /api/status.
func String() string {
	return fmt.Sprintf("roof.report %s (%s, built %s)", Version, GitSHA, BuildTime)
}
