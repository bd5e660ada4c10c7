// Package version carries the build identity stamped into every follow-up
// service binary via -ldflags, shown by each service's version subcommand.
package version

import "runtime"

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// GoVersion returns the Go runtime version string.
func GoVersion() string { return runtime.Version() }
