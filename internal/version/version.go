package version

import "runtime"

// Set at build time via -ldflags.
var (
	Version   = "dev"
	Commit    = "none"
	GoVersion = runtime.Version()
)
