// Package buildinfo provides build-time version information shared by the
// replay and fingerprint binaries. These variables are set during the
// build process via linker flags.
package buildinfo

var (
	// Version is the semantic version of the binary (e.g. "1.0.0").
	// Set at build time via -ldflags. Defaults to "dev" if not set.
	Version = "dev"

	// Commit is the git commit hash of the build.
	// Set at build time via -ldflags. Defaults to "unknown" if not set.
	Commit = "unknown"

	// Date is the build timestamp in RFC3339 format.
	// Set at build time via -ldflags. Defaults to "unknown" if not set.
	Date = "unknown"
)
