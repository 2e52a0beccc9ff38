// Package version holds the zmx release version, overridable at build time
// with -ldflags "-X zmx/internal/version.Version=...".
package version

// Version is the current zmx release.
var Version = "0.1.0"
