// Package version holds build information set at link time with
// -ldflags "-X github.com/aristath/cointax/internal/version.Version=<v>".
package version

// Version is the running build's version
var Version = "dev"
