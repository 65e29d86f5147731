// Package version holds build metadata, overridable via ldflags.
package version

var (
	Version = "dev"
	Commit  = "unknown"
)

// String returns the human-readable version line.
func String() string {
	return Version + " (" + Commit + ")"
}
