// Package build exposes the version stamped into the binary.
package build

import (
	"fmt"
	"log/slog"
)

// Set with -ldflags "-X github.com/shaharia-lab/newsletter/internal/build.Version=...".
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

// String renders the build for the version command.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, CommitSHA, BuildDate)
}

// Fields returns the build as the key set served by GET /api/version.
func Fields() map[string]string {
	return map[string]string{
		"version":    Version,
		"commit":     CommitSHA,
		"build_date": BuildDate,
	}
}

// LogAttrs returns the build as slog attributes for startup records.
func LogAttrs() []any {
	return []any{
		slog.String("version", Version),
		slog.String("commit", CommitSHA),
		slog.String("build_date", BuildDate),
	}
}
