// Package version carries build-time identification for the swarmchat
// binary, in the shape of the teacher's internal/version package: values
// overridden via -ldflags at build time, with a String/StringFull pair for
// human-readable reporting.
package version

import (
	"fmt"
	"strings"
)

// Version is the orchestrator's released version.
//
//	go build -ldflags "-X github.com/hrygo/swarmchat/internal/version.Version=v0.3.0"
var Version = "0.0.0-dev"

// GitCommit is the git commit hash at build time.
var GitCommit = "unknown"

// GitBranch is the git branch at build time.
var GitBranch = "unknown"

// BuildTime is the build timestamp in RFC3339 format.
var BuildTime = "unknown"

// String returns the version string with a short commit suffix, if known.
func String() string {
	v := Version
	if GitCommit != "" && GitCommit != "unknown" {
		short := GitCommit
		if len(short) > 8 {
			short = short[:8]
		}
		v = fmt.Sprintf("%s-%s", v, short)
	}
	return v
}

// StringFull returns complete build metadata, for the version subcommand
// (the --version flag prints String).
func StringFull() string {
	parts := []string{fmt.Sprintf("Version=%s", Version)}
	if GitCommit != "" && GitCommit != "unknown" {
		short := GitCommit
		if len(short) > 8 {
			short = short[:8]
		}
		parts = append(parts, fmt.Sprintf("Commit=%s", short))
	}
	if GitBranch != "" && GitBranch != "unknown" {
		parts = append(parts, fmt.Sprintf("Branch=%s", GitBranch))
	}
	if BuildTime != "" && BuildTime != "unknown" {
		parts = append(parts, fmt.Sprintf("BuildTime=%s", BuildTime))
	}
	return strings.Join(parts, " ")
}
