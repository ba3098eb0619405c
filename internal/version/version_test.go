package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringWithoutCommit(t *testing.T) {
	orig := GitCommit
	GitCommit = "unknown"
	defer func() { GitCommit = orig }()

	assert.Equal(t, Version, String())
}

func TestStringWithCommit(t *testing.T) {
	origV, origC := Version, GitCommit
	Version = "0.3.0"
	GitCommit = "abcdef1234567890"
	defer func() { Version, GitCommit = origV, origC }()

	assert.Equal(t, "0.3.0-abcdef12", String())
}

func TestStringFullIncludesKnownFields(t *testing.T) {
	origV, origC, origB, origT := Version, GitCommit, GitBranch, BuildTime
	Version = "0.3.0"
	GitCommit = "abcdef1234567890"
	GitBranch = "main"
	BuildTime = "2026-01-01T00:00:00Z"
	defer func() { Version, GitCommit, GitBranch, BuildTime = origV, origC, origB, origT }()

	full := StringFull()
	assert.Contains(t, full, "Version=0.3.0")
	assert.Contains(t, full, "Commit=abcdef12")
	assert.Contains(t, full, "Branch=main")
	assert.Contains(t, full, "BuildTime=2026-01-01T00:00:00Z")
}
