package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withVersion(t *testing.T, version, commit string) {
	t.Helper()
	origVersion, origCommit := Version, Commit
	t.Cleanup(func() { Version, Commit = origVersion, origCommit })
	Version, Commit = version, commit
}

func TestGetInfo(t *testing.T) {
	info := GetInfo()

	assert.NotEmpty(t, info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestString(t *testing.T) {
	withVersion(t, "1.2.3", "unknown")
	assert.Contains(t, String(), "mediatool version 1.2.3")
	assert.NotContains(t, String(), "commit:")

	withVersion(t, "1.2.3", "0123456789abcdef")
	assert.Contains(t, String(), "commit: 01234567")
}

func TestShort(t *testing.T) {
	withVersion(t, "1.0.0", "unknown")
	assert.Equal(t, "1.0.0", Short())

	withVersion(t, "1.0.0", "deadbeefcafe")
	assert.Equal(t, "1.0.0 (deadbeef)", Short())

	withVersion(t, "1.0.0", "abc")
	assert.Equal(t, "1.0.0", Short(), "short commits are ignored")
}

func TestIsSnapshot(t *testing.T) {
	tests := []struct {
		version  string
		expected bool
	}{
		{"dev", true},
		{"1.0.0", false},
		{"1.0.1-SNAPSHOT.abc1234", true},
		{"1.2.3-alpha.1", false},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			withVersion(t, tt.version, "unknown")
			assert.Equal(t, tt.expected, IsSnapshot())
		})
	}
}
