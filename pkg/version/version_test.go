package version

import (
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stamp sets the ldflags variables for one test.
func stamp(t *testing.T, version, commit, date string) {
	t.Helper()
	prev := [3]string{Version, Commit, Date}
	Version, Commit, Date = version, commit, date
	t.Cleanup(func() { Version, Commit, Date = prev[0], prev[1], prev[2] })
}

func TestString_IncludesBuildStamp(t *testing.T) {
	stamp(t, "1.4.0", "abc1234", "2026-01-02T03:04:05Z")

	want := "textsearch 1.4.0 (commit: abc1234, built: 2026-01-02T03:04:05Z, go: " + GoVersion + ")"
	assert.Equal(t, want, String())
}

func TestShort_IsBareVersion(t *testing.T) {
	stamp(t, "1.4.0", "abc1234", "2026-01-02T03:04:05Z")

	assert.Equal(t, "1.4.0", Short())
}

func TestGetInfo_UnstampedBuild(t *testing.T) {
	stamp(t, "dev", "unknown", "unknown")

	// When: encoding the info the way `version --json` does
	data, err := json.Marshal(GetInfo())
	require.NoError(t, err)

	// Then: the platform comes from the running binary
	var got map[string]string
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, map[string]string{
		"version":    "dev",
		"commit":     "unknown",
		"date":       "unknown",
		"go_version": GoVersion,
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
	}, got)
}
