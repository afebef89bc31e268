package textsearch

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetInit gives each test a fresh Init and restores the process logger
// and error writer afterwards.
func resetInit(t *testing.T) *bytes.Buffer {
	t.Helper()
	prevLogger := slog.Default()
	prevOut := initErrOut

	var errOut bytes.Buffer
	initOnce = sync.Once{}
	initCleanup = nil
	initErrOut = &errOut

	t.Cleanup(func() {
		Shutdown()
		initOnce = sync.Once{}
		initErrOut = prevOut
		slog.SetDefault(prevLogger)
	})
	return &errOut
}

func TestInit_WritesLogFileOnce(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	errOut := resetInit(t)

	// When: Init runs twice
	Init()
	first := slog.Default()
	Init()

	// Then: the second call changes nothing
	assert.Same(t, first, slog.Default())
	assert.Empty(t, errOut.String())

	slog.Warn("init_check")
	Shutdown()

	data, err := os.ReadFile(filepath.Join(home, ".textsearch", "logs", "textsearch.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "init_check")
}

func TestInit_UnwritableLogDirIsReported(t *testing.T) {
	// Given: HOME is a regular file, so the log directory cannot exist
	home := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(home, []byte("x"), 0o644))
	t.Setenv("HOME", home)
	errOut := resetInit(t)
	before := slog.Default()

	// When: Init runs
	assert.NotPanics(t, Init)

	// Then: the failure goes to the error writer and logging is unchanged
	assert.Contains(t, errOut.String(), "logging disabled")
	assert.Same(t, before, slog.Default())
}

func TestShutdown_SafeToRepeat(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	resetInit(t)

	Init()

	assert.NotPanics(t, func() {
		Shutdown()
		Shutdown()
	})
}
