package utils

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLog(t *testing.T, dir string) string {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join(dir, "poncho-tune-*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestLogger_WritesKeyValues(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, InitLogger(dir, false))

	Info("example generated", "index", 3, "model", "gpt-4")
	Error("generation failed", "error", errors.New("boom"))
	Debug("hidden at info level", "k", "v")
	Close()

	out := readLog(t, dir)
	assert.Contains(t, out, `"message":"example generated"`)
	assert.Contains(t, out, `"index":3`)
	assert.Contains(t, out, `"model":"gpt-4"`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.NotContains(t, out, "hidden at info level")
}

func TestLogger_DebugLevel(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, InitLogger(dir, true))

	Debug("visible", "odd")
	Close()

	out := readLog(t, dir)
	assert.Contains(t, out, `"message":"visible"`)
	assert.Equal(t, 2, strings.Count(out, "\n"), "init line plus one debug line")
}

func TestLogger_NoopBeforeInit(t *testing.T) {
	assert.NotPanics(t, func() {
		Info("nothing", "a", 1)
		Close()
	})
}
