package dedup

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIgnoreRules_Globs(t *testing.T) {
	ir := NewIgnoreRules([]string{"*.tmp", "node_modules"})

	assert.True(t, ir.Matches("build.tmp", false))
	assert.True(t, ir.Matches("node_modules", true))
	assert.False(t, ir.Matches("main.go", false))
	assert.False(t, ir.Matches("tmp", false))
}

func TestIgnoreRules_DirOnlyPattern(t *testing.T) {
	ir := NewIgnoreRules([]string{"cache/"})

	assert.True(t, ir.Matches("cache", true))
	assert.False(t, ir.Matches("cache", false))
}

func TestIgnoreRules_LoadIgnoreFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".dupeignore")
	require.NoError(t, writeFile(path, []byte("# backups\n*.bak\n\nvendor/\n")))

	ir := NewIgnoreRules(nil)
	ir.LoadIgnoreFile(path)

	assert.True(t, ir.Matches("old.bak", false))
	assert.True(t, ir.Matches("vendor", true))
	assert.False(t, ir.Matches("vendor", false))
	assert.False(t, ir.Matches("# backups", false))
}

func TestIgnoreRules_MissingFileIsNoop(t *testing.T) {
	ir := NewIgnoreRules([]string{"*.tmp"})
	ir.LoadIgnoreFile(filepath.Join(t.TempDir(), "nope"))
	assert.True(t, ir.Matches("a.tmp", false))
	assert.False(t, ir.Matches("a.txt", false))
}

func TestIsSystemDir(t *testing.T) {
	assert.True(t, isSystemDir("proc"))
	assert.True(t, isSystemDir("$RECYCLE.BIN"))
	assert.False(t, isSystemDir("home"))
}
