package dedup

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, e *Enumerator, roots []string) []FileRecord {
	t.Helper()
	var recs []FileRecord
	err := e.Each(context.Background(), roots, func(rec FileRecord) error {
		recs = append(recs, rec)
		return nil
	})
	require.NoError(t, err)
	sort.Slice(recs, func(i, j int) bool { return recs[i].Path < recs[j].Path })
	return recs
}

func paths(recs []FileRecord) []string {
	var out []string
	for _, r := range recs {
		out = append(out, filepath.Base(r.Path))
	}
	return out
}

func TestEnumerator_WalksTree(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, writeFile(filepath.Join(root, "a.txt"), []byte("aaa")))
	require.NoError(t, writeFile(filepath.Join(root, "sub", "b.txt"), []byte("bbbb")))

	e := NewEnumerator(Config{})
	recs := collect(t, e, []string{root})

	require.Len(t, recs, 2)
	assert.Equal(t, []string{"a.txt", "b.txt"}, paths(recs))
	assert.Equal(t, int64(3), recs[0].Size)
	assert.NotZero(t, recs[0].ModTime)
}

func TestEnumerator_SizeBounds(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, writeFile(filepath.Join(root, "tiny.txt"), []byte("x")))
	require.NoError(t, writeFile(filepath.Join(root, "mid.txt"), []byte("xxxxx")))
	require.NoError(t, writeFile(filepath.Join(root, "big.txt"), make([]byte, 100)))

	e := NewEnumerator(Config{MinSize: 2, MaxSize: 50})
	recs := collect(t, e, []string{root})

	assert.Equal(t, []string{"mid.txt"}, paths(recs))
	assert.Equal(t, 2, e.Skipped())
}

func TestEnumerator_SkipsHidden(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, writeFile(filepath.Join(root, "seen.txt"), []byte("data")))
	require.NoError(t, writeFile(filepath.Join(root, ".hidden"), []byte("data")))
	require.NoError(t, writeFile(filepath.Join(root, ".hiddendir", "inside.txt"), []byte("data")))

	e := NewEnumerator(Config{SkipHidden: true})
	recs := collect(t, e, []string{root})

	assert.Equal(t, []string{"seen.txt"}, paths(recs))
}

func TestEnumerator_ExcludePatterns(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, writeFile(filepath.Join(root, "keep.txt"), []byte("data")))
	require.NoError(t, writeFile(filepath.Join(root, "skip.log"), []byte("data")))
	require.NoError(t, writeFile(filepath.Join(root, "node_modules", "dep.js"), []byte("data")))

	e := NewEnumerator(Config{ExcludePatterns: []string{"*.log", "node_modules/"}})
	recs := collect(t, e, []string{root})

	assert.Equal(t, []string{"keep.txt"}, paths(recs))
}

func TestEnumerator_DupeignoreFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, writeFile(filepath.Join(root, ".dupeignore"), []byte("# comment\ncache/\n*.bak\n")))
	require.NoError(t, writeFile(filepath.Join(root, "keep.txt"), []byte("data")))
	require.NoError(t, writeFile(filepath.Join(root, "old.bak"), []byte("data")))
	require.NoError(t, writeFile(filepath.Join(root, "cache", "deep", "blob"), []byte("data")))

	e := NewEnumerator(Config{SkipHidden: true})
	recs := collect(t, e, []string{root})

	assert.Equal(t, []string{"keep.txt"}, paths(recs))
}

func TestEnumerator_Restartable(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, writeFile(filepath.Join(root, "a.txt"), []byte("aaa")))
	require.NoError(t, writeFile(filepath.Join(root, "b.txt"), []byte("bbb")))

	e := NewEnumerator(Config{})
	first := collect(t, e, []string{root})
	second := collect(t, e, []string{root})

	assert.Equal(t, first, second)
}

func TestEnumerator_SymlinkCycle(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	require.NoError(t, writeFile(filepath.Join(sub, "f.txt"), []byte("data")))
	// sub/loop points back at root: following it must not recurse forever
	// or yield duplicates.
	require.NoError(t, os.Symlink(root, filepath.Join(sub, "loop")))

	e := NewEnumerator(Config{FollowSymlinks: true})
	recs := collect(t, e, []string{root})

	assert.Equal(t, []string{"f.txt"}, paths(recs))
}

func TestEnumerator_SymlinksSkippedByDefault(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "real.txt")
	require.NoError(t, writeFile(target, []byte("data")))
	require.NoError(t, os.Symlink(target, filepath.Join(root, "link.txt")))

	e := NewEnumerator(Config{})
	recs := collect(t, e, []string{root})

	assert.Equal(t, []string{"real.txt"}, paths(recs))
}

func TestEnumerator_MissingRootFails(t *testing.T) {
	e := NewEnumerator(Config{})
	err := e.Each(context.Background(), []string{"/nonexistent/dupekit-test"}, func(FileRecord) error { return nil })
	assert.Error(t, err)
}

func TestEnumerator_CancelStopsWalk(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, writeFile(filepath.Join(root, "a.txt"), []byte("aaa")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewEnumerator(Config{})
	err := e.Each(ctx, []string{root}, func(FileRecord) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
