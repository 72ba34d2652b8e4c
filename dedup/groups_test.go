package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func groupOf(files ...GroupFile) *DuplicateGroup {
	g := &DuplicateGroup{FullHash: "h", Size: 100, Files: files}
	return g
}

func gf(path string, mtime int64) GroupFile {
	return GroupFile{FileRecord: FileRecord{Path: path, Size: 100, ModTime: mtime, FullHash: "h"}}
}

func TestApplyStrategy_KeepOldest(t *testing.T) {
	g := groupOf(gf("/a", 20), gf("/b", 10), gf("/c", 30))
	require.NoError(t, ApplyStrategy(g, KeepOldest))

	assert.True(t, g.Files[0].MarkedForRemoval)
	assert.False(t, g.Files[1].MarkedForRemoval, "mtime 10 is the keeper")
	assert.True(t, g.Files[2].MarkedForRemoval)
	assert.Equal(t, 1, g.UnmarkedCount())
}

func TestApplyStrategy_KeepNewest(t *testing.T) {
	g := groupOf(gf("/a", 20), gf("/b", 10), gf("/c", 30))
	require.NoError(t, ApplyStrategy(g, KeepNewest))

	assert.False(t, g.Files[2].MarkedForRemoval, "mtime 30 is the keeper")
	assert.Equal(t, 1, g.UnmarkedCount())
}

func TestApplyStrategy_TimeTieBreaksOnPathLength(t *testing.T) {
	g := groupOf(gf("/long/path/file", 10), gf("/short", 10), gf("/medium/f", 10))
	require.NoError(t, ApplyStrategy(g, KeepOldest))

	assert.False(t, g.Files[1].MarkedForRemoval, "shortest path wins the tie")
	assert.Equal(t, 1, g.UnmarkedCount())
}

func TestApplyStrategy_FullTieBreaksLexicographic(t *testing.T) {
	g := groupOf(gf("/b1", 10), gf("/a1", 10), gf("/c1", 10))
	require.NoError(t, ApplyStrategy(g, KeepOldest))

	assert.False(t, g.Files[1].MarkedForRemoval, "equal times and lengths fall back to path order")
}

func TestApplyStrategy_KeepShortestPath(t *testing.T) {
	g := groupOf(gf("/deeply/nested/file.txt", 10), gf("/f.txt", 99), gf("/mid/file.txt", 50))
	require.NoError(t, ApplyStrategy(g, KeepShortestPath))

	assert.False(t, g.Files[1].MarkedForRemoval)
	assert.Equal(t, 1, g.UnmarkedCount())
}

func TestApplyStrategy_KeepFirstAlphabetical(t *testing.T) {
	g := groupOf(gf("/Zebra.txt", 10), gf("/apple.txt", 99), gf("/Mango.txt", 50))
	require.NoError(t, ApplyStrategy(g, KeepFirstAlphabetical))

	assert.False(t, g.Files[1].MarkedForRemoval, "case-insensitive first")
	assert.Equal(t, 1, g.UnmarkedCount())
}

func TestApplyStrategy_EveryStrategyLeavesOneUnmarked(t *testing.T) {
	for _, s := range []Strategy{KeepOldest, KeepNewest, KeepShortestPath, KeepFirstAlphabetical} {
		g := groupOf(gf("/aa", 10), gf("/bbb", 10), gf("/c", 20), gf("/dddd", 5))
		require.NoError(t, ApplyStrategy(g, s))
		assert.Equal(t, 1, g.UnmarkedCount(), "strategy %s", s)
	}
}

func TestApplyStrategy_SingleMember(t *testing.T) {
	g := groupOf(gf("/only", 10))
	require.NoError(t, ApplyStrategy(g, KeepOldest))
	assert.Equal(t, 1, g.UnmarkedCount())
}

func TestMarkForRemoval_RefusesLastUnmarked(t *testing.T) {
	g := groupOf(gf("/a", 10), gf("/b", 20))
	require.NoError(t, MarkForRemoval(g, 0))
	assert.ErrorIs(t, MarkForRemoval(g, 1), ErrAllMarked)
	assert.Equal(t, 1, g.UnmarkedCount())
}

func TestMarkForRemoval_Unmark(t *testing.T) {
	g := groupOf(gf("/a", 10), gf("/b", 20))
	require.NoError(t, MarkForRemoval(g, 0))
	require.NoError(t, Unmark(g, 0))
	assert.Equal(t, 2, g.UnmarkedCount())

	require.NoError(t, MarkForRemoval(g, 1))
	assert.Equal(t, []string{"/b"}, g.MarkedPaths())
}

func TestBuildGroups_DiscardsSingletons(t *testing.T) {
	recs := []FileRecord{
		{Path: "/a", Size: 100, FullHash: "h1"},
		{Path: "/b", Size: 100, FullHash: "h1"},
		{Path: "/c", Size: 100, FullHash: "h2"},
	}
	groups := BuildGroups(recs)
	require.Len(t, groups, 1)
	assert.Equal(t, "h1", groups[0].FullHash)
	assert.Len(t, groups[0].Files, 2)
}

func TestBuildGroups_OrdersMembersByPath(t *testing.T) {
	recs := []FileRecord{
		{Path: "/z", Size: 100, FullHash: "h1"},
		{Path: "/a", Size: 100, FullHash: "h1"},
		{Path: "/m", Size: 100, FullHash: "h1"},
	}
	groups := BuildGroups(recs)
	require.Len(t, groups, 1)
	assert.Equal(t, "/a", groups[0].Files[0].Path)
	assert.Equal(t, "/m", groups[0].Files[1].Path)
	assert.Equal(t, "/z", groups[0].Files[2].Path)
}

func TestBuildGroups_SkipsUnhashed(t *testing.T) {
	recs := []FileRecord{
		{Path: "/a", Size: 100, FullHash: "h1"},
		{Path: "/b", Size: 100, FullHash: "h1"},
		{Path: "/c", Size: 100}, // full hash failed upstream
	}
	groups := BuildGroups(recs)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Files, 2)
}

func TestWastedSpace(t *testing.T) {
	g := groupOf(gf("/a", 1), gf("/b", 2), gf("/c", 3))
	assert.Equal(t, int64(300), g.TotalSize())
	assert.Equal(t, int64(200), g.WastedSpace())
}

func TestSortByWastedSpace_DescendingAndStable(t *testing.T) {
	small := &DuplicateGroup{FullHash: "s", Size: 10, Files: []GroupFile{gf("/a", 1), gf("/b", 1)}}
	big := &DuplicateGroup{FullHash: "b", Size: 1000, Files: []GroupFile{gf("/c", 1), gf("/d", 1)}}
	tieA := &DuplicateGroup{FullHash: "t1", Size: 10, Files: []GroupFile{gf("/e", 1), gf("/f", 1)}}

	first := []*DuplicateGroup{small, big, tieA}
	SortByWastedSpace(first)
	assert.Same(t, big, first[0])

	second := []*DuplicateGroup{tieA, small, big}
	SortByWastedSpace(second)
	assert.Equal(t, first, second, "ordering must not depend on input order")
}

func TestTotalWasted(t *testing.T) {
	groups := []*DuplicateGroup{
		{Size: 10, Files: []GroupFile{gf("/a", 1), gf("/b", 1)}},
		{Size: 100, Files: []GroupFile{gf("/c", 1), gf("/d", 1), gf("/e", 1)}},
	}
	assert.Equal(t, int64(210), TotalWasted(groups))
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("keep-newest")
	require.NoError(t, err)
	assert.Equal(t, KeepNewest, s)

	_, err = ParseStrategy("bogus")
	assert.Error(t, err)
}
