package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizeGrouper_DropsSingletons(t *testing.T) {
	g := NewSizeGrouper()
	g.Add(FileRecord{Path: "/a", Size: 100})
	g.Add(FileRecord{Path: "/b", Size: 100})
	g.Add(FileRecord{Path: "/c", Size: 200})

	assert.Equal(t, 3, g.Total())

	cands := g.Candidates()
	assert.Len(t, cands, 2)
	for _, rec := range cands {
		assert.Equal(t, int64(100), rec.Size)
	}
}

func TestSizeGrouper_Empty(t *testing.T) {
	g := NewSizeGrouper()
	assert.Equal(t, 0, g.Total())
	assert.Empty(t, g.Candidates())
}

func TestSizeGrouper_KeepsAllBucketMembers(t *testing.T) {
	g := NewSizeGrouper()
	for _, p := range []string{"/a", "/b", "/c", "/d"} {
		g.Add(FileRecord{Path: p, Size: 42})
	}
	assert.Len(t, g.Candidates(), 4)
}
