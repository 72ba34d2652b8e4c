package dedup

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/samber/lo"
)

// Strategy selects which group member to keep when marking duplicates.
type Strategy int

const (
	// KeepOldest keeps the smallest modified time; ties break on shortest
	// path length, then lexicographic order.
	KeepOldest Strategy = iota
	// KeepNewest keeps the largest modified time; same tie-break.
	KeepNewest
	// KeepShortestPath keeps the fewest path characters; ties break
	// lexicographically.
	KeepShortestPath
	// KeepFirstAlphabetical keeps the path sorting first, case-insensitive.
	KeepFirstAlphabetical
)

func (s Strategy) String() string {
	switch s {
	case KeepOldest:
		return "keep-oldest"
	case KeepNewest:
		return "keep-newest"
	case KeepShortestPath:
		return "keep-shortest-path"
	case KeepFirstAlphabetical:
		return "keep-first-alphabetical"
	}
	return "unknown"
}

// ParseStrategy maps a CLI name to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "keep-oldest", "oldest":
		return KeepOldest, nil
	case "keep-newest", "newest":
		return KeepNewest, nil
	case "keep-shortest-path", "shortest-path":
		return KeepShortestPath, nil
	case "keep-first-alphabetical", "alphabetical":
		return KeepFirstAlphabetical, nil
	}
	return 0, fmt.Errorf("unknown strategy %q", name)
}

// ErrAllMarked is returned when an operation would leave a group with every
// member marked for removal.
var ErrAllMarked = errors.New("cannot mark every member of a group for removal")

// BuildGroups partitions fully-hashed records into duplicate groups,
// discarding singletons. Members are ordered by path so group membership
// and ordering are identical across runs over an unchanged tree.
func BuildGroups(recs []FileRecord) []*DuplicateGroup {
	type key struct {
		size int64
		hash string
	}
	byHash := make(map[key][]FileRecord)
	for _, rec := range recs {
		if !rec.Hashed(FullHash) {
			continue
		}
		k := key{size: rec.Size, hash: rec.FullHash}
		byHash[k] = append(byHash[k], rec)
	}

	var groups []*DuplicateGroup
	for k, members := range byHash {
		if len(members) < 2 {
			continue
		}
		sort.Slice(members, func(i, j int) bool { return members[i].Path < members[j].Path })
		g := &DuplicateGroup{FullHash: k.hash, Size: k.size}
		for _, m := range members {
			g.Files = append(g.Files, GroupFile{FileRecord: m})
		}
		groups = append(groups, g)
	}
	SortByWastedSpace(groups)
	return groups
}

// ApplyStrategy deterministically marks every member except the strategy's
// keeper for removal. Exactly one member is left unmarked.
func ApplyStrategy(g *DuplicateGroup, s Strategy) error {
	if len(g.Files) == 0 {
		return errors.New("empty group")
	}
	keeper := keeperIndex(g, s)
	for i := range g.Files {
		g.Files[i].MarkedForRemoval = i != keeper
	}
	return nil
}

// keeperIndex returns the index of the member the strategy keeps.
func keeperIndex(g *DuplicateGroup, s Strategy) int {
	best := 0
	for i := 1; i < len(g.Files); i++ {
		if prefer(g.Files[i].FileRecord, g.Files[best].FileRecord, s) {
			best = i
		}
	}
	return best
}

// prefer reports whether a should be kept over b under the strategy.
func prefer(a, b FileRecord, s Strategy) bool {
	switch s {
	case KeepOldest:
		if a.ModTime != b.ModTime {
			return a.ModTime < b.ModTime
		}
	case KeepNewest:
		if a.ModTime != b.ModTime {
			return a.ModTime > b.ModTime
		}
	case KeepFirstAlphabetical:
		la, lb := strings.ToLower(a.Path), strings.ToLower(b.Path)
		if la != lb {
			return la < lb
		}
		return a.Path < b.Path
	}
	// KeepShortestPath, and the shared tie-break for the time strategies.
	if len(a.Path) != len(b.Path) {
		return len(a.Path) < len(b.Path)
	}
	return a.Path < b.Path
}

// MarkForRemoval marks one member, refusing to mark the last unmarked one.
func MarkForRemoval(g *DuplicateGroup, i int) error {
	if i < 0 || i >= len(g.Files) {
		return fmt.Errorf("index %d out of range", i)
	}
	if g.Files[i].MarkedForRemoval {
		return nil
	}
	if g.UnmarkedCount() <= 1 {
		return ErrAllMarked
	}
	g.Files[i].MarkedForRemoval = true
	return nil
}

// Unmark clears the removal mark on one member.
func Unmark(g *DuplicateGroup, i int) error {
	if i < 0 || i >= len(g.Files) {
		return fmt.Errorf("index %d out of range", i)
	}
	g.Files[i].MarkedForRemoval = false
	return nil
}

// SortByWastedSpace orders groups descending by reclaimable bytes. Ties
// break on a hash-derived key so the ordering is reproducible across runs.
func SortByWastedSpace(groups []*DuplicateGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		wi, wj := groups[i].WastedSpace(), groups[j].WastedSpace()
		if wi != wj {
			return wi > wj
		}
		return xxhash.Sum64String(groups[i].FullHash) < xxhash.Sum64String(groups[j].FullHash)
	})
}

// TotalWasted sums the reclaimable bytes across all groups.
func TotalWasted(groups []*DuplicateGroup) int64 {
	return lo.SumBy(groups, func(g *DuplicateGroup) int64 { return g.WastedSpace() })
}
