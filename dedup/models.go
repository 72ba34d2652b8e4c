package dedup

import "time"

// nowFunc is the time source, replaceable in tests.
var nowFunc = time.Now

// HashKind distinguishes the cheap sampled digest from the whole-file digest.
type HashKind int

const (
	// QuickHash covers a bounded byte sample (head + tail). It prunes
	// non-duplicates cheaply but is not a duplicate proof.
	QuickHash HashKind = iota
	// FullHash covers the entire file content.
	FullHash
)

func (k HashKind) String() string {
	if k == QuickHash {
		return "quick"
	}
	return "full"
}

// FileRecord is a candidate file found during enumeration. Hash fields are
// empty until populated by the Hasher. A record is never mutated after its
// hashes are set; a changed file shows up as a fresh record on the next scan.
type FileRecord struct {
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	ModTime   int64  `json:"mtime"` // unix seconds
	QuickHash string `json:"quickHash,omitempty"`
	FullHash  string `json:"fullHash,omitempty"`
}

// Hashed reports whether the record carries a hash of the given kind.
func (r FileRecord) Hashed(kind HashKind) bool {
	if kind == QuickHash {
		return r.QuickHash != ""
	}
	return r.FullHash != ""
}

// WithHash returns a copy of the record with the given hash set.
func (r FileRecord) WithHash(kind HashKind, hash string) FileRecord {
	if kind == QuickHash {
		r.QuickHash = hash
	} else {
		r.FullHash = hash
	}
	return r
}

// GroupFile is a duplicate group member with its removal mark.
type GroupFile struct {
	FileRecord
	MarkedForRemoval bool `json:"markedForRemoval"`
}

// DuplicateGroup is an ordered set of files sharing identical size and
// full hash. At least one member is always left unmarked.
type DuplicateGroup struct {
	FullHash string      `json:"fullHash"`
	Size     int64       `json:"size"`
	Files    []GroupFile `json:"files"`
}

// TotalSize returns the combined size of all members.
func (g *DuplicateGroup) TotalSize() int64 {
	return g.Size * int64(len(g.Files))
}

// WastedSpace returns the bytes reclaimable by removing all but one member.
func (g *DuplicateGroup) WastedSpace() int64 {
	if len(g.Files) < 2 {
		return 0
	}
	return g.Size * int64(len(g.Files)-1)
}

// UnmarkedCount returns the number of members not marked for removal.
func (g *DuplicateGroup) UnmarkedCount() int {
	n := 0
	for _, f := range g.Files {
		if !f.MarkedForRemoval {
			n++
		}
	}
	return n
}

// MarkedPaths returns the paths of all members marked for removal.
func (g *DuplicateGroup) MarkedPaths() []string {
	var paths []string
	for _, f := range g.Files {
		if f.MarkedForRemoval {
			paths = append(paths, f.Path)
		}
	}
	return paths
}

// ActionOp is the kind of file operation an executor performed.
type ActionOp string

const (
	OpDelete ActionOp = "delete"
	OpMove   ActionOp = "move"
)

// DeleteMode records which deletion mechanism actually ran.
type DeleteMode string

const (
	ModeRecoverable DeleteMode = "recoverable"
	ModePermanent   DeleteMode = "permanent"
)

// ActionRecord is one attempted file operation. Records are append-only:
// they are written to the audit log before the batch call returns and are
// never mutated afterwards.
type ActionRecord struct {
	Op          ActionOp   `json:"op"`
	Source      string     `json:"source"`
	Destination string     `json:"destination,omitempty"`
	Mode        DeleteMode `json:"mode,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
	Success     bool       `json:"success"`
	Error       string     `json:"error,omitempty"`
}
