package dedup

import (
	"fmt"
	"path/filepath"
	"runtime"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/shirou/gopsutil/v4/cpu"
)

// Supported digest algorithms.
const (
	AlgoXXHash = "xxhash"
	AlgoSHA256 = "sha256"
)

// Config holds the scan configuration. Zero values are filled in by
// Validate; DefaultConfig returns a ready-to-use instance.
type Config struct {
	// MinSize and MaxSize bound candidate file sizes in bytes.
	// MaxSize == 0 means unbounded.
	MinSize int64
	MaxSize int64

	// SkipHidden excludes dotfiles and dot-directories.
	SkipHidden bool
	// SkipSystem excludes well-known system directories (proc, sys, dev and
	// friends) when a root happens to contain them.
	SkipSystem bool

	// ExcludePatterns are glob patterns matched against entry base names.
	// A trailing slash marks a directory-only pattern.
	ExcludePatterns []string

	// FollowSymlinks enables traversal into symlinked directories. Cycles
	// are detected via visited (device, inode) pairs either way.
	FollowSymlinks bool

	// Algorithm selects the digest: "xxhash" (default) or "sha256".
	Algorithm string

	// Workers is the hashing pool size. Defaults to the logical CPU count.
	Workers int

	// CacheCapacity bounds the number of hash cache entries.
	CacheCapacity int
	// CachePath is the cache database file. Defaults to
	// ~/.dupekit/hashcache.db.
	CachePath string

	// TrashDir receives recoverably-deleted files. Empty means recoverable
	// deletion is unavailable and deletes are always permanent.
	TrashDir string

	// AuditPath is the append-only action log. Defaults to
	// ~/.dupekit/actions.log.
	AuditPath string
}

const defaultCacheCapacity = 100_000

// DefaultConfig returns a configuration with per-user paths and a worker
// count tied to the machine's logical CPU count.
func DefaultConfig() Config {
	cfg := Config{
		SkipHidden:    true,
		SkipSystem:    true,
		Algorithm:     AlgoXXHash,
		Workers:       logicalCPUs(),
		CacheCapacity: defaultCacheCapacity,
	}
	if home, err := homedir.Dir(); err == nil {
		cfg.CachePath = filepath.Join(home, ".dupekit", "hashcache.db")
		cfg.AuditPath = filepath.Join(home, ".dupekit", "actions.log")
		cfg.TrashDir = filepath.Join(home, ".dupekit", "trash")
	}
	return cfg
}

// Validate fills defaults for zero fields and rejects inconsistent values.
func (c *Config) Validate() error {
	if c.Algorithm == "" {
		c.Algorithm = AlgoXXHash
	}
	if c.Algorithm != AlgoXXHash && c.Algorithm != AlgoSHA256 {
		return fmt.Errorf("unknown hash algorithm %q", c.Algorithm)
	}
	if c.Workers <= 0 {
		c.Workers = logicalCPUs()
	}
	if c.CacheCapacity <= 0 {
		c.CacheCapacity = defaultCacheCapacity
	}
	if c.MinSize < 0 || c.MaxSize < 0 {
		return fmt.Errorf("negative size bound")
	}
	if c.MaxSize > 0 && c.MinSize > c.MaxSize {
		return fmt.Errorf("min size %d exceeds max size %d", c.MinSize, c.MaxSize)
	}
	return nil
}

func logicalCPUs() int {
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}
