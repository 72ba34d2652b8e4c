package dedup

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrCacheClosed is returned by operations on a closed cache.
var ErrCacheClosed = errors.New("hash cache is closed")

// cacheEntry is one persisted row: both hash kinds plus the metadata that
// gates their validity. An entry is usable only while its size and mtime
// still equal the file's current values.
type cacheEntry struct {
	size       int64
	mtime      int64
	quick      string
	full       string
	algo       string
	lastAccess int64
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Entries   int64
	Hits      int64
	Misses    int64
	Evictions int64
}

// HashCache maps (path, size, mtime) to quick and full hashes. Reads go
// through a concurrent in-memory LRU layer; all persistence writes are
// serialized through a single writer goroutine so parallel hashing can
// never corrupt the on-disk store. Construct with OpenHashCache and pass
// the instance into the scanner; the caller owns the open/close lifecycle.
type HashCache struct {
	db      *sql.DB
	mem     *lru.Cache[string, cacheEntry]
	algo    string
	maxSize int

	ops    chan func(db *sql.DB)
	wg     sync.WaitGroup
	closed atomic.Bool

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// OpenHashCache opens the cache database at dbPath, bounded to capacity
// entries hashed with algo.
func OpenHashCache(dbPath string, capacity int, algo string) (*HashCache, error) {
	db, err := openCacheDB(dbPath)
	if err != nil {
		return nil, err
	}

	mem, err := lru.New[string, cacheEntry](capacity)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create lru: %w", err)
	}

	c := &HashCache{
		db:      db,
		mem:     mem,
		algo:    algo,
		maxSize: capacity,
		ops:     make(chan func(db *sql.DB), 1024),
	}
	c.wg.Add(1)
	go c.writer()
	return c, nil
}

// writer drains the op channel, executing each persistence write in order.
func (c *HashCache) writer() {
	defer c.wg.Done()
	for op := range c.ops {
		op(c.db)
	}
}

// Get returns the cached hash of the given kind when the stored metadata
// exactly matches the file's current size and mtime. A metadata mismatch
// deletes the entry and reports a miss — stale hashes are never served.
func (c *HashCache) Get(path string, size, mtime int64, kind HashKind) (string, bool) {
	if c.closed.Load() {
		return "", false
	}

	entry, ok := c.mem.Get(path)
	if !ok {
		entry, ok = c.dbGet(path)
		if ok {
			c.mem.Add(path, entry)
		}
	}
	if !ok {
		c.misses.Add(1)
		return "", false
	}

	if entry.size != size || entry.mtime != mtime {
		// Deletion-on-read: the file changed since the hash was computed.
		c.mem.Remove(path)
		c.ops <- func(db *sql.DB) {
			if _, err := db.Exec("DELETE FROM hashes WHERE path = ?", path); err != nil {
				sub("cache").Warn("stale delete failed", "path", path, "err", err)
			}
		}
		c.misses.Add(1)
		if logEnabled(slog.LevelDebug) {
			sub("cache").Debug("stale entry dropped", "path", path)
		}
		return "", false
	}

	if entry.algo != c.algo {
		c.misses.Add(1)
		return "", false
	}

	hash := entry.quick
	if kind == FullHash {
		hash = entry.full
	}
	if hash == "" {
		c.misses.Add(1)
		return "", false
	}

	now := nowFunc().Unix()
	entry.lastAccess = now
	c.mem.Add(path, entry)
	c.ops <- func(db *sql.DB) {
		if _, err := db.Exec("UPDATE hashes SET last_access = ? WHERE path = ?", now, path); err != nil {
			sub("cache").Warn("touch failed", "path", path, "err", err)
		}
	}
	c.hits.Add(1)
	return hash, true
}

// Put inserts or overwrites the hash of the given kind. The other kind is
// preserved when the stored metadata still matches; otherwise the whole
// entry is replaced. Exceeding the capacity evicts the least-recently
// accessed entries.
func (c *HashCache) Put(path string, size, mtime int64, kind HashKind, hash string) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}

	entry := cacheEntry{size: size, mtime: mtime, algo: c.algo, lastAccess: nowFunc().Unix()}
	if prev, ok := c.mem.Get(path); ok && prev.size == size && prev.mtime == mtime && prev.algo == c.algo {
		entry.quick = prev.quick
		entry.full = prev.full
	}
	if kind == QuickHash {
		entry.quick = hash
	} else {
		entry.full = hash
	}
	c.mem.Add(path, entry)

	c.ops <- func(db *sql.DB) {
		_, err := db.Exec(`
			INSERT INTO hashes (path, size, mtime, quick_hash, full_hash, algo, last_access)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				size        = excluded.size,
				mtime       = excluded.mtime,
				quick_hash  = excluded.quick_hash,
				full_hash   = excluded.full_hash,
				algo        = excluded.algo,
				last_access = excluded.last_access
		`, path, entry.size, entry.mtime, entry.quick, entry.full, entry.algo, entry.lastAccess)
		if err != nil {
			sub("cache").Error("upsert failed", "path", path, "err", err)
			return
		}
		c.enforceCapacity(db)
	}
	return nil
}

// enforceCapacity evicts least-recently-accessed rows once the entry count
// exceeds the configured maximum. Runs on the writer goroutine only.
func (c *HashCache) enforceCapacity(db *sql.DB) {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM hashes").Scan(&count); err != nil {
		sub("cache").Warn("count failed", "err", err)
		return
	}
	if count <= c.maxSize {
		return
	}
	c.evictLRU(db, count-c.maxSize)
}

// evictLRU removes the n least-recently-accessed entries.
func (c *HashCache) evictLRU(db *sql.DB, n int) {
	rows, err := db.Query("SELECT path FROM hashes ORDER BY last_access ASC, path ASC LIMIT ?", n)
	if err != nil {
		sub("cache").Warn("evict query failed", "err", err)
		return
	}
	var victims []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err == nil {
			victims = append(victims, p)
		}
	}
	rows.Close()

	for _, p := range victims {
		if _, err := db.Exec("DELETE FROM hashes WHERE path = ?", p); err != nil {
			sub("cache").Warn("evict delete failed", "path", p, "err", err)
			continue
		}
		c.mem.Remove(p)
		c.evictions.Add(1)
	}
	if logEnabled(slog.LevelDebug) {
		sub("cache").Debug("evicted", "count", len(victims))
	}
}

// dbGet loads an entry from the persistent store. A corrupt row is deleted
// and treated as a miss; the hash gets recomputed and overwritten.
func (c *HashCache) dbGet(path string) (cacheEntry, bool) {
	var e cacheEntry
	err := c.db.QueryRow(`
		SELECT size, mtime, quick_hash, full_hash, algo, last_access
		FROM hashes WHERE path = ?
	`, path).Scan(&e.size, &e.mtime, &e.quick, &e.full, &e.algo, &e.lastAccess)
	if err == sql.ErrNoRows {
		return cacheEntry{}, false
	}
	if err != nil {
		sub("cache").Warn("corrupt cache row, dropping", "path", path, "err", err)
		c.ops <- func(db *sql.DB) {
			db.Exec("DELETE FROM hashes WHERE path = ?", path) //nolint:errcheck
		}
		return cacheEntry{}, false
	}
	return e, true
}

// Flush blocks until every queued persistence write has been applied.
func (c *HashCache) Flush() {
	if c.closed.Load() {
		return
	}
	done := make(chan struct{})
	c.ops <- func(*sql.DB) { close(done) }
	<-done
}

// Len returns the number of persisted entries.
func (c *HashCache) Len() (int, error) {
	c.Flush()
	var count int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM hashes").Scan(&count); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return count, nil
}

// Stats returns a snapshot of the cache counters.
func (c *HashCache) Stats() CacheStats {
	n, _ := c.Len()
	return CacheStats{
		Entries:   int64(n),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// Prune removes entries whose files no longer exist on disk and returns
// the number removed.
func (c *HashCache) Prune() (int, error) {
	if c.closed.Load() {
		return 0, ErrCacheClosed
	}
	c.Flush()

	rows, err := c.db.Query("SELECT path FROM hashes")
	if err != nil {
		return 0, fmt.Errorf("list entries: %w", err)
	}
	var gone []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan path: %w", err)
		}
		if _, err := os.Stat(p); os.IsNotExist(err) {
			gone = append(gone, p)
		}
	}
	rows.Close()

	done := make(chan struct{})
	c.ops <- func(db *sql.DB) {
		defer close(done)
		for _, p := range gone {
			if _, err := db.Exec("DELETE FROM hashes WHERE path = ?", p); err != nil {
				sub("cache").Warn("prune delete failed", "path", p, "err", err)
				continue
			}
			c.mem.Remove(p)
		}
	}
	<-done
	sub("cache").Info("pruned dead entries", "count", len(gone))
	return len(gone), nil
}

// Clear drops every entry.
func (c *HashCache) Clear() error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	done := make(chan struct{})
	c.ops <- func(db *sql.DB) {
		defer close(done)
		if _, err := db.Exec("DELETE FROM hashes"); err != nil {
			sub("cache").Error("clear failed", "err", err)
		}
	}
	<-done
	c.mem.Purge()
	return nil
}

// Close flushes pending writes, stops the writer, and closes the store.
func (c *HashCache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.ops)
	c.wg.Wait()
	return c.db.Close()
}
