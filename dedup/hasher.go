package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/panjf2000/ants/v2"
)

const (
	// quickSampleSize is the byte count read from each end of the file for
	// the quick hash.
	quickSampleSize = 8 * 1024
	// hashChunkSize is the streaming read size for full hashes, bounding
	// memory use independent of file size.
	hashChunkSize = 256 * 1024
)

// FileError is a non-fatal per-file failure; the file is excluded from
// further stages.
type FileError struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Hasher computes quick and full hashes, consulting the cache before
// computing and writing results back afterwards. Hashing is idempotent,
// so racing duplicate work wastes CPU but cannot produce wrong results.
type Hasher struct {
	cache   *HashCache
	algo    string
	workers int
}

// NewHasher builds a hasher over the given cache.
func NewHasher(cache *HashCache, algo string, workers int) *Hasher {
	if workers <= 0 {
		workers = 1
	}
	return &Hasher{cache: cache, algo: algo, workers: workers}
}

func newDigest(algo string) hash.Hash {
	if algo == AlgoSHA256 {
		return sha256.New()
	}
	return xxhash.New()
}

// Hash computes (or retrieves) the hash of the given kind for one record
// and returns the record with the hash populated.
func (h *Hasher) Hash(ctx context.Context, rec FileRecord, kind HashKind) (FileRecord, error) {
	if cached, ok := h.cache.Get(rec.Path, rec.Size, rec.ModTime, kind); ok {
		return rec.WithHash(kind, cached), nil
	}

	var sum string
	var err error
	if kind == QuickHash {
		sum, err = h.quickHash(rec.Path, rec.Size)
	} else {
		sum, err = h.fullHash(ctx, rec.Path)
	}
	if err != nil {
		return rec, err
	}

	if err := h.cache.Put(rec.Path, rec.Size, rec.ModTime, kind, sum); err != nil {
		// Cache write failures degrade to recomputation next run.
		sub("hasher").Warn("cache put failed", "path", rec.Path, "err", err)
	}
	return rec.WithHash(kind, sum), nil
}

// quickHash digests the first and last quickSampleSize bytes plus the file
// size. Files small enough that the samples would overlap are hashed whole.
func (h *Hasher) quickHash(path string, size int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	d := newDigest(h.algo)

	if size <= 2*quickSampleSize {
		if _, err := io.Copy(d, f); err != nil {
			return "", fmt.Errorf("read: %w", err)
		}
	} else {
		head := make([]byte, quickSampleSize)
		if _, err := io.ReadFull(f, head); err != nil {
			return "", fmt.Errorf("read head: %w", err)
		}
		d.Write(head) //nolint:errcheck

		tail := make([]byte, quickSampleSize)
		if _, err := f.ReadAt(tail, size-quickSampleSize); err != nil {
			return "", fmt.Errorf("read tail: %w", err)
		}
		d.Write(tail) //nolint:errcheck
	}

	// Mix the size in so equal samples of different-length files differ.
	var sz [8]byte
	binary.LittleEndian.PutUint64(sz[:], uint64(size))
	d.Write(sz[:]) //nolint:errcheck

	return hex.EncodeToString(d.Sum(nil)), nil
}

// fullHash streams the whole file through the digest in fixed-size chunks,
// checking the context between chunks.
func (h *Hasher) fullHash(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	d := newDigest(h.algo)
	buf := make([]byte, hashChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, readErr := f.Read(buf)
		if n > 0 {
			d.Write(buf[:n]) //nolint:errcheck
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", fmt.Errorf("read: %w", readErr)
		}
	}
	return hex.EncodeToString(d.Sum(nil)), nil
}

type hashOutcome struct {
	rec FileRecord
	err error
}

// HashAll hashes every record through a bounded worker pool. Results come
// back over an internal channel and are collected on the calling goroutine;
// workers never touch the caller's state directly. Cancellation is
// cooperative: no new work is dispatched once ctx is done, but in-flight
// jobs finish so cache writes stay whole. progress, when non-nil, is called
// after each completed file.
func (h *Hasher) HashAll(ctx context.Context, recs []FileRecord, kind HashKind, progress func(done, total int)) ([]FileRecord, []FileError, error) {
	l := sub("hasher")
	total := len(recs)
	if total == 0 {
		return nil, nil, nil
	}

	pool, err := ants.NewPool(h.workers)
	if err != nil {
		return nil, nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	results := make(chan hashOutcome, h.workers)
	var wg sync.WaitGroup

	go func() {
		for _, rec := range recs {
			if ctx.Err() != nil {
				break
			}
			rec := rec
			wg.Add(1)
			if err := pool.Submit(func() {
				defer wg.Done()
				out, hashErr := h.Hash(ctx, rec, kind)
				results <- hashOutcome{rec: out, err: hashErr}
			}); err != nil {
				wg.Done()
				results <- hashOutcome{rec: rec, err: err}
			}
		}
		wg.Wait()
		close(results)
	}()

	var hashed []FileRecord
	var failed []FileError
	done := 0
	for out := range results {
		done++
		if progress != nil {
			progress(done, total)
		}
		if out.err != nil {
			if errors.Is(out.err, context.Canceled) || errors.Is(out.err, context.DeadlineExceeded) {
				continue
			}
			failed = append(failed, FileError{Path: out.rec.Path, Reason: out.err.Error()})
			l.Warn("hash failed", "kind", kind.String(), "path", out.rec.Path, "err", out.err)
			continue
		}
		hashed = append(hashed, out.rec)
		if logEnabled(slog.LevelDebug) {
			l.Debug("hashed", "kind", kind.String(), "path", out.rec.Path)
		}
	}

	if err := ctx.Err(); err != nil {
		return hashed, failed, err
	}
	return hashed, failed, nil
}
