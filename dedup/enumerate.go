package dedup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// devIno identifies a filesystem object across symlinks.
type devIno struct {
	dev uint64
	ino uint64
}

// Enumerator walks root directories and yields candidate FileRecords under
// the configured filter rules. Enumeration is single-threaded and
// order-preserving; permission errors on directories are recorded as
// warnings and skipped, never fatal.
type Enumerator struct {
	cfg     Config
	ignore  *IgnoreRules
	skipped int
	warns   []string
}

// NewEnumerator builds an enumerator for the given config. Exclude patterns
// from the config are merged with a .dupeignore file found in each root.
func NewEnumerator(cfg Config) *Enumerator {
	return &Enumerator{
		cfg:    cfg,
		ignore: NewIgnoreRules(cfg.ExcludePatterns),
	}
}

// Skipped returns the number of entries excluded by filters or errors
// during the last Each run.
func (e *Enumerator) Skipped() int { return e.skipped }

// Warnings returns the directory-level warnings recorded during the last
// Each run.
func (e *Enumerator) Warnings() []string { return e.warns }

// Each walks every root in order, calling fn for each candidate file.
// The sequence is lazy and restartable: calling Each again re-walks the
// roots. fn returning an error stops the walk and propagates the error.
func (e *Enumerator) Each(ctx context.Context, roots []string, fn func(FileRecord) error) error {
	l := sub("enum")
	e.skipped = 0
	e.warns = nil

	visited := make(map[devIno]struct{})

	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return fmt.Errorf("resolve root %s: %w", root, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("stat root %s: %w", abs, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("root %s is not a directory", abs)
		}

		ignore := NewIgnoreRules(e.cfg.ExcludePatterns)
		ignore.LoadIgnoreFile(filepath.Join(abs, ".dupeignore"))

		l.Debug("walk start", "root", abs)
		if err := e.walkDir(ctx, abs, ignore, visited, fn); err != nil {
			return err
		}
	}
	l.Debug("walk complete", "skipped", e.skipped, "warnings", len(e.warns))
	return nil
}

// walkDir recursively walks dir. Entries are visited in directory order.
func (e *Enumerator) walkDir(ctx context.Context, dir string, ignore *IgnoreRules, visited map[devIno]struct{}, fn func(FileRecord) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if id, ok := statDevIno(dir); ok {
		if _, seen := visited[id]; seen {
			// Symlink cycle: this directory was already walked.
			sub("enum").Debug("cycle skipped", "dir", dir)
			e.skipped++
			return nil
		}
		visited[id] = struct{}{}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		e.warn("read dir %s: %v", dir, err)
		return nil
	}

	for _, de := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := de.Name()
		path := filepath.Join(dir, name)

		if e.cfg.SkipHidden && strings.HasPrefix(name, ".") {
			e.skipped++
			continue
		}
		if de.IsDir() && e.cfg.SkipSystem && isSystemDir(name) {
			e.skipped++
			continue
		}
		if ignore.Matches(name, de.IsDir()) {
			e.skipped++
			continue
		}

		if de.Type()&os.ModeSymlink != 0 {
			if !e.cfg.FollowSymlinks {
				e.skipped++
				continue
			}
			target, err := os.Stat(path)
			if err != nil {
				e.warn("stat symlink %s: %v", path, err)
				continue
			}
			if target.IsDir() {
				if err := e.walkDir(ctx, path, ignore, visited, fn); err != nil {
					return err
				}
				continue
			}
			if err := e.yield(path, target, fn); err != nil {
				return err
			}
			continue
		}

		if de.IsDir() {
			if err := e.walkDir(ctx, path, ignore, visited, fn); err != nil {
				return err
			}
			continue
		}
		if !de.Type().IsRegular() {
			e.skipped++
			continue
		}

		info, err := de.Info()
		if err != nil {
			e.warn("stat %s: %v", path, err)
			continue
		}
		if err := e.yield(path, info, fn); err != nil {
			return err
		}
	}
	return nil
}

func (e *Enumerator) yield(path string, info os.FileInfo, fn func(FileRecord) error) error {
	size := info.Size()
	if size < e.cfg.MinSize || (e.cfg.MaxSize > 0 && size > e.cfg.MaxSize) {
		e.skipped++
		return nil
	}
	return fn(FileRecord{
		Path:    path,
		Size:    size,
		ModTime: info.ModTime().Unix(),
	})
}

func (e *Enumerator) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	e.warns = append(e.warns, msg)
	e.skipped++
	sub("enum").Warn("enumeration warning", "detail", msg)
}

// statDevIno returns the (device, inode) pair for a path.
func statDevIno(path string) (devIno, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return devIno{}, false
	}
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return devIno{}, false
	}
	return devIno{dev: uint64(st.Dev), ino: st.Ino}, true
}
