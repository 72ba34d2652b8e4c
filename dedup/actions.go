package dedup

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ConflictPolicy decides what a move does when the destination name is
// already taken. The default never silently overwrites.
type ConflictPolicy int

const (
	// ConflictRename moves the file under a "name (1).ext" style suffix.
	ConflictRename ConflictPolicy = iota
	// ConflictSkip leaves the source in place and reports a failure.
	ConflictSkip
	// ConflictOverwrite replaces the destination file.
	ConflictOverwrite
)

// ParseConflictPolicy maps a CLI name to a policy.
func ParseConflictPolicy(name string) (ConflictPolicy, error) {
	switch name {
	case "rename", "":
		return ConflictRename, nil
	case "skip":
		return ConflictSkip, nil
	case "overwrite":
		return ConflictOverwrite, nil
	}
	return 0, fmt.Errorf("unknown conflict policy %q", name)
}

// Executor performs delete and move actions on selected files. Batches use
// partial-failure semantics: one file's failure never aborts the rest, and
// the result is a per-file outcome list mirroring the input order. Every
// attempt is appended to the audit log before its result is returned.
type Executor struct {
	fs        afero.Fs
	audit     *AuditLog
	trashRoot string
}

// NewExecutor builds an executor over the real filesystem. trashRoot is
// where recoverable deletes land; empty means recoverable deletion is
// unavailable and deletes are always permanent.
func NewExecutor(audit *AuditLog, trashRoot string) *Executor {
	return &Executor{fs: afero.NewOsFs(), audit: audit, trashRoot: trashRoot}
}

// NewExecutorFs is NewExecutor with an injected filesystem, used by tests
// to simulate failures.
func NewExecutorFs(fs afero.Fs, audit *AuditLog, trashRoot string) *Executor {
	return &Executor{fs: fs, audit: audit, trashRoot: trashRoot}
}

// record appends the attempt to the audit log and returns it unchanged.
// Audit failures are logged but do not turn a successful operation into a
// failed one.
func (e *Executor) record(rec ActionRecord) ActionRecord {
	if e.audit != nil {
		if err := e.audit.Append(rec); err != nil {
			sub("executor").Error("audit append failed", "source", rec.Source, "err", err)
		}
	}
	return rec
}

// DeleteBatch removes the given files. With preferRecoverable set, each
// file is first moved into the trash directory; permanent removal is the
// fallback when recoverable deletion is unavailable. Each result records
// which mode actually ran.
func (e *Executor) DeleteBatch(paths []string, preferRecoverable bool) []ActionRecord {
	l := sub("executor")
	results := make([]ActionRecord, 0, len(paths))
	for _, path := range paths {
		rec := ActionRecord{Op: OpDelete, Source: path, Timestamp: nowFunc()}

		if preferRecoverable && e.trashRoot != "" {
			trashPath, err := e.trashDelete(path)
			if err == nil {
				rec.Mode = ModeRecoverable
				rec.Destination = trashPath
				rec.Success = true
				l.Info("deleted recoverably", "path", path, "trash", trashPath)
				results = append(results, e.record(rec))
				continue
			}
			l.Warn("recoverable delete unavailable, falling back", "path", path, "err", err)
		}

		rec.Mode = ModePermanent
		if err := e.fs.Remove(path); err != nil {
			rec.Error = err.Error()
			l.Warn("delete failed", "path", path, "err", err)
		} else {
			rec.Success = true
			l.Info("deleted permanently", "path", path)
		}
		results = append(results, e.record(rec))
	}
	return results
}

// trashDelete moves a file into <trashRoot>/YYYY-MM-DD/, suffixing the
// name on collision. Returns the final trash path.
func (e *Executor) trashDelete(path string) (string, error) {
	dateDir := filepath.Join(e.trashRoot, nowFunc().Format("2006-01-02"))
	if err := e.fs.MkdirAll(dateDir, 0755); err != nil {
		return "", fmt.Errorf("mkdir trash: %w", err)
	}

	base := filepath.Base(path)
	trashPath := filepath.Join(dateDir, base)
	if _, err := e.fs.Stat(trashPath); err == nil {
		ext := filepath.Ext(base)
		name := strings.TrimSuffix(base, ext)
		for i := 1; ; i++ {
			trashPath = filepath.Join(dateDir, fmt.Sprintf("%s_%d%s", name, i, ext))
			if _, err := e.fs.Stat(trashPath); os.IsNotExist(err) {
				break
			}
		}
	}

	if err := e.fs.Rename(path, trashPath); err != nil {
		return "", fmt.Errorf("move to trash: %w", err)
	}
	return trashPath, nil
}

// MoveBatch moves the given files into destDir, applying the conflict
// policy on name collisions.
func (e *Executor) MoveBatch(paths []string, destDir string, policy ConflictPolicy) []ActionRecord {
	l := sub("executor")
	results := make([]ActionRecord, 0, len(paths))

	if err := e.fs.MkdirAll(destDir, 0755); err != nil {
		// Without a destination nothing can move; still one record per file.
		for _, path := range paths {
			rec := ActionRecord{
				Op: OpMove, Source: path, Destination: destDir,
				Timestamp: nowFunc(), Error: fmt.Sprintf("mkdir destination: %v", err),
			}
			results = append(results, e.record(rec))
		}
		return results
	}

	for _, path := range paths {
		rec := ActionRecord{Op: OpMove, Source: path, Timestamp: nowFunc()}

		dest := filepath.Join(destDir, filepath.Base(path))
		if _, err := e.fs.Stat(dest); err == nil {
			switch policy {
			case ConflictSkip:
				rec.Destination = dest
				rec.Error = "destination exists, skipped"
				l.Info("move skipped, destination exists", "path", path, "dest", dest)
				results = append(results, e.record(rec))
				continue
			case ConflictRename:
				dest = suffixedName(e.fs, dest)
			case ConflictOverwrite:
				// Rename below replaces the destination.
			}
		}
		rec.Destination = dest

		if err := e.fs.Rename(path, dest); err != nil {
			rec.Error = err.Error()
			l.Warn("move failed", "path", path, "dest", dest, "err", err)
		} else {
			rec.Success = true
			l.Info("moved", "path", path, "dest", dest)
		}
		results = append(results, e.record(rec))
	}
	return results
}

// suffixedName returns the first free "name (N).ext" variant of dest.
func suffixedName(fs afero.Fs, dest string) string {
	dir := filepath.Dir(dest)
	base := filepath.Base(dest)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	for i := 1; ; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", name, i, ext))
		if _, err := fs.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
