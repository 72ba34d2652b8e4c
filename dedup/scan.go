package dedup

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"
)

// ErrNoRoots is the fatal error for a scan started with no root paths.
var ErrNoRoots = errors.New("no root directories given")

// ScanResult is the outcome of one scan run.
type ScanResult struct {
	Groups       []*DuplicateGroup
	FilesScanned int
	FilesSkipped int
	FilesFailed  int
	Duration     time.Duration
	Cancelled    bool
}

// Scanner runs the duplicate detection pipeline:
//
//	Idle → Enumerating → SizeFiltering → QuickHashing → FullHashing →
//	Grouping → {Completed | Cancelled | Failed}
//
// Stages are strictly sequential; only hashing work within a stage runs in
// parallel. The scanner owns all candidate and group state — workers report
// back over channels and never mutate it directly. The hash cache is
// injected by the caller, who owns its open/close lifecycle.
type Scanner struct {
	cfg    Config
	cache  *HashCache
	hasher *Hasher
	bus    *EventBus

	mu    gosync.Mutex
	phase ScanPhase
}

// NewScanner builds a scanner over an open cache. The config is validated
// and defaults are filled in.
func NewScanner(cfg Config, cache *HashCache) (*Scanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Scanner{
		cfg:    cfg,
		cache:  cache,
		hasher: NewHasher(cache, cfg.Algorithm, cfg.Workers),
		bus:    NewEventBus(),
		phase:  PhaseIdle,
	}, nil
}

// Events returns the bus scan events are published on.
func (s *Scanner) Events() *EventBus { return s.bus }

// Phase returns the current pipeline phase.
func (s *Scanner) Phase() ScanPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Scanner) setPhase(p ScanPhase, processed, total int) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
	s.bus.Publish(ScanEvent{Type: EventProgress, Phase: p, Processed: processed, Total: total})
}

// Scan walks the roots and returns duplicate groups sorted by wasted
// space. Cancellation is cooperative and checked per file; a cancelled
// scan returns the groups accumulated so far with Cancelled set. Per-file
// errors degrade gracefully; only an empty root list or a broken cache
// store fail the scan outright.
func (s *Scanner) Scan(ctx context.Context, roots []string) (*ScanResult, error) {
	l := sub("scanner")
	if len(roots) == 0 {
		s.setPhase(PhaseFailed, 0, 0)
		return nil, ErrNoRoots
	}

	start := nowFunc()
	result := &ScanResult{}
	l.Info("scan starting", "roots", roots, "algo", s.cfg.Algorithm, "workers", s.cfg.Workers)

	// Enumerating: single-threaded, order-preserving walk.
	s.setPhase(PhaseEnumerating, 0, 0)
	enum := NewEnumerator(s.cfg)
	grouper := NewSizeGrouper()
	err := enum.Each(ctx, roots, func(rec FileRecord) error {
		grouper.Add(rec)
		if grouper.Total()%256 == 0 {
			s.bus.Publish(ScanEvent{Type: EventProgress, Phase: PhaseEnumerating, Processed: grouper.Total()})
		}
		return nil
	})
	result.FilesScanned = grouper.Total()
	result.FilesSkipped = enum.Skipped()
	if err != nil {
		if ctx.Err() != nil {
			return s.finishCancelled(result, start), nil
		}
		s.setPhase(PhaseFailed, 0, 0)
		return nil, fmt.Errorf("enumeration: %w", err)
	}

	// SizeFiltering: drop singleton size buckets before any hashing.
	s.setPhase(PhaseSizeFiltering, 0, grouper.Total())
	candidates := grouper.Candidates()
	l.Info("size filter done", "scanned", grouper.Total(), "candidates", len(candidates))

	// QuickHashing: cheap sampled digests in parallel.
	s.setPhase(PhaseQuickHashing, 0, len(candidates))
	quick, quickFailed, err := s.hasher.HashAll(ctx, candidates, QuickHash, func(done, total int) {
		s.bus.Publish(ScanEvent{Type: EventProgress, Phase: PhaseQuickHashing, Processed: done, Total: total})
	})
	s.reportFailures(PhaseQuickHashing, quickFailed, result)
	if err != nil {
		return s.finishCancelled(result, start), nil
	}

	// Re-filter: only (size, quick hash) collisions go on to full hashing.
	survivors := filterQuickCollisions(quick)
	l.Info("quick hash done", "hashed", len(quick), "survivors", len(survivors))

	// FullHashing: whole-file digests confirm duplicates.
	s.setPhase(PhaseFullHashing, 0, len(survivors))
	full, fullFailed, err := s.hasher.HashAll(ctx, survivors, FullHash, func(done, total int) {
		s.bus.Publish(ScanEvent{Type: EventProgress, Phase: PhaseFullHashing, Processed: done, Total: total})
	})
	s.reportFailures(PhaseFullHashing, fullFailed, result)
	if err != nil {
		result.Groups = BuildGroups(full)
		return s.finishCancelled(result, start), nil
	}

	// Grouping: deterministic final groups.
	s.setPhase(PhaseGrouping, 0, len(full))
	result.Groups = BuildGroups(full)
	result.Duration = nowFunc().Sub(start)

	s.setPhase(PhaseCompleted, len(full), len(full))
	s.bus.Publish(ScanEvent{Type: EventFinished, Phase: PhaseCompleted, Groups: result.Groups})
	l.Info("scan complete",
		"groups", len(result.Groups),
		"wasted", TotalWasted(result.Groups),
		"failed", result.FilesFailed,
		"duration", result.Duration)
	return result, nil
}

func (s *Scanner) finishCancelled(result *ScanResult, start time.Time) *ScanResult {
	result.Cancelled = true
	result.Duration = nowFunc().Sub(start)
	s.setPhase(PhaseCancelled, 0, 0)
	s.bus.Publish(ScanEvent{Type: EventFinished, Phase: PhaseCancelled, Groups: result.Groups})
	sub("scanner").Info("scan cancelled", "groups", len(result.Groups))
	return result
}

func (s *Scanner) reportFailures(phase ScanPhase, failures []FileError, result *ScanResult) {
	result.FilesFailed += len(failures)
	for _, fe := range failures {
		s.bus.Publish(ScanEvent{Type: EventFileError, Phase: phase, Path: fe.Path, Reason: fe.Reason})
	}
}

// filterQuickCollisions keeps only records whose (size, quick hash) pair
// occurs more than once.
func filterQuickCollisions(recs []FileRecord) []FileRecord {
	type key struct {
		size int64
		hash string
	}
	counts := make(map[key]int)
	for _, rec := range recs {
		counts[key{rec.Size, rec.QuickHash}]++
	}
	var out []FileRecord
	for _, rec := range recs {
		if counts[key{rec.Size, rec.QuickHash}] > 1 {
			out = append(out, rec)
		}
	}
	return out
}
