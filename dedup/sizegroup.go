package dedup

import "log/slog"

// SizeGrouper accumulates enumerated records into size buckets. Discarding
// singleton buckets after enumeration eliminates most files before any
// hashing happens.
type SizeGrouper struct {
	buckets map[int64][]FileRecord
	total   int
}

// NewSizeGrouper creates an empty grouper.
func NewSizeGrouper() *SizeGrouper {
	return &SizeGrouper{buckets: make(map[int64][]FileRecord)}
}

// Add appends a record to its size bucket.
func (g *SizeGrouper) Add(rec FileRecord) {
	g.buckets[rec.Size] = append(g.buckets[rec.Size], rec)
	g.total++
}

// Total returns the number of records added so far.
func (g *SizeGrouper) Total() int { return g.total }

// Candidates drops every bucket with fewer than two members and returns the
// surviving records. Call once enumeration is complete.
func (g *SizeGrouper) Candidates() []FileRecord {
	var out []FileRecord
	dropped := 0
	for size, bucket := range g.buckets {
		if len(bucket) < 2 {
			delete(g.buckets, size)
			dropped += len(bucket)
			continue
		}
		out = append(out, bucket...)
	}
	if logEnabled(slog.LevelDebug) {
		sub("sizegroup").Debug("size filter", "total", g.total, "dropped", dropped, "candidates", len(out))
	}
	return out
}
