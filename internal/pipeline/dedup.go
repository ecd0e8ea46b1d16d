package pipeline

import (
	"sort"
	"sync"
	"time"

	"github.com/F8ai/formulation-pubmed/internal/metrics"
	"github.com/F8ai/formulation-pubmed/internal/pubmed"
)

// Index is the dedup gate for discovery. It keeps two sets: Discovered
// holds every identifier that completed the Metadata stage and blocks
// re-discovery; Completed holds identifiers that finished the whole
// pipeline. Keeping them separate lets operators tell "seen but stuck"
// apart from "done".
type Index struct {
	clock pubmed.Clock

	mu          sync.Mutex
	discovered  map[string]struct{}
	completed   map[string]struct{}
	total       int
	lastUpdated time.Time
	dirty       bool
}

// NewIndex creates an empty index.
func NewIndex(clock pubmed.Clock) *Index {
	return &Index{
		clock:      clock,
		discovered: make(map[string]struct{}),
		completed:  make(map[string]struct{}),
	}
}

// Seen reports whether id already passed the discovery gate.
func (x *Index) Seen(id string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	_, ok := x.discovered[id]
	return ok
}

// MarkDiscovered adds id to the discovery gate. Called at Metadata
// completion, not at pipeline completion: an identifier dropped later
// in the pipeline stays excluded from re-discovery and is recovered
// through the dead-letter path instead.
func (x *Index) MarkDiscovered(id string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.discovered[id]; ok {
		return
	}
	x.discovered[id] = struct{}{}
	x.total++
	x.lastUpdated = x.clock.Now()
	x.dirty = true
	metrics.SetDedupSize("discovered", len(x.discovered))
}

// MarkCompleted records id as having finished the pipeline.
func (x *Index) MarkCompleted(id string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.completed[id]; ok {
		return
	}
	x.completed[id] = struct{}{}
	x.lastUpdated = x.clock.Now()
	x.dirty = true
	metrics.SetDedupSize("completed", len(x.completed))
}

// IsCompleted reports whether id finished the pipeline.
func (x *Index) IsCompleted(id string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	_, ok := x.completed[id]
	return ok
}

// Load seeds the index from a persisted snapshot, replacing current
// state. Used once at startup.
func (x *Index) Load(snap pubmed.DedupSnapshot) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.discovered = make(map[string]struct{}, len(snap.IDs))
	for _, id := range snap.IDs {
		x.discovered[id] = struct{}{}
	}
	x.completed = make(map[string]struct{}, len(snap.CompletedIDs))
	for _, id := range snap.CompletedIDs {
		x.completed[id] = struct{}{}
	}
	x.total = snap.TotalProcessed
	if x.total < len(x.discovered) {
		x.total = len(x.discovered)
	}
	x.lastUpdated = snap.LastUpdated
	x.dirty = false
	metrics.SetDedupSize("discovered", len(x.discovered))
	metrics.SetDedupSize("completed", len(x.completed))
}

// Snapshot returns a serializable copy of the index with sorted IDs.
func (x *Index) Snapshot() pubmed.DedupSnapshot {
	x.mu.Lock()
	defer x.mu.Unlock()
	snap := pubmed.DedupSnapshot{
		IDs:            make([]string, 0, len(x.discovered)),
		CompletedIDs:   make([]string, 0, len(x.completed)),
		LastUpdated:    x.lastUpdated,
		TotalProcessed: x.total,
	}
	for id := range x.discovered {
		snap.IDs = append(snap.IDs, id)
	}
	for id := range x.completed {
		snap.CompletedIDs = append(snap.CompletedIDs, id)
	}
	sort.Strings(snap.IDs)
	sort.Strings(snap.CompletedIDs)
	return snap
}

// Dirty reports whether the index changed since the last MarkClean.
func (x *Index) Dirty() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.dirty
}

// MarkClean clears the dirty flag after a successful flush.
func (x *Index) MarkClean() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.dirty = false
}

// Sizes returns the discovered and completed set sizes.
func (x *Index) Sizes() (discovered, completed int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.discovered), len(x.completed)
}
