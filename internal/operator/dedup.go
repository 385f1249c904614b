package operator

import (
	"sync"

	"github.com/fair-protocol/operator/internal/metrics"
)

// ProcessedSet records request ids that were answered or deterministically
// skipped, for the lifetime of the process. It is the pre-dispatch gate:
// membership is checked before any worker may touch a request a second
// time. Growth is unbounded; the ledger is append-only and a restart
// re-derives skips from it.
type ProcessedSet struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewProcessedSet returns an empty set.
func NewProcessedSet() *ProcessedSet {
	return &ProcessedSet{ids: make(map[string]struct{})}
}

// IsProcessed reports whether the id was already answered or skipped.
func (p *ProcessedSet) IsProcessed(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.ids[id]
	return ok
}

// MarkProcessed records a successfully answered request.
func (p *ProcessedSet) MarkProcessed(id string) {
	p.add(id)
}

// MarkSkipped records a request that was intentionally not served.
// Equivalent to MarkProcessed in effect; callers distinguish the two in
// logs and metrics.
func (p *ProcessedSet) MarkSkipped(id string) {
	p.add(id)
}

// Size returns the number of recorded ids.
func (p *ProcessedSet) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.ids)
}

func (p *ProcessedSet) add(id string) {
	p.mu.Lock()
	p.ids[id] = struct{}{}
	size := len(p.ids)
	p.mu.Unlock()
	metrics.ProcessedSetSize.Set(float64(size))
}
