package crawler

import "sync"

// QuarantinePolicy decides when a repeatedly failing land should be
// quarantined. RecordFailure reports whether the land just crossed the
// quarantine threshold.
type QuarantinePolicy interface {
	RecordFailure(landID string) bool
	RecordSuccess(landID string)
}

// ConsecutiveFailures quarantines a land after a fixed number of consecutive
// sweep failures. A threshold of zero disables quarantining, which keeps
// transient upstream outages from poisoning the land list.
type ConsecutiveFailures struct {
	threshold int

	mu     sync.Mutex
	counts map[string]int
}

// NewConsecutiveFailures creates a consecutive-failure quarantine policy.
func NewConsecutiveFailures(threshold int) *ConsecutiveFailures {
	return &ConsecutiveFailures{
		threshold: threshold,
		counts:    make(map[string]int),
	}
}

// RecordFailure counts one failure for the land and reports whether it just
// reached the threshold.
func (p *ConsecutiveFailures) RecordFailure(landID string) bool {
	if p.threshold <= 0 {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.counts[landID]++
	return p.counts[landID] == p.threshold
}

// RecordSuccess resets the failure streak for the land.
func (p *ConsecutiveFailures) RecordSuccess(landID string) {
	if p.threshold <= 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.counts, landID)
}
