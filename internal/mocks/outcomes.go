package mocks

import "sync"

// Outcomes records source outcomes in memory. It is safe for concurrent use.
type Outcomes struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewOutcomes creates an empty recorder.
func NewOutcomes() *Outcomes {
	return &Outcomes{counts: make(map[string]int)}
}

// RecordOutcome implements ports.OutcomeRecorder.
func (o *Outcomes) RecordOutcome(source, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.counts[source+"/"+outcome]++
}

// Count returns how often source reported outcome.
func (o *Outcomes) Count(source, outcome string) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.counts[source+"/"+outcome]
}
