package orchestrator

import (
	"sort"
	"sync"
	"time"
)

// Attempt records unproductive processing of one work item.
type Attempt struct {
	Name        string    `json:"name"`
	Failures    int       `json:"failures"`
	LastReason  string    `json:"last_reason"`
	LastFailure time.Time `json:"last_failure"`
	Quarantined bool      `json:"quarantined"`
}

// Quarantine tracks work items that repeatedly fail to produce output and
// stops retrying them after a limit. State is held in memory only.
type Quarantine struct {
	mu      sync.RWMutex
	limit   int
	entries map[string]*Attempt
}

// NewQuarantine creates a tracker that quarantines an item after limit
// unproductive attempts. A limit of zero or less never quarantines.
func NewQuarantine(limit int) *Quarantine {
	return &Quarantine{
		limit:   limit,
		entries: make(map[string]*Attempt),
	}
}

// RecordFailure counts an unproductive attempt and reports whether the item
// is now quarantined.
func (q *Quarantine) RecordFailure(name, reason string, at time.Time) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	a, ok := q.entries[name]
	if !ok {
		a = &Attempt{Name: name}
		q.entries[name] = a
	}
	a.Failures++
	a.LastReason = reason
	a.LastFailure = at
	if q.limit > 0 && a.Failures >= q.limit {
		a.Quarantined = true
	}
	return a.Quarantined
}

// IsQuarantined reports whether name is being skipped.
func (q *Quarantine) IsQuarantined(name string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	a, ok := q.entries[name]
	return ok && a.Quarantined
}

// Forget drops all state for name.
func (q *Quarantine) Forget(name string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, name)
}

// Release lifts the quarantine on name and resets its failure count.
// It reports whether name was quarantined.
func (q *Quarantine) Release(name string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	a, ok := q.entries[name]
	if !ok || !a.Quarantined {
		return false
	}
	delete(q.entries, name)
	return true
}

// Retain drops state for every name not in pending.
func (q *Quarantine) Retain(pending []string) {
	keep := make(map[string]struct{}, len(pending))
	for _, n := range pending {
		keep[n] = struct{}{}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for name := range q.entries {
		if _, ok := keep[name]; !ok {
			delete(q.entries, name)
		}
	}
}

// List returns a snapshot of tracked items sorted by name. When onlyQuarantined
// is set, items still being retried are omitted.
func (q *Quarantine) List(onlyQuarantined bool) []Attempt {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]Attempt, 0, len(q.entries))
	for _, a := range q.entries {
		if onlyQuarantined && !a.Quarantined {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
