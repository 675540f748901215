package orchestrator

import "sync"

// CancelRegistry is the in-memory set of cancelled job IDs. Pipelines check
// it at stage boundaries; cancellation never interrupts an in-flight
// provider call.
type CancelRegistry struct {
	mu        sync.RWMutex
	cancelled map[string]struct{}
}

func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{cancelled: make(map[string]struct{})}
}

// Cancel marks a job cancelled.
func (r *CancelRegistry) Cancel(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled[jobID] = struct{}{}
}

// Cancelled reports whether a job has been cancelled.
func (r *CancelRegistry) Cancelled(jobID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.cancelled[jobID]
	return ok
}

// Clear removes a job from the registry, typically on resubmission.
func (r *CancelRegistry) Clear(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancelled, jobID)
}
