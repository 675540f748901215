package interfaces

import (
	"context"

	"github.com/ternarybob/seligo/internal/models"
)

// QueueHandler processes one delivered message. A returned error triggers
// backoff redelivery up to the queue's max-receive policy; handlers must be
// idempotent keyed by the payload id.
type QueueHandler func(ctx context.Context, msg *models.QueueMessage) error

// QueueManager is the broker: named work queues with visibility timeouts,
// retries and flow (parent/child) semantics.
type QueueManager interface {
	Enqueue(ctx context.Context, queue string, msg models.QueueMessage) error
	// EnqueueChildren registers count children under parentID and enqueues
	// them. The parent flow completes when all children reach a terminal
	// state.
	EnqueueChildren(ctx context.Context, parentID, queue string, msgs []models.QueueMessage) error
	// ChildStats reports terminal-state progress for a flow parent.
	ChildStats(ctx context.Context, parentID string) (*FlowStats, error)
	RegisterHandler(queue string, handler QueueHandler)
	Start() error
	Stop() error
}

// FlowStats summarizes a parent flow's children.
type FlowStats struct {
	Total     int
	Completed int
	Failed    int
}

// Terminal reports whether every child finished.
func (s *FlowStats) Terminal() bool {
	return s.Total > 0 && s.Completed+s.Failed >= s.Total
}

// Percent is the parent's logical progress as a whole number.
func (s *FlowStats) Percent() int {
	if s.Total == 0 {
		return 0
	}
	return (s.Completed + s.Failed) * 100 / s.Total
}

// ProgressPublisher fans progress events out to subscribers.
type ProgressPublisher interface {
	Publish(event models.ProgressEvent)
	Subscribe(jobID string) *ProgressSubscription
	Unsubscribe(jobID, subscriberID string)
}

// ProgressSubscription is one subscriber's stream. Events is closed on
// unsubscribe. The hub owns the channel; the subscriber only reads.
type ProgressSubscription struct {
	ID     string
	JobID  string
	Events <-chan models.ProgressEvent
}
