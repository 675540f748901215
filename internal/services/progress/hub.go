// -----------------------------------------------------------------------
// ProgressHub - per-job fan-out of progress events to many subscribers
// with bounded buffers
// -----------------------------------------------------------------------

package progress

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/seligo/internal/interfaces"
	"github.com/ternarybob/seligo/internal/models"
)

// DefaultBufferSize is the per-subscriber event buffer. On overflow the
// oldest buffered event is dropped so a slow subscriber can never stall a
// publisher.
const DefaultBufferSize = 32

// subscriber holds one subscription's output channel. The hub is the only
// writer; the subscriber only reads.
type subscriber struct {
	id     string
	ch     chan models.ProgressEvent
	lagged bool
}

// Hub multiplexes progress events per job. It retains the last event per
// (job, stage) so late subscribers observe current state on attach, and it
// clamps percent to be monotonic non-decreasing per (job, stage).
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]*subscriber            // jobID -> subID -> sub
	lastByStage map[string]map[string]models.ProgressEvent   // jobID -> stage -> last event
	stageOrder  map[string][]string                          // jobID -> stages in first-seen order
	bufferSize  int
	logger      arbor.ILogger
}

// NewHub creates a progress hub with the given per-subscriber buffer size.
func NewHub(bufferSize int, logger arbor.ILogger) *Hub {
	if bufferSize < DefaultBufferSize {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		subscribers: make(map[string]map[string]*subscriber),
		lastByStage: make(map[string]map[string]models.ProgressEvent),
		stageOrder:  make(map[string][]string),
		bufferSize:  bufferSize,
		logger:      logger,
	}
}

var _ interfaces.ProgressPublisher = (*Hub)(nil)

// Publish delivers an event to all current subscribers of the job and
// retains it for replay. Never blocks: full buffers drop their oldest event
// and the next delivered event carries the lagged flag.
func (h *Hub) Publish(event models.ProgressEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	h.mu.Lock()

	stages, ok := h.lastByStage[event.JobID]
	if !ok {
		stages = make(map[string]models.ProgressEvent)
		h.lastByStage[event.JobID] = stages
	}

	// Monotonic percent per (job, stage): never let an observer see percent
	// go backwards within a stage.
	if prev, ok := stages[event.Stage]; ok && event.Percent < prev.Percent {
		event.Percent = prev.Percent
	} else if !ok {
		h.stageOrder[event.JobID] = append(h.stageOrder[event.JobID], event.Stage)
	}
	stages[event.Stage] = event

	subs := make([]*subscriber, 0, len(h.subscribers[event.JobID]))
	for _, sub := range h.subscribers[event.JobID] {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		h.deliver(sub, event)
	}
}

// deliver writes one event to a subscriber buffer, dropping the oldest
// buffered event on overflow.
func (h *Hub) deliver(sub *subscriber, event models.ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// The subscriber may have detached between the Publish snapshot and here;
	// its channel is closed then, so sending would panic.
	if h.subscribers[event.JobID][sub.id] != sub {
		return
	}

	if sub.lagged {
		event.Lagged = true
		sub.lagged = false
	}

	select {
	case sub.ch <- event:
	default:
		// Buffer full: drop oldest, mark lag, then deliver.
		select {
		case <-sub.ch:
		default:
		}
		event.Lagged = true
		select {
		case sub.ch <- event:
		default:
			sub.lagged = true
		}
	}
}

// Subscribe attaches a new subscriber to a job's progress stream. The most
// recent event per stage is replayed immediately in first-seen stage order.
func (h *Hub) Subscribe(jobID string) *interfaces.ProgressSubscription {
	sub := &subscriber{
		id: uuid.New().String(),
		ch: make(chan models.ProgressEvent, h.bufferSize),
	}

	h.mu.Lock()
	if h.subscribers[jobID] == nil {
		h.subscribers[jobID] = make(map[string]*subscriber)
	}
	h.subscribers[jobID][sub.id] = sub

	// Replay current state so a late subscriber sees where each stage is.
	for _, stage := range h.stageOrder[jobID] {
		if event, ok := h.lastByStage[jobID][stage]; ok {
			select {
			case sub.ch <- event:
			default:
			}
		}
	}
	h.mu.Unlock()

	h.logger.Debug().
		Str("job_id", jobID).
		Str("subscriber_id", sub.id).
		Msg("Progress subscriber attached")

	return &interfaces.ProgressSubscription{
		ID:     sub.id,
		JobID:  jobID,
		Events: sub.ch,
	}
}

// Unsubscribe detaches a subscriber and closes its channel.
func (h *Hub) Unsubscribe(jobID, subscriberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subscribers[jobID]
	if !ok {
		return
	}
	sub, ok := subs[subscriberID]
	if !ok {
		return
	}

	delete(subs, subscriberID)
	if len(subs) == 0 {
		delete(h.subscribers, jobID)
	}
	close(sub.ch)

	h.logger.Debug().
		Str("job_id", jobID).
		Str("subscriber_id", subscriberID).
		Msg("Progress subscriber detached")
}

// SubscriberCount returns the number of active subscribers for a job.
func (h *Hub) SubscriberCount(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[jobID])
}

// Forget drops retained state for a job once it is fully terminal.
func (h *Hub) Forget(jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.lastByStage, jobID)
	delete(h.stageOrder, jobID)
}
