package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/seligo/internal/common"
	"github.com/ternarybob/seligo/internal/interfaces"
	"github.com/ternarybob/seligo/internal/models"
)

// flowRecord tracks a parent flow's children in Badger.
type flowRecord struct {
	ParentID  string `json:"parent_id"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
}

// Broker implements the QueueManager interface: named queues with per-queue
// worker pools, at-least-once delivery, backoff redelivery and parent/child
// flow tracking.
type Broker struct {
	db          *badgerdb.DB
	queues      map[string]*queueStore
	handlers    map[string]interfaces.QueueHandler
	concurrency map[string]int

	pollInterval time.Duration
	retryWait    time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	flowMu sync.Mutex

	logger arbor.ILogger
}

// NewBroker creates a broker over an existing Badger DB. The queue names
// and their concurrency contracts come from configuration.
func NewBroker(db *badgerdb.DB, config *common.QueueConfig, logger arbor.ILogger) *Broker {
	ctx, cancel := context.WithCancel(context.Background())

	visibility := common.MustDuration(config.VisibilityTimeout, 5*time.Minute)

	b := &Broker{
		db:           db,
		queues:       make(map[string]*queueStore),
		handlers:     make(map[string]interfaces.QueueHandler),
		concurrency:  make(map[string]int),
		pollInterval: common.MustDuration(config.PollInterval, 500*time.Millisecond),
		retryWait:    common.MustDuration(config.RetryInitialWait, 5*time.Second),
		ctx:          ctx,
		cancel:       cancel,
		logger:       logger,
	}

	for name, workers := range map[string]int{
		models.QueueJD:        config.JDConcurrency,
		models.QueueResume:    config.ResumeConcurrency,
		models.QueueRank:      config.RankConcurrency,
		models.QueueRankBatch: config.RankConcurrency,
	} {
		if workers <= 0 {
			workers = 1
		}
		b.queues[name] = newQueueStore(db, name, visibility, config.MaxReceive)
		b.concurrency[name] = workers
	}

	return b
}

// RegisterHandler registers the handler for a queue. Must be called before
// Start.
func (b *Broker) RegisterHandler(queue string, handler interfaces.QueueHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[queue] = handler
	b.logger.Debug().Str("queue", queue).Msg("Queue handler registered")
}

// Enqueue adds a message to a named queue.
func (b *Broker) Enqueue(ctx context.Context, queue string, msg models.QueueMessage) error {
	q, ok := b.queues[queue]
	if !ok {
		return fmt.Errorf("unknown queue: %s", queue)
	}
	msg.Queue = queue
	if err := q.enqueue(msg, 0); err != nil {
		return fmt.Errorf("failed to enqueue on %s: %w", queue, err)
	}
	b.logger.Debug().Str("queue", queue).Str("message_id", msg.ID).Msg("Message enqueued")
	return nil
}

// EnqueueChildren registers a flow of len(msgs) children under parentID and
// enqueues them. The flow record is written before the children so a child
// completing immediately still finds its parent.
func (b *Broker) EnqueueChildren(ctx context.Context, parentID, queue string, msgs []models.QueueMessage) error {
	if len(msgs) == 0 {
		return fmt.Errorf("flow requires at least one child")
	}

	record := flowRecord{ParentID: parentID, Total: len(msgs)}
	if err := b.saveFlow(&record); err != nil {
		return err
	}

	for i := range msgs {
		msgs[i].ParentID = parentID
		if err := b.Enqueue(ctx, queue, msgs[i]); err != nil {
			return err
		}
	}

	b.logger.Info().
		Str("parent_id", parentID).
		Str("queue", queue).
		Int("children", len(msgs)).
		Msg("Flow children enqueued")

	return nil
}

// ChildStats reports flow progress for a parent.
func (b *Broker) ChildStats(ctx context.Context, parentID string) (*interfaces.FlowStats, error) {
	record, err := b.loadFlow(parentID)
	if err != nil {
		return nil, err
	}
	return &interfaces.FlowStats{
		Total:     record.Total,
		Completed: record.Completed,
		Failed:    record.Failed,
	}, nil
}

// Start launches the worker pools. Worker starts are staggered across the
// poll interval to reduce transaction conflicts on the shared DB.
func (b *Broker) Start() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for queue, workers := range b.concurrency {
		if _, ok := b.handlers[queue]; !ok {
			b.logger.Warn().Str("queue", queue).Msg("No handler registered for queue, workers not started")
			continue
		}
		for i := 0; i < workers; i++ {
			b.wg.Add(1)
			go b.worker(queue, i)
		}
		b.logger.Info().
			Str("queue", queue).
			Int("concurrency", workers).
			Msg("Queue workers started")
	}

	return nil
}

// Stop signals workers to exit and waits for in-flight handlers.
func (b *Broker) Stop() error {
	b.logger.Info().Msg("Stopping broker")
	b.cancel()
	b.wg.Wait()
	return nil
}

func (b *Broker) worker(queue string, workerID int) {
	defer b.wg.Done()

	stagger := b.pollInterval / time.Duration(b.concurrency[queue]) * time.Duration(workerID)
	if stagger > 0 {
		select {
		case <-b.ctx.Done():
			return
		case <-time.After(stagger):
		}
	}

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			b.logger.Debug().Str("queue", queue).Int("worker_id", workerID).Msg("Worker stopped")
			return
		case <-ticker.C:
			// Drain ready messages before sleeping again.
			for b.processOne(queue, workerID) {
				if b.ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// processOne receives and processes a single message. Returns true when a
// message was handled so the caller keeps draining.
func (b *Broker) processOne(queue string, workerID int) bool {
	q := b.queues[queue]

	env, poisoned, err := q.receive()
	if err != nil {
		if err != models.ErrNoMessage {
			b.logger.Warn().Err(err).Str("queue", queue).Msg("Failed to receive message")
		}
		return false
	}

	if poisoned {
		b.logger.Error().
			Str("queue", queue).
			Str("message_id", env.Msg.ID).
			Int("receive_count", env.ReceiveCount).
			Msg("Message exceeded max receives, dropped")
		b.finishChild(&env.Msg, false)
		return true
	}

	b.mu.RLock()
	handler := b.handlers[queue]
	b.mu.RUnlock()

	start := time.Now()
	handlerErr := handler(b.ctx, &env.Msg)
	duration := time.Since(start)

	if handlerErr != nil {
		// Exponential backoff between redeliveries: 5s, 10s, 20s by default.
		backoff := b.retryWait << (env.ReceiveCount - 1)

		b.logger.Error().
			Err(handlerErr).
			Str("queue", queue).
			Str("message_id", env.Msg.ID).
			Int("attempt", env.ReceiveCount).
			Dur("duration", duration).
			Dur("backoff", backoff).
			Int("worker_id", workerID).
			Msg("Handler failed")

		if env.ReceiveCount >= q.maxReceive {
			// Last attempt spent; drop and mark the flow child failed.
			if err := q.ack(env.Msg.ID); err != nil {
				b.logger.Warn().Err(err).Str("message_id", env.Msg.ID).Msg("Failed to drop exhausted message")
			}
			b.finishChild(&env.Msg, false)
			return true
		}

		if err := q.release(env.Msg.ID, backoff); err != nil {
			b.logger.Warn().Err(err).Str("message_id", env.Msg.ID).Msg("Failed to release message for retry")
		}
		return true
	}

	b.logger.Info().
		Str("queue", queue).
		Str("message_id", env.Msg.ID).
		Dur("duration", duration).
		Int("worker_id", workerID).
		Msg("Message processed")

	if err := q.ack(env.Msg.ID); err != nil {
		b.logger.Warn().Err(err).Str("message_id", env.Msg.ID).Msg("Failed to ack message")
	}
	b.finishChild(&env.Msg, true)
	return true
}

// finishChild records a child's terminal state on its parent flow.
func (b *Broker) finishChild(msg *models.QueueMessage, success bool) {
	if msg.ParentID == "" {
		return
	}

	b.flowMu.Lock()
	defer b.flowMu.Unlock()

	record, err := b.loadFlow(msg.ParentID)
	if err != nil {
		b.logger.Warn().Err(err).Str("parent_id", msg.ParentID).Msg("Flow record missing for child completion")
		return
	}

	if success {
		record.Completed++
	} else {
		record.Failed++
	}

	if err := b.saveFlow(record); err != nil {
		b.logger.Warn().Err(err).Str("parent_id", msg.ParentID).Msg("Failed to update flow record")
	}
}

func flowKey(parentID string) []byte {
	return []byte("flow:" + parentID)
}

func (b *Broker) saveFlow(record *flowRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal flow record: %w", err)
	}
	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(flowKey(record.ParentID), data)
	})
}

func (b *Broker) loadFlow(parentID string) (*flowRecord, error) {
	var record flowRecord
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(flowKey(parentID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if err == badgerdb.ErrKeyNotFound {
		return nil, fmt.Errorf("flow not found: %s", parentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load flow %s: %w", parentID, err)
	}
	return &record, nil
}
