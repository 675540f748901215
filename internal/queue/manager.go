// -----------------------------------------------------------------------
// Badger-backed work queue - visibility timeouts, receive counts,
// backoff release for redelivery
// -----------------------------------------------------------------------

package queue

import (
	"encoding/json"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/seligo/internal/models"
)

// envelope is the internal structure stored in Badger per message.
type envelope struct {
	Msg          models.QueueMessage `json:"msg"`
	EnqueuedAt   time.Time           `json:"enqueued_at"`
	VisibleAt    time.Time           `json:"visible_at"`
	ReceiveCount int                 `json:"receive_count"`
}

// queueStore implements one named persistent queue. Messages become visible
// at VisibleAt; receiving a message pushes its visibility out by the
// visibility timeout so other workers skip it while it is being processed.
type queueStore struct {
	db                *badgerdb.DB
	name              string
	visibilityTimeout time.Duration
	maxReceive        int
}

func newQueueStore(db *badgerdb.DB, name string, visibilityTimeout time.Duration, maxReceive int) *queueStore {
	if visibilityTimeout <= 0 {
		visibilityTimeout = 5 * time.Minute
	}
	if maxReceive <= 0 {
		maxReceive = 3
	}
	return &queueStore{
		db:                db,
		name:              name,
		visibilityTimeout: visibilityTimeout,
		maxReceive:        maxReceive,
	}
}

func (q *queueStore) msgKey(id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:msg:%s", q.name, id))
}

func (q *queueStore) indexKey(visibleAt time.Time, id string) []byte {
	// Zero pad to 20 digits so lexicographic key order matches time order.
	return []byte(fmt.Sprintf("queue:%s:index:%020d:%s", q.name, visibleAt.UnixNano(), id))
}

func (q *queueStore) indexPrefix() []byte {
	return []byte(fmt.Sprintf("queue:%s:index:", q.name))
}

func (q *queueStore) parseIndexKey(key []byte) (time.Time, string, error) {
	prefix := q.indexPrefix()
	if len(key) <= len(prefix)+21 {
		return time.Time{}, "", fmt.Errorf("invalid index key length")
	}
	suffix := string(key[len(prefix):])
	tsStr := suffix[:20]
	id := suffix[21:]

	var ts int64
	if _, err := fmt.Sscanf(tsStr, "%d", &ts); err != nil {
		return time.Time{}, "", err
	}
	return time.Unix(0, ts), id, nil
}

// enqueue stores a message, immediately visible unless a delay is given.
func (q *queueStore) enqueue(msg models.QueueMessage, delay time.Duration) error {
	env := envelope{
		Msg:        msg,
		EnqueuedAt: time.Now(),
		VisibleAt:  time.Now().Add(delay),
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal queue message: %w", err)
	}

	return q.db.Update(func(txn *badgerdb.Txn) error {
		if err := txn.Set(q.msgKey(msg.ID), data); err != nil {
			return err
		}
		return txn.Set(q.indexKey(env.VisibleAt, msg.ID), []byte{})
	})
}

// receive claims the next visible message. Returns the envelope; the caller
// must finish with ack (delete) or release (redeliver with backoff).
// Messages past maxReceive are dropped and reported as poisoned.
func (q *queueStore) receive() (*envelope, bool, error) {
	var env envelope
	var poisoned bool

	err := q.db.Update(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := q.indexPrefix()
		now := time.Now()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)

			ts, id, err := q.parseIndexKey(key)
			if err != nil {
				continue
			}
			if ts.After(now) {
				// Index keys are sorted by visibility time; nothing later
				// is ready either.
				break
			}

			item, err := txn.Get(q.msgKey(id))
			if err != nil {
				if err == badgerdb.ErrKeyNotFound {
					// Orphaned index entry, clean it up.
					if err := txn.Delete(key); err != nil {
						return err
					}
					continue
				}
				return err
			}

			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &env)
			}); err != nil {
				return err
			}

			if env.ReceiveCount >= q.maxReceive {
				// Poison message: drop it so it cannot loop forever.
				if err := txn.Delete(key); err != nil {
					return err
				}
				if err := txn.Delete(q.msgKey(id)); err != nil {
					return err
				}
				poisoned = true
				return nil
			}

			env.ReceiveCount++
			env.VisibleAt = time.Now().Add(q.visibilityTimeout)

			newData, err := json.Marshal(env)
			if err != nil {
				return err
			}
			if err := txn.Set(q.msgKey(id), newData); err != nil {
				return err
			}
			if err := txn.Delete(key); err != nil {
				return err
			}
			return txn.Set(q.indexKey(env.VisibleAt, id), []byte{})
		}

		return models.ErrNoMessage
	})

	if err != nil {
		return nil, false, err
	}
	if poisoned {
		return &env, true, nil
	}
	return &env, false, nil
}

// ack removes a processed message.
func (q *queueStore) ack(id string) error {
	return q.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(q.msgKey(id))
		if err != nil {
			if err == badgerdb.ErrKeyNotFound {
				return nil // already removed
			}
			return err
		}

		var env envelope
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &env)
		}); err != nil {
			return err
		}

		if err := txn.Delete(q.indexKey(env.VisibleAt, id)); err != nil && err != badgerdb.ErrKeyNotFound {
			return err
		}
		return txn.Delete(q.msgKey(id))
	})
}

// release makes a claimed message visible again after the given backoff, for
// redelivery after a handler failure.
func (q *queueStore) release(id string, backoff time.Duration) error {
	return q.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(q.msgKey(id))
		if err != nil {
			return err
		}

		var env envelope
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &env)
		}); err != nil {
			return err
		}

		oldIndexKey := q.indexKey(env.VisibleAt, id)
		env.VisibleAt = time.Now().Add(backoff)

		newData, err := json.Marshal(env)
		if err != nil {
			return err
		}
		if err := txn.Set(q.msgKey(id), newData); err != nil {
			return err
		}
		if err := txn.Delete(oldIndexKey); err != nil && err != badgerdb.ErrKeyNotFound {
			return err
		}
		return txn.Set(q.indexKey(env.VisibleAt, id), []byte{})
	})
}
