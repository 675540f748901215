package badger

import (
	"context"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/seligo/internal/interfaces"
)

// KVStorage implements KeyValueStorage over the raw Badger DB underneath
// badgerhold. Raw access is needed for TTL entries (embedding cache expiry)
// and prefix scans, which badgerhold does not expose.
type KVStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewKVStorage creates a new KVStorage instance
func NewKVStorage(db *BadgerDB, logger arbor.ILogger) interfaces.KeyValueStorage {
	return &KVStorage{
		db:     db,
		logger: logger,
	}
}

func (s *KVStorage) kvKey(key string) []byte {
	return []byte("kv:" + key)
}

func (s *KVStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.Store().Badger().View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(s.kvKey(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badgerdb.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kv get failed for %s: %w", key, err)
	}
	return value, true, nil
}

func (s *KVStorage) Set(ctx context.Context, key string, value []byte) error {
	err := s.db.Store().Badger().Update(func(txn *badgerdb.Txn) error {
		return txn.Set(s.kvKey(key), value)
	})
	if err != nil {
		return fmt.Errorf("kv set failed for %s: %w", key, err)
	}
	return nil
}

func (s *KVStorage) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := s.db.Store().Badger().Update(func(txn *badgerdb.Txn) error {
		entry := badgerdb.NewEntry(s.kvKey(key), value)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("kv set failed for %s: %w", key, err)
	}
	return nil
}

func (s *KVStorage) Delete(ctx context.Context, key string) error {
	err := s.db.Store().Badger().Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(s.kvKey(key))
	})
	if err != nil {
		return fmt.Errorf("kv delete failed for %s: %w", key, err)
	}
	return nil
}

// DeletePrefix removes all keys under a prefix and returns the count.
func (s *KVStorage) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var keys [][]byte
	fullPrefix := s.kvKey(prefix)

	err := s.db.Store().Badger().View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(fullPrefix); it.ValidForPrefix(fullPrefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("kv prefix scan failed for %s: %w", prefix, err)
	}

	deleted := 0
	for _, key := range keys {
		err := s.db.Store().Badger().Update(func(txn *badgerdb.Txn) error {
			return txn.Delete(key)
		})
		if err != nil {
			return deleted, fmt.Errorf("kv prefix delete failed: %w", err)
		}
		deleted++
	}

	return deleted, nil
}
