package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/seligo/internal/common"
	"github.com/ternarybob/seligo/internal/interfaces"
	"golang.org/x/sync/errgroup"
)

const cacheKeyPrefix = "embed:"

// Service implements SectionEmbedder with a content-addressed cache. Cache
// keys are SHA-256 over model and text, so the same text embedded for any
// job hits the same entry, and entries survive process restarts.
type Service struct {
	client    interfaces.ModelClient
	kv        interfaces.KeyValueStorage
	model     string
	dim       int
	batchSize int
	cacheTTL  time.Duration
	logger    arbor.ILogger

	// flights tracks in-progress embeds per content key so concurrent
	// misses on the same content collapse to one provider call, even when
	// the surrounding batches differ.
	flightMu sync.Mutex
	flights  map[string]*flight
}

// flight is one in-progress embed of a single content key. done is closed
// once vec or err is set.
type flight struct {
	done chan struct{}
	vec  []float32
	err  error
}

var _ interfaces.SectionEmbedder = (*Service)(nil)

// NewService creates an embedding service over a model client.
func NewService(client interfaces.ModelClient, kv interfaces.KeyValueStorage, config *common.EmbeddingConfig, logger arbor.ILogger) *Service {
	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = 256
	}
	return &Service{
		client:    client,
		kv:        kv,
		model:     config.Model,
		dim:       config.Dimension,
		batchSize: batchSize,
		cacheTTL:  common.MustDuration(config.CacheTTL, 30*24*time.Hour),
		flights:   make(map[string]*flight),
		logger:    logger,
	}
}

// Model returns the embedding model name.
func (s *Service) Model() string {
	return s.model
}

// Dimension returns the embedding vector dimension.
func (s *Service) Dimension() int {
	return s.dim
}

// contentKey addresses a cache entry by model and exact text content.
func (s *Service) contentKey(text string) string {
	h := sha256.New()
	h.Write([]byte(s.model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// EmbedTexts embeds each text, preserving input order. Duplicate texts in
// one call and texts already cached cost no provider tokens; concurrent
// calls missing on the same content collapse to one provider call.
func (s *Service) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	// Dedupe while remembering where each unique text goes in the output.
	keys := make([]string, len(texts))
	uniqueKeys := make([]string, 0, len(texts))
	uniqueTexts := make(map[string]string, len(texts))
	for i, text := range texts {
		key := s.contentKey(text)
		keys[i] = key
		if _, seen := uniqueTexts[key]; !seen {
			uniqueTexts[key] = text
			uniqueKeys = append(uniqueKeys, key)
		}
	}

	vectors := make(map[string][]float32, len(uniqueKeys))
	misses := make([]string, 0, len(uniqueKeys))
	for _, key := range uniqueKeys {
		if vec, ok := s.cacheGet(ctx, key); ok {
			vectors[key] = vec
		} else {
			misses = append(misses, key)
		}
	}

	if len(misses) > 0 {
		embedded, err := s.embedMisses(ctx, misses, uniqueTexts)
		if err != nil {
			return nil, err
		}
		for key, vec := range embedded {
			vectors[key] = vec
		}
	}

	s.logger.Debug().
		Int("texts", len(texts)).
		Int("unique", len(uniqueKeys)).
		Int("misses", len(misses)).
		Msg("Embedded texts")

	out := make([][]float32, len(texts))
	for i, key := range keys {
		vec, ok := vectors[key]
		if !ok {
			return nil, fmt.Errorf("embedding missing for input %d", i)
		}
		out[i] = vec
	}
	return out, nil
}

// embedMisses embeds the missed texts, collapsing per content key: keys
// another call is already embedding are waited on, the rest are claimed and
// embedded here. Collapse works across overlapping batches because the
// flight registry is keyed per content, not per batch.
func (s *Service) embedMisses(ctx context.Context, misses []string, texts map[string]string) (map[string][]float32, error) {
	owned := make([]string, 0, len(misses))
	waits := make(map[string]*flight, len(misses))

	s.flightMu.Lock()
	for _, key := range misses {
		if f, ok := s.flights[key]; ok {
			waits[key] = f
			continue
		}
		s.flights[key] = &flight{done: make(chan struct{})}
		owned = append(owned, key)
	}
	s.flightMu.Unlock()

	vectors := make(map[string][]float32, len(misses))

	if len(owned) > 0 {
		embedded, err := s.embedOwned(ctx, owned, texts)

		// Fulfill every claimed flight before propagating an error, or
		// waiters would hang.
		s.flightMu.Lock()
		for _, key := range owned {
			f := s.flights[key]
			if err != nil {
				f.err = err
			} else {
				f.vec = embedded[key]
			}
			delete(s.flights, key)
			close(f.done)
		}
		s.flightMu.Unlock()

		if err != nil {
			return nil, err
		}
		for key, vec := range embedded {
			vectors[key] = vec
		}
	}

	for key, f := range waits {
		select {
		case <-f.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if f.err != nil {
			return nil, f.err
		}
		vectors[key] = f.vec
	}

	return vectors, nil
}

// embedOwned embeds the keys this call claimed, re-checking the cache first
// in case a sibling filled it after the caller's lookup. Chunks go to the
// provider in parallel.
func (s *Service) embedOwned(ctx context.Context, keys []string, texts map[string]string) (map[string][]float32, error) {
	vectors := make(map[string][]float32, len(keys))

	still := make([]string, 0, len(keys))
	for _, key := range keys {
		if vec, ok := s.cacheGet(ctx, key); ok {
			vectors[key] = vec
		} else {
			still = append(still, key)
		}
	}
	if len(still) == 0 {
		return vectors, nil
	}

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	for start := 0; start < len(still); start += s.batchSize {
		end := start + s.batchSize
		if end > len(still) {
			end = len(still)
		}
		chunk := still[start:end]

		group.Go(func() error {
			batch := make([]string, len(chunk))
			for i, key := range chunk {
				batch[i] = texts[key]
			}

			embedded, err := s.client.Embed(groupCtx, batch, s.model)
			if err != nil {
				return err
			}
			if len(embedded) != len(chunk) {
				return fmt.Errorf("provider returned %d vectors for %d texts", len(embedded), len(chunk))
			}

			mu.Lock()
			for i, key := range chunk {
				vectors[key] = embedded[i]
			}
			mu.Unlock()

			for i, key := range chunk {
				s.cacheSet(ctx, key, embedded[i])
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	return vectors, nil
}

func (s *Service) cacheGet(ctx context.Context, key string) ([]float32, bool) {
	data, found, err := s.kv.Get(ctx, cacheKeyPrefix+key)
	if err != nil || !found {
		return nil, false
	}

	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Corrupt embedding cache entry, ignoring")
		return nil, false
	}
	if s.dim > 0 && len(vec) != s.dim {
		return nil, false
	}
	return vec, true
}

func (s *Service) cacheSet(ctx context.Context, key string, vec []float32) {
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := s.kv.SetWithTTL(ctx, cacheKeyPrefix+key, data, s.cacheTTL); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to write embedding cache entry")
	}
}
