package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/seligo/internal/interfaces"
)

// auditTTL bounds how long call records are retained.
const auditTTL = 7 * 24 * time.Hour

// CallRecord is one provider call outcome, persisted for inspection via the
// admin API.
type CallRecord struct {
	Op         string    `json:"op"` // "complete" or "embed"
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	SchemaName string    `json:"schema_name,omitempty"`
	BatchSize  int       `json:"batch_size,omitempty"`
	Attempts   int       `json:"attempts"`
	DurationMS int64     `json:"duration_ms"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Auditor persists call records in the key-value store under a time-ordered
// prefix. Writes are best-effort; an audit failure never fails the call.
type Auditor struct {
	kv     interfaces.KeyValueStorage
	logger arbor.ILogger
}

func NewAuditor(kv interfaces.KeyValueStorage, logger arbor.ILogger) *Auditor {
	return &Auditor{kv: kv, logger: logger}
}

// Record persists one call record.
func (a *Auditor) Record(ctx context.Context, record CallRecord) {
	if a.kv == nil {
		return
	}

	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}

	data, err := json.Marshal(record)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Failed to marshal LLM call record")
		return
	}

	key := fmt.Sprintf("llm:audit:%020d:%s", record.Timestamp.UnixNano(), uuid.New().String()[:8])
	if err := a.kv.SetWithTTL(ctx, key, data, auditTTL); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to persist LLM call record")
	}
}
