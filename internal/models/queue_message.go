package models

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNoMessage is returned when a queue is empty
var ErrNoMessage = errors.New("no messages in queue")

// Queue names. Concurrency per queue is configured, not hardcoded, but the
// names are part of the broker contract.
const (
	QueueJD        = "jd"
	QueueResume    = "resume"
	QueueRank      = "rank"
	QueueRankBatch = "rank_batch"
)

// QueueMessage is the envelope stored in the broker. Delivery is
// at-least-once; handlers are idempotent keyed by the payload id.
type QueueMessage struct {
	ID         string          `json:"id"`
	Queue      string          `json:"queue"`
	ParentID   string          `json:"parent_id,omitempty"` // flow parent message ID
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// JDPayload is the jd queue payload.
type JDPayload struct {
	JobID string `json:"job_id"`
}

// ResumePayload is the resume queue payload.
type ResumePayload struct {
	ResumeID string `json:"resume_id"`
	JobID    string `json:"job_id"`
	FilePath string `json:"file_path,omitempty"`
}

// RankPayload is the rank parent payload. The parent completes only after
// all child batches reach a terminal state.
type RankPayload struct {
	JobID        string `json:"job_id"`
	TotalBatches int    `json:"total_batches,omitempty"`
}

// RankBatchPayload is a rank child payload covering one re-rank batch.
type RankBatchPayload struct {
	JobID          string   `json:"job_id"`
	BatchIndex     int      `json:"batch_index"`
	ScoreResultIDs []string `json:"score_result_ids"`
}

// DecodePayload unmarshals the message payload into dst.
func (m *QueueMessage) DecodePayload(dst interface{}) error {
	return json.Unmarshal(m.Payload, dst)
}

// NewQueueMessage builds a message with a marshaled payload.
func NewQueueMessage(id, queue string, payload interface{}) (QueueMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return QueueMessage{}, err
	}
	return QueueMessage{
		ID:         id,
		Queue:      queue,
		Payload:    data,
		EnqueuedAt: time.Now(),
	}, nil
}
