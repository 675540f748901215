package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/seligo/internal/models"
)

// JobStorage persists Job documents. Nested blobs (analysis, embeddings,
// filter requirements) are replaced atomically by whole-document upsert;
// field-level updates go through the dedicated mutators.
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	UpdateJobStatus(ctx context.Context, jobID string, status models.JobStatus, errMsg string) error
	SetJobLocked(ctx context.Context, jobID string, locked bool) error
	SaveJobArtifacts(ctx context.Context, jobID string, analysis *models.JDAnalysis, embeddings *models.SectionEmbeddings, requirements *models.FilterRequirements) error
	ListJobs(ctx context.Context, limit, offset int) ([]*models.Job, error)
	DeleteJob(ctx context.Context, jobID string) error
}

// ResumeStorage persists Resume documents.
type ResumeStorage interface {
	SaveResume(ctx context.Context, resume *models.Resume) error
	GetResume(ctx context.Context, resumeID string) (*models.Resume, error)
	ListResumesByJob(ctx context.Context, jobID string) ([]*models.Resume, error)
	UpdateStageStatus(ctx context.Context, resumeID string, stage ResumeStage, status models.StageStatus, errMsg string) error
	SaveRawText(ctx context.Context, resumeID, rawText string) error
	SaveParsedContent(ctx context.Context, resumeID string, parsed *models.ParsedResume) error
	SaveResumeEmbeddings(ctx context.Context, resumeID string, embeddings *models.SectionEmbeddings) error
	ListStale(ctx context.Context, olderThan time.Time) ([]*models.Resume, error)
	DeleteResume(ctx context.Context, resumeID string) error
}

// ResumeStage identifies a resume pipeline stage for status updates.
type ResumeStage string

const (
	ResumeStageExtraction ResumeStage = "extraction"
	ResumeStageParsing    ResumeStage = "parsing"
	ResumeStageEmbedding  ResumeStage = "embedding"
)

// ScoreStorage persists ScoreResults with a unique (job_id, resume_id) key.
// Upsert is atomic; the second writer of the same key overwrites.
type ScoreStorage interface {
	UpsertScore(ctx context.Context, score *models.ScoreResult) error
	GetScore(ctx context.Context, jobID, resumeID string) (*models.ScoreResult, error)
	// ListScoresByJob returns all results for a job ordered by final_score
	// descending (nil finals last).
	ListScoresByJob(ctx context.Context, jobID string) ([]*models.ScoreResult, error)
	DeleteScoresByJob(ctx context.Context, jobID string) error
}

// KeyValueStorage is a generic KV store used for the embedding cache and
// LLM audit records.
type KeyValueStorage interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// StorageManager aggregates the typed stores behind one lifecycle.
type StorageManager interface {
	JobStorage() JobStorage
	ResumeStorage() ResumeStorage
	ScoreStorage() ScoreStorage
	KeyValueStorage() KeyValueStorage
	Close() error
}
