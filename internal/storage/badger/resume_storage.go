package badger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/seligo/internal/interfaces"
	"github.com/ternarybob/seligo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ResumeStorage implements the ResumeStorage interface for Badger
type ResumeStorage struct {
	db     *BadgerDB
	mu     sync.Mutex
	logger arbor.ILogger
}

// NewResumeStorage creates a new ResumeStorage instance
func NewResumeStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ResumeStorage {
	return &ResumeStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ResumeStorage) SaveResume(ctx context.Context, resume *models.Resume) error {
	if resume.ID == "" {
		return fmt.Errorf("resume ID is required")
	}
	if resume.CreatedAt.IsZero() {
		resume.CreatedAt = time.Now()
	}
	resume.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(resume.ID, resume); err != nil {
		return fmt.Errorf("failed to save resume: %w", err)
	}
	return nil
}

func (s *ResumeStorage) GetResume(ctx context.Context, resumeID string) (*models.Resume, error) {
	var resume models.Resume
	if err := s.db.Store().Get(resumeID, &resume); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("resume not found: %s", resumeID)
		}
		return nil, fmt.Errorf("failed to get resume: %w", err)
	}
	return &resume, nil
}

func (s *ResumeStorage) ListResumesByJob(ctx context.Context, jobID string) ([]*models.Resume, error) {
	var resumes []models.Resume
	query := badgerhold.Where("JobID").Eq(jobID).Index("JobID").SortBy("CreatedAt")
	if err := s.db.Store().Find(&resumes, query); err != nil {
		return nil, fmt.Errorf("failed to list resumes for job %s: %w", jobID, err)
	}

	result := make([]*models.Resume, len(resumes))
	for i := range resumes {
		result[i] = &resumes[i]
	}
	return result, nil
}

// UpdateStageStatus updates one per-stage status field. Regressing an
// earlier stage resets the later ones, preserving the
// embedding => parsing => extraction success invariant.
func (s *ResumeStorage) UpdateStageStatus(ctx context.Context, resumeID string, stage interfaces.ResumeStage, status models.StageStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	resume, err := s.GetResume(ctx, resumeID)
	if err != nil {
		return err
	}

	switch stage {
	case interfaces.ResumeStageExtraction:
		resume.ExtractionStatus = status
		if status != models.StageSuccess {
			resume.ParsingStatus = models.StagePending
			resume.EmbeddingStatus = models.StagePending
		}
	case interfaces.ResumeStageParsing:
		resume.ParsingStatus = status
		if status != models.StageSuccess {
			resume.EmbeddingStatus = models.StagePending
		}
	case interfaces.ResumeStageEmbedding:
		resume.EmbeddingStatus = status
	default:
		return fmt.Errorf("unknown resume stage: %s", stage)
	}

	if errMsg != "" {
		resume.Error = errMsg
	}

	return s.SaveResume(ctx, resume)
}

func (s *ResumeStorage) SaveRawText(ctx context.Context, resumeID, rawText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	resume, err := s.GetResume(ctx, resumeID)
	if err != nil {
		return err
	}
	resume.RawText = rawText
	return s.SaveResume(ctx, resume)
}

func (s *ResumeStorage) SaveParsedContent(ctx context.Context, resumeID string, parsed *models.ParsedResume) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	resume, err := s.GetResume(ctx, resumeID)
	if err != nil {
		return err
	}
	resume.Parsed = parsed
	return s.SaveResume(ctx, resume)
}

func (s *ResumeStorage) SaveResumeEmbeddings(ctx context.Context, resumeID string, embeddings *models.SectionEmbeddings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	resume, err := s.GetResume(ctx, resumeID)
	if err != nil {
		return err
	}
	resume.Embeddings = embeddings
	return s.SaveResume(ctx, resume)
}

// ListStale returns resumes stuck in a processing state since before the
// cutoff. Used by the maintenance sweep to re-enqueue abandoned work.
func (s *ResumeStorage) ListStale(ctx context.Context, olderThan time.Time) ([]*models.Resume, error) {
	var resumes []models.Resume
	query := badgerhold.Where("UpdatedAt").Lt(olderThan)
	if err := s.db.Store().Find(&resumes, query); err != nil {
		return nil, fmt.Errorf("failed to list stale resumes: %w", err)
	}

	var result []*models.Resume
	for i := range resumes {
		r := &resumes[i]
		if r.ExtractionStatus == models.StageProcessing ||
			r.ParsingStatus == models.StageProcessing ||
			r.EmbeddingStatus == models.StageProcessing {
			result = append(result, r)
		}
	}
	return result, nil
}

func (s *ResumeStorage) DeleteResume(ctx context.Context, resumeID string) error {
	if err := s.db.Store().Delete(resumeID, &models.Resume{}); err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete resume: %w", err)
	}
	return nil
}
