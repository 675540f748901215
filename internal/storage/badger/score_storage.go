package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/seligo/internal/common"
	"github.com/ternarybob/seligo/internal/interfaces"
	"github.com/ternarybob/seligo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ScoreStorage implements the ScoreStorage interface for Badger. The record
// key is job_id:resume_id, which makes the (job, resume) uniqueness
// constraint structural: upserting the same pair always lands on one record.
type ScoreStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewScoreStorage creates a new ScoreStorage instance
func NewScoreStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ScoreStorage {
	return &ScoreStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ScoreStorage) UpsertScore(ctx context.Context, score *models.ScoreResult) error {
	if score.JobID == "" || score.ResumeID == "" {
		return fmt.Errorf("score requires job_id and resume_id")
	}
	score.ID = common.ScoreResultID(score.JobID, score.ResumeID)
	score.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(score.ID, score); err != nil {
		return fmt.Errorf("failed to upsert score %s: %w", score.ID, err)
	}
	return nil
}

func (s *ScoreStorage) GetScore(ctx context.Context, jobID, resumeID string) (*models.ScoreResult, error) {
	var score models.ScoreResult
	id := common.ScoreResultID(jobID, resumeID)
	if err := s.db.Store().Get(id, &score); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("score not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get score: %w", err)
	}
	return &score, nil
}

func (s *ScoreStorage) ListScoresByJob(ctx context.Context, jobID string) ([]*models.ScoreResult, error) {
	var scores []models.ScoreResult
	query := badgerhold.Where("JobID").Eq(jobID).Index("JobID")
	if err := s.db.Store().Find(&scores, query); err != nil {
		return nil, fmt.Errorf("failed to list scores for job %s: %w", jobID, err)
	}

	result := make([]*models.ScoreResult, len(scores))
	for i := range scores {
		result[i] = &scores[i]
	}

	// Ordered by final_score descending, nil finals last, resume_id as a
	// deterministic tiebreak.
	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		switch {
		case a.FinalScore == nil && b.FinalScore == nil:
			return a.ResumeID < b.ResumeID
		case a.FinalScore == nil:
			return false
		case b.FinalScore == nil:
			return true
		case *a.FinalScore != *b.FinalScore:
			return *a.FinalScore > *b.FinalScore
		default:
			return a.ResumeID < b.ResumeID
		}
	})

	return result, nil
}

func (s *ScoreStorage) DeleteScoresByJob(ctx context.Context, jobID string) error {
	query := badgerhold.Where("JobID").Eq(jobID).Index("JobID")
	if err := s.db.Store().DeleteMatching(&models.ScoreResult{}, query); err != nil {
		return fmt.Errorf("failed to delete scores for job %s: %w", jobID, err)
	}
	return nil
}
