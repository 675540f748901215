package scoring

import (
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/seligo/internal/common"
	"github.com/ternarybob/seligo/internal/models"
	"github.com/ternarybob/seligo/internal/services/compliance"
)

// Scorer computes full score results for one job's candidate batch.
type Scorer struct {
	filter     *compliance.Filter
	thresholds SemanticThresholds
	logger     arbor.ILogger
}

func NewScorer(filter *compliance.Filter, config *common.ScoringConfig, logger arbor.ILogger) *Scorer {
	thresholds := DefaultThresholds()
	if config != nil {
		if config.SimilarityTauCoverage > 0 {
			thresholds.TauCoverage = config.SimilarityTauCoverage
		}
		if config.SimilarityTauAlignment > 0 {
			thresholds.TauAlignment = config.SimilarityTauAlignment
		}
	}
	return &Scorer{filter: filter, thresholds: thresholds, logger: logger}
}

// ScoreBatch evaluates compliance and all three primitive scores for every
// fully processed resume, applies batch semantic normalization, and returns
// one result per candidate. Candidates failing compliance still get scores
// recorded for audit; Rankable() excludes them from ordering. The input is
// processed in resume-ID order so the batch normalization is reproducible.
func (s *Scorer) ScoreBatch(job *models.Job, resumes []*models.Resume) []*models.ScoreResult {
	candidates := make([]*models.Resume, 0, len(resumes))
	for _, r := range resumes {
		if r.Processed() && r.Parsed != nil {
			candidates = append(candidates, r)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	if len(candidates) == 0 {
		return nil
	}

	results := make([]*models.ScoreResult, len(candidates))
	rawSemantic := make([]float64, len(candidates))

	for i, resume := range candidates {
		comp := s.filter.Evaluate(job.FilterRequirements, resume.Parsed)
		keyword := KeywordScore(job.Analysis, resume.Parsed, job.FilterRequirements)
		rawSemantic[i] = SemanticScore(job.Embeddings, resume.Embeddings, s.thresholds)

		results[i] = &models.ScoreResult{
			ID:                common.ScoreResultID(job.ID, resume.ID),
			JobID:             job.ID,
			ResumeID:          resume.ID,
			ProjectScore:      ProjectScore(resume.Parsed.Projects),
			KeywordScore:      keyword.Score,
			Compliance:        comp,
			KeywordComponents: keyword.Components,
			UpdatedAt:         time.Now(),
		}
	}

	normalized := NormalizeBatch(rawSemantic)

	for i, result := range results {
		result.SemanticScore = normalized[i]

		final, skipped := Composite(result.ProjectScore, result.SemanticScore, result.KeywordScore)
		result.FinalScore = final
		result.Skipped = skipped
		if final != nil {
			result.AdjustedScore = *final
		}

		s.logger.Debug().
			Str("job_id", job.ID).
			Str("resume_id", result.ResumeID).
			Bool("passed", result.Compliance.Passed).
			Bool("skipped", result.Skipped).
			Float64("keyword", result.KeywordScore).
			Float64("semantic", result.SemanticScore).
			Float64("project", result.ProjectScore).
			Msg("Candidate scored")
	}

	return results
}
