package models

import "time"

// Compliance is the structured pass/fail evaluation of a resume against the
// JD's mandatory requirements. Passed is false if any non-empty mandatory
// requirement is missing.
type Compliance struct {
	Passed         bool                         `json:"passed"`
	Score          float64                      `json:"score"` // met / specified, 1.0 when nothing specified
	Met            []string                     `json:"met,omitempty"`
	Missing        []string                     `json:"missing,omitempty"`
	Reason         string                       `json:"reason,omitempty"`
	PerRequirement map[string]RequirementResult `json:"per_requirement,omitempty"`
	SoftResults    map[string]RequirementResult `json:"soft_results,omitempty"` // display only, never gates
}

// ScoreResult holds every score computed for one (job, resume) pair.
// Exactly one record exists per pair; the ID is job_id:resume_id.
type ScoreResult struct {
	ID       string `json:"id" badgerhold:"key"`
	JobID    string `json:"job_id" badgerhold:"index"`
	ResumeID string `json:"resume_id"`

	ProjectScore  float64 `json:"project_score"`
	KeywordScore  float64 `json:"keyword_score"`
	SemanticScore float64 `json:"semantic_score"`

	// FinalScore is nil when all three primitives are zero; the candidate is
	// then classified skipped rather than ranked at the bottom.
	FinalScore     *float64 `json:"final_score,omitempty"`
	LLMRerankScore *float64 `json:"llm_rerank_score,omitempty"`
	AdjustedScore  float64  `json:"adjusted_score"`

	Compliance Compliance `json:"compliance"`

	// Rank is dense and 1-based, assigned only among candidates with
	// Compliance.Passed and a defined FinalScore. Zero means unranked.
	Rank    int  `json:"rank,omitempty"`
	Skipped bool `json:"skipped,omitempty"`

	KeywordComponents map[string]float64 `json:"keyword_components,omitempty"` // audit detail

	UpdatedAt time.Time `json:"updated_at"`
}

// Rankable reports whether the result participates in ordering.
func (s *ScoreResult) Rankable() bool {
	return s.Compliance.Passed && s.FinalScore != nil
}
