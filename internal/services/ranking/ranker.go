package ranking

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/seligo/internal/common"
	"github.com/ternarybob/seligo/internal/interfaces"
	"github.com/ternarybob/seligo/internal/models"
	"github.com/ternarybob/seligo/internal/services/llm"
)

// DefaultBatchSize bounds the candidates sent in one re-rank call.
const DefaultBatchSize = 30

// Ranker orders candidates by composite score, optionally refined by a
// second-pass LLM re-rank over batches of candidate summaries.
type Ranker struct {
	client    interfaces.ModelClient
	model     string
	batchSize int
	enabled   bool
	logger    arbor.ILogger
}

func NewRanker(client interfaces.ModelClient, config *common.RankingConfig, logger arbor.ILogger) *Ranker {
	batchSize := DefaultBatchSize
	enabled := true
	model := ""
	if config != nil {
		if config.BatchSize > 0 {
			batchSize = config.BatchSize
		}
		enabled = config.Enabled
		model = config.Model
	}
	return &Ranker{
		client:    client,
		model:     model,
		batchSize: batchSize,
		enabled:   enabled,
		logger:    logger,
	}
}

// BatchCount returns how many re-rank batches a candidate set needs.
func (r *Ranker) BatchCount(eligible int) int {
	if eligible == 0 {
		return 0
	}
	return (eligible + r.batchSize - 1) / r.batchSize
}

// Eligible filters and orders the rankable results: compliance passed and a
// defined final score, descending by final score, candidate ID ascending on
// ties.
func Eligible(results []*models.ScoreResult) []*models.ScoreResult {
	eligible := make([]*models.ScoreResult, 0, len(results))
	for _, result := range results {
		if result.Rankable() {
			eligible = append(eligible, result)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := *eligible[i].FinalScore, *eligible[j].FinalScore
		if a != b {
			return a > b
		}
		return eligible[i].ResumeID < eligible[j].ResumeID
	})
	return eligible
}

// Batches partitions the ordered eligible set into rank-order batches.
func (r *Ranker) Batches(eligible []*models.ScoreResult) [][]*models.ScoreResult {
	var batches [][]*models.ScoreResult
	for start := 0; start < len(eligible); start += r.batchSize {
		end := start + r.batchSize
		if end > len(eligible) {
			end = len(eligible)
		}
		batches = append(batches, eligible[start:end])
	}
	return batches
}

// rerankEntry is one candidate row in the structured re-rank response.
type rerankEntry struct {
	CandidateID         string   `json:"candidate_id"`
	LLMRerankScore      float64  `json:"llm_rerank_score"`
	MeetsRequirements   bool     `json:"meets_requirements"`
	RequirementsMet     []string `json:"requirements_met,omitempty"`
	RequirementsMissing []string `json:"requirements_missing,omitempty"`
}

type rerankResponse struct {
	Candidates []rerankEntry `json:"candidates"`
}

// RerankBatch sends one batch to the model and returns scores keyed by
// candidate ID. IDs outside the batch are discarded.
func (r *Ranker) RerankBatch(ctx context.Context, job *models.Job, batch []*models.ScoreResult, resumes map[string]*models.Resume) (map[string]float64, error) {
	prompt, err := r.buildPrompt(job, batch, resumes)
	if err != nil {
		return nil, err
	}

	raw, err := r.client.Complete(ctx, &interfaces.CompleteRequest{
		SchemaName: llm.SchemaNameRerank,
		Schema:     llm.RerankSchema(),
		System:     "You rank job candidates. Score each candidate strictly on fit against the job requirements provided. Only return candidate_ids from the input.",
		Prompt:     prompt,
		Model:      r.model,
	})
	if err != nil {
		return nil, err
	}

	var response rerankResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}

	allowed := make(map[string]bool, len(batch))
	for _, result := range batch {
		allowed[result.ResumeID] = true
	}

	scores := make(map[string]float64, len(response.Candidates))
	for _, entry := range response.Candidates {
		if !allowed[entry.CandidateID] {
			r.logger.Warn().
				Str("job_id", job.ID).
				Str("candidate_id", entry.CandidateID).
				Msg("Rerank response contained unknown candidate, ignoring")
			continue
		}
		score := entry.LLMRerankScore
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		scores[entry.CandidateID] = score
	}

	return scores, nil
}

// Finalize applies re-rank scores, re-sorts, and assigns dense 1-based
// ranks. Candidates missing an LLM score keep their composite score as the
// adjusted score, so ranking degrades cleanly when batches fail.
func (r *Ranker) Finalize(eligible []*models.ScoreResult, llmScores map[string]float64) {
	for _, result := range eligible {
		if score, ok := llmScores[result.ResumeID]; ok {
			s := score
			result.LLMRerankScore = &s
			result.AdjustedScore = s
		} else {
			result.LLMRerankScore = nil
			result.AdjustedScore = *result.FinalScore
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].AdjustedScore != eligible[j].AdjustedScore {
			return eligible[i].AdjustedScore > eligible[j].AdjustedScore
		}
		if *eligible[i].FinalScore != *eligible[j].FinalScore {
			return *eligible[i].FinalScore > *eligible[j].FinalScore
		}
		return eligible[i].ResumeID < eligible[j].ResumeID
	})

	for i, result := range eligible {
		result.Rank = i + 1
	}
}

// Enabled reports whether the LLM re-rank pass runs at all.
func (r *Ranker) Enabled() bool {
	return r.enabled && r.client != nil
}

// buildPrompt assembles the JD summary, the filter requirements, and one
// compact summary per candidate.
func (r *Ranker) buildPrompt(job *models.Job, batch []*models.ScoreResult, resumes map[string]*models.Resume) (string, error) {
	var b strings.Builder

	b.WriteString("## Job\n")
	if job.Analysis != nil {
		jdSummary := map[string]interface{}{
			"role_title":       job.Analysis.RoleTitle,
			"seniority":        job.Analysis.Seniority,
			"required_skills":  job.Analysis.RequiredSkills,
			"preferred_skills": job.Analysis.PreferredSkills,
			"responsibilities": job.Analysis.Responsibilities,
			"domain_tags":      job.Analysis.DomainTags,
		}
		data, err := json.Marshal(jdSummary)
		if err != nil {
			return "", err
		}
		b.Write(data)
		b.WriteString("\n")
	}

	if job.FilterRequirements != nil {
		b.WriteString("\n## Requirements\n")
		data, err := json.Marshal(job.FilterRequirements)
		if err != nil {
			return "", err
		}
		b.Write(data)
		b.WriteString("\n")
	}

	b.WriteString("\n## Candidates\n")
	for _, result := range batch {
		summary := candidateSummary(result, resumes[result.ResumeID])
		data, err := json.Marshal(summary)
		if err != nil {
			return "", err
		}
		b.Write(data)
		b.WriteString("\n")
	}

	b.WriteString("\nScore every candidate above. Return one entry per candidate_id.")
	return b.String(), nil
}

// candidateSummary is the compact per-candidate view sent to the model:
// scores, experience, location, top 10 skills, top 3 projects, and the
// per-requirement compliance outcomes.
func candidateSummary(result *models.ScoreResult, resume *models.Resume) map[string]interface{} {
	summary := map[string]interface{}{
		"candidate_id": result.ResumeID,
		"scores": map[string]float64{
			"keyword":  result.KeywordScore,
			"semantic": result.SemanticScore,
			"project":  result.ProjectScore,
			"final":    *result.FinalScore,
		},
		"per_requirement": result.Compliance.PerRequirement,
	}

	if resume == nil || resume.Parsed == nil {
		return summary
	}
	parsed := resume.Parsed

	if parsed.YearsExperience != nil {
		summary["years_experience"] = *parsed.YearsExperience
	}
	if parsed.Location != "" {
		summary["location"] = parsed.Location
	}

	skills := make([]string, 0, len(parsed.SkillSet()))
	for skill := range parsed.SkillSet() {
		skills = append(skills, skill)
	}
	sort.Strings(skills)
	if len(skills) > 10 {
		skills = skills[:10]
	}
	summary["top_skills"] = skills

	projects := append([]models.Project{}, parsed.Projects...)
	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].Metrics.WeightedAvg() > projects[j].Metrics.WeightedAvg()
	})
	if len(projects) > 3 {
		projects = projects[:3]
	}
	top := make([]map[string]interface{}, 0, len(projects))
	for _, p := range projects {
		top = append(top, map[string]interface{}{
			"name":        p.Name,
			"description": common.Truncate(p.Description, 400),
			"skills":      p.PrimarySkills,
		})
	}
	summary["top_projects"] = top

	return summary
}
