package models

import (
	"strings"
	"time"
)

// StageStatus tracks one resume pipeline stage
type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageProcessing StageStatus = "processing"
	StageSuccess    StageStatus = "success"
	StageFailed     StageStatus = "failed"
)

// Resume is a candidate document scoped to a job. Per-stage statuses obey
// the invariant embedding=success => parsing=success => extraction=success.
type Resume struct {
	ID       string `json:"id" badgerhold:"key"`
	JobID    string `json:"job_id" badgerhold:"index"`
	Filename string `json:"filename"`
	FilePath string `json:"file_path,omitempty"`
	RawText  string `json:"raw_text,omitempty"`

	ExtractionStatus StageStatus `json:"extraction_status"`
	ParsingStatus    StageStatus `json:"parsing_status"`
	EmbeddingStatus  StageStatus `json:"embedding_status"`
	Error            string      `json:"error,omitempty"`

	Parsed     *ParsedResume      `json:"parsed_content,omitempty"`
	Embeddings *SectionEmbeddings `json:"resume_embeddings,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Processed reports whether all three stages completed successfully.
func (r *Resume) Processed() bool {
	return r.ExtractionStatus == StageSuccess &&
		r.ParsingStatus == StageSuccess &&
		r.EmbeddingStatus == StageSuccess
}

// ParsedResume is the structured content produced by the parse stage.
type ParsedResume struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location,omitempty"`

	YearsExperience *float64 `json:"years_experience,omitempty"` // nil when the resume gives no signal

	CanonicalSkills  map[string][]string `json:"canonical_skills,omitempty"` // same category schema as the JD
	InferredSkills   []InferredSkill     `json:"inferred_skills,omitempty"`
	SkillProficiency []SkillProficiency  `json:"skill_proficiency,omitempty"`
	Projects         []Project           `json:"projects,omitempty"`
	Experience       []ExperienceEntry   `json:"experience_entries,omitempty"`
	Education        []EducationEntry    `json:"education,omitempty"`
	DomainTags       []string            `json:"domain_tags,omitempty"`
	Summary          string              `json:"summary,omitempty"`
}

// InferredSkill is a skill the parser derived rather than read verbatim.
type InferredSkill struct {
	Skill      string   `json:"skill"`
	Confidence float64  `json:"confidence"` // in [0,1]
	Provenance []string `json:"provenance,omitempty"`
}

type SkillProficiency struct {
	Skill string `json:"skill"`
	Level string `json:"level,omitempty"` // beginner/intermediate/advanced/expert
	Years float64 `json:"years,omitempty"`
}

// Project carries the seven JD-anchored quality metrics, each in [0,1].
type Project struct {
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	TechKeywords  []string       `json:"tech_keywords,omitempty"`
	PrimarySkills []string       `json:"primary_skills,omitempty"`
	Metrics       ProjectMetrics `json:"metrics"`
}

type ProjectMetrics struct {
	Difficulty       float64 `json:"difficulty"`
	Novelty          float64 `json:"novelty"`
	SkillRelevance   float64 `json:"skill_relevance"`
	Complexity       float64 `json:"complexity"`
	TechnicalDepth   float64 `json:"technical_depth"`
	DomainRelevance  float64 `json:"domain_relevance"`
	ExecutionQuality float64 `json:"execution_quality"`
}

// WeightedAvg is the equal-weight mean of the seven metrics. The summation
// order is fixed for reproducibility.
func (m ProjectMetrics) WeightedAvg() float64 {
	sum := m.Difficulty
	sum += m.Novelty
	sum += m.SkillRelevance
	sum += m.Complexity
	sum += m.TechnicalDepth
	sum += m.DomainRelevance
	sum += m.ExecutionQuality
	return sum / 7.0
}

type ExperienceEntry struct {
	Title       string `json:"title"`
	Company     string `json:"company,omitempty"`
	Duration    string `json:"duration,omitempty"`
	Description string `json:"description,omitempty"`
}

type EducationEntry struct {
	Degree      string `json:"degree,omitempty"`
	Field       string `json:"field,omitempty"`
	Institution string `json:"institution,omitempty"`
	Year        string `json:"year,omitempty"`
}

// SkillSet returns the union of every skill surface the candidate exposes:
// canonical skills across all categories, inferred skills, proficiency
// entries, and per-project tech keywords and primary skills. Keys are
// normalized terms.
func (p *ParsedResume) SkillSet() map[string]bool {
	set := make(map[string]bool)
	add := func(s string) {
		if t := normalizeSkillKey(s); t != "" {
			set[t] = true
		}
	}

	for _, skills := range p.CanonicalSkills {
		for _, s := range skills {
			add(s)
		}
	}
	for _, s := range p.InferredSkills {
		add(s.Skill)
	}
	for _, s := range p.SkillProficiency {
		add(s.Skill)
	}
	for _, proj := range p.Projects {
		for _, s := range proj.TechKeywords {
			add(s)
		}
		for _, s := range proj.PrimarySkills {
			add(s)
		}
	}

	return set
}

// FullText concatenates descriptive resume text for fallback substring
// matching: project and experience descriptions, summary, and entry titles.
func (p *ParsedResume) FullText() string {
	var b strings.Builder
	b.WriteString(p.Summary)
	for _, proj := range p.Projects {
		b.WriteString("\n")
		b.WriteString(proj.Name)
		b.WriteString(" ")
		b.WriteString(proj.Description)
	}
	for _, exp := range p.Experience {
		b.WriteString("\n")
		b.WriteString(exp.Title)
		b.WriteString(" ")
		b.WriteString(exp.Company)
		b.WriteString(" ")
		b.WriteString(exp.Description)
	}
	for _, edu := range p.Education {
		b.WriteString("\n")
		b.WriteString(edu.Degree)
		b.WriteString(" ")
		b.WriteString(edu.Field)
		b.WriteString(" ")
		b.WriteString(edu.Institution)
	}
	return b.String()
}

// ExperienceText concatenates experience entry text only, for the
// experience-keyword score component.
func (p *ParsedResume) ExperienceText() string {
	var b strings.Builder
	for _, exp := range p.Experience {
		b.WriteString(exp.Title)
		b.WriteString(" ")
		b.WriteString(exp.Description)
		b.WriteString("\n")
	}
	return b.String()
}

// normalizeSkillKey mirrors common.NormalizeTerm without importing common
// (models stays dependency-free below the service layer).
func normalizeSkillKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
