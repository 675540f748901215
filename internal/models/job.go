// -----------------------------------------------------------------------
// Job - a job description (JD) and the artifacts derived from it
// -----------------------------------------------------------------------

package models

import (
	"strings"
	"time"
)

// JobStatus tracks the JD lifecycle
type JobStatus string

const (
	JobStatusDraft      JobStatus = "draft"
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job holds a job description and everything derived from it. Once
// processing starts the job is locked: jd text, pdf reference and compliance
// prompts become immutable.
type Job struct {
	ID        string    `json:"id" badgerhold:"key"`
	Title     string    `json:"title"`
	RawJDText string    `json:"raw_jd_text,omitempty"`
	JDPDFRef  string    `json:"jd_pdf_ref,omitempty"` // storage path of the uploaded JD PDF
	Status    JobStatus `json:"status"`
	Locked    bool      `json:"locked"`
	Error     string    `json:"error,omitempty"`

	// Free-text compliance prompts supplied by the user; turned into typed
	// FilterRequirements during JD processing.
	MandatoryPrompt string `json:"mandatory_prompt,omitempty"`
	SoftPrompt      string `json:"soft_prompt,omitempty"`

	// Derived artifacts, nil until the JD pipeline succeeds. Each is
	// replaced atomically as a whole.
	Analysis           *JDAnalysis         `json:"jd_analysis,omitempty"`
	Embeddings         *SectionEmbeddings  `json:"jd_embeddings,omitempty"`
	FilterRequirements *FilterRequirements `json:"filter_requirements,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasInput reports whether the job carries enough input to enter processing.
func (j *Job) HasInput() bool {
	return strings.TrimSpace(j.RawJDText) != "" || j.JDPDFRef != ""
}

// Terminal reports whether the job reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// JDAnalysis is the structured summary produced by the parse stage.
type JDAnalysis struct {
	RoleTitle               string              `json:"role_title"`
	Seniority               string              `json:"seniority,omitempty"`
	RequiredSkills          []string            `json:"required_skills"`
	PreferredSkills         []string            `json:"preferred_skills,omitempty"`
	Responsibilities        []string            `json:"responsibilities,omitempty"`
	KeywordsFlat            []string            `json:"keywords_flat,omitempty"`
	KeywordsWeighted        map[string]float64  `json:"keywords_weighted,omitempty"` // skill -> weight in [0,1]
	CanonicalSkills         map[string][]string `json:"canonical_skills,omitempty"`  // category -> skills
	ToolsTech               []string            `json:"tools_tech,omitempty"`
	SoftSkills              []string            `json:"soft_skills,omitempty"`
	YearsExperienceRequired float64             `json:"years_experience_required,omitempty"`
	DomainTags              []string            `json:"domain_tags,omitempty"`
	// Weighting overrides keyword score component weights; values are
	// renormalized to sum to 1 before use.
	Weighting map[string]float64 `json:"weighting,omitempty"`
}

// Section names for JD and resume embeddings. The order is fixed and used
// wherever deterministic iteration matters.
const (
	SectionProfile          = "profile"
	SectionSkills           = "skills"
	SectionProjects         = "projects"
	SectionResponsibilities = "responsibilities"
	SectionEducation        = "education"
	SectionOverall          = "overall"
)

// SectionNames lists all embedding sections in canonical order.
var SectionNames = []string{
	SectionProfile,
	SectionSkills,
	SectionProjects,
	SectionResponsibilities,
	SectionEducation,
	SectionOverall,
}

// SectionEmbeddings maps a section name to an ordered sequence of
// per-sentence unit vectors (possibly length 1 for short sections).
type SectionEmbeddings struct {
	Model     string                 `json:"model"`
	Dimension int                    `json:"dimension"`
	Sections  map[string][][]float32 `json:"sections"`
}

// Complete reports whether all six sections are present.
func (e *SectionEmbeddings) Complete() bool {
	if e == nil || e.Sections == nil {
		return false
	}
	for _, name := range SectionNames {
		if _, ok := e.Sections[name]; !ok {
			return false
		}
	}
	return true
}
