package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/ternarybob/seligo/internal/common"
	"github.com/ternarybob/seligo/internal/models"
)

// Wire types mirror the provider schemas, which use arrays of {key, value}
// objects where the domain models use maps (structured-output schemas cannot
// express free-form map keys).

type weightedKeywordWire struct {
	Keyword string  `json:"keyword"`
	Weight  float64 `json:"weight"`
}

type skillCategoryWire struct {
	Category string   `json:"category"`
	Skills   []string `json:"skills"`
}

type jdAnalysisWire struct {
	RoleTitle               string                `json:"role_title"`
	Seniority               string                `json:"seniority"`
	RequiredSkills          []string              `json:"required_skills"`
	PreferredSkills         []string              `json:"preferred_skills"`
	Responsibilities        []string              `json:"responsibilities"`
	KeywordsFlat            []string              `json:"keywords_flat"`
	KeywordsWeighted        []weightedKeywordWire `json:"keywords_weighted"`
	CanonicalSkills         []skillCategoryWire   `json:"canonical_skills"`
	ToolsTech               []string              `json:"tools_tech"`
	SoftSkills              []string              `json:"soft_skills"`
	YearsExperienceRequired float64               `json:"years_experience_required"`
	DomainTags              []string              `json:"domain_tags"`
}

// decodeJDAnalysis converts the wire form to the domain model, applying
// canonical skill normalization to every skill list.
func decodeJDAnalysis(raw json.RawMessage) (*models.JDAnalysis, error) {
	var wire jdAnalysisWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode jd analysis: %w", err)
	}

	analysis := &models.JDAnalysis{
		RoleTitle:               wire.RoleTitle,
		Seniority:               wire.Seniority,
		RequiredSkills:          common.CanonicalSkillList(wire.RequiredSkills),
		PreferredSkills:         common.CanonicalSkillList(wire.PreferredSkills),
		Responsibilities:        wire.Responsibilities,
		KeywordsFlat:            wire.KeywordsFlat,
		ToolsTech:               common.CanonicalSkillList(wire.ToolsTech),
		SoftSkills:              wire.SoftSkills,
		YearsExperienceRequired: wire.YearsExperienceRequired,
		DomainTags:              wire.DomainTags,
	}

	if len(wire.KeywordsWeighted) > 0 {
		analysis.KeywordsWeighted = make(map[string]float64, len(wire.KeywordsWeighted))
		for _, kw := range wire.KeywordsWeighted {
			if kw.Keyword != "" {
				analysis.KeywordsWeighted[kw.Keyword] = kw.Weight
			}
		}
	}

	if len(wire.CanonicalSkills) > 0 {
		analysis.CanonicalSkills = make(map[string][]string, len(wire.CanonicalSkills))
		for _, cat := range wire.CanonicalSkills {
			if cat.Category != "" {
				analysis.CanonicalSkills[cat.Category] = common.CanonicalSkillList(cat.Skills)
			}
		}
	}

	return analysis, nil
}

type parsedResumeWire struct {
	Name             string                    `json:"name"`
	Email            string                    `json:"email"`
	Phone            string                    `json:"phone"`
	Location         string                    `json:"location"`
	YearsExperience  *float64                  `json:"years_experience"`
	Summary          string                    `json:"summary"`
	CanonicalSkills  []skillCategoryWire       `json:"canonical_skills"`
	InferredSkills   []models.InferredSkill    `json:"inferred_skills"`
	SkillProficiency []models.SkillProficiency `json:"skill_proficiency"`
	Projects         []models.Project          `json:"projects"`
	Experience       []models.ExperienceEntry  `json:"experience_entries"`
	Education        []models.EducationEntry   `json:"education"`
	DomainTags       []string                  `json:"domain_tags"`
}

func decodeParsedResume(raw json.RawMessage) (*models.ParsedResume, error) {
	var wire parsedResumeWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode parsed resume: %w", err)
	}

	parsed := &models.ParsedResume{
		Name:             wire.Name,
		Email:            wire.Email,
		Phone:            wire.Phone,
		Location:         wire.Location,
		YearsExperience:  wire.YearsExperience,
		Summary:          wire.Summary,
		InferredSkills:   wire.InferredSkills,
		SkillProficiency: wire.SkillProficiency,
		Projects:         wire.Projects,
		Experience:       wire.Experience,
		Education:        wire.Education,
		DomainTags:       wire.DomainTags,
	}

	for i := range parsed.Projects {
		parsed.Projects[i].TechKeywords = common.CanonicalSkillList(parsed.Projects[i].TechKeywords)
		parsed.Projects[i].PrimarySkills = common.CanonicalSkillList(parsed.Projects[i].PrimarySkills)
	}

	if len(wire.CanonicalSkills) > 0 {
		parsed.CanonicalSkills = make(map[string][]string, len(wire.CanonicalSkills))
		for _, cat := range wire.CanonicalSkills {
			if cat.Category != "" {
				parsed.CanonicalSkills[cat.Category] = common.CanonicalSkillList(cat.Skills)
			}
		}
	}

	return parsed, nil
}

type requirementWire struct {
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	Min            *float64 `json:"min"`
	Max            *float64 `json:"max"`
	Unit           string   `json:"unit"`
	Required       []string `json:"required"`
	Optional       []string `json:"optional"`
	Location       string   `json:"location"`
	RequiredFields []string `json:"required_fields"`
	Category       string   `json:"category"`
	Allowed        []string `json:"allowed"`
	Excluded       []string `json:"excluded"`
	KeyTerms       string   `json:"key_terms"`
	BoolRequired   *bool    `json:"bool_required"`
}

type complianceWire struct {
	Mandatory []requirementWire `json:"mandatory"`
	Soft      []requirementWire `json:"soft"`
}

func decodeFilterRequirements(raw json.RawMessage) (*models.FilterRequirements, error) {
	var wire complianceWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode filter requirements: %w", err)
	}

	requirements := &models.FilterRequirements{
		Mandatory: make(map[string]models.RequirementSpec, len(wire.Mandatory)),
		Soft:      make(map[string]models.RequirementSpec, len(wire.Soft)),
	}
	for _, req := range wire.Mandatory {
		if req.Name != "" {
			requirements.Mandatory[req.Name] = req.toSpec()
		}
	}
	for _, req := range wire.Soft {
		if req.Name != "" {
			requirements.Soft[req.Name] = req.toSpec()
		}
	}
	return requirements, nil
}

func (w requirementWire) toSpec() models.RequirementSpec {
	return models.RequirementSpec{
		Type:           models.RequirementType(w.Type),
		Min:            w.Min,
		Max:            w.Max,
		Unit:           w.Unit,
		Required:       w.Required,
		Optional:       w.Optional,
		Location:       w.Location,
		RequiredFields: w.RequiredFields,
		Category:       w.Category,
		Allowed:        w.Allowed,
		Excluded:       w.Excluded,
		KeyTerms:       w.KeyTerms,
		BoolRequired:   w.BoolRequired,
	}
}
