package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/seligo/internal/models"
)

func strongCandidate() *models.ParsedResume {
	return &models.ParsedResume{
		Summary: "Backend engineer focused on search infrastructure.",
		CanonicalSkills: map[string][]string{
			"languages": {"Go", "Python"},
			"infra":     {"Kubernetes", "PostgreSQL"},
		},
		Projects: []models.Project{
			{
				Name:         "Search platform",
				Description:  "Designed and scaled a distributed search platform.",
				TechKeywords: []string{"Go", "Kubernetes"},
				Metrics: models.ProjectMetrics{
					Difficulty: 0.8, Novelty: 0.6, SkillRelevance: 0.9, Complexity: 0.8,
					TechnicalDepth: 0.8, DomainRelevance: 0.7, ExecutionQuality: 0.8,
				},
			},
		},
		Experience: []models.ExperienceEntry{
			{Title: "Senior Engineer", Description: "Led the platform team. Designed and built the ingestion pipeline. Scaled it to production."},
		},
		Education:  []models.EducationEntry{{Degree: "BSc", Field: "Computer Science"}},
		DomainTags: []string{"search", "infrastructure"},
	}
}

func TestKeywordScoreComponents(t *testing.T) {
	analysis := &models.JDAnalysis{
		RequiredSkills:   []string{"Go", "Kubernetes"},
		PreferredSkills:  []string{"Rust"},
		KeywordsWeighted: map[string]float64{"go": 1.0, "kubernetes": 0.8, "terraform": 0.5},
		Responsibilities: []string{"Design distributed systems"},
		DomainTags:       []string{"search", "fintech"},
	}

	result := KeywordScore(analysis, strongCandidate(), nil)

	assert.Equal(t, 1.0, result.Components[ComponentRequiredSkills])
	assert.Equal(t, 0.0, result.Components[ComponentPreferredSkills])
	// go (1.0) + kubernetes (0.8) present out of 2.3 total weight
	assert.InDelta(t, 1.8/2.3, result.Components[ComponentWeightedKeywords], 1e-9)
	// one of two JD domain tags matched
	assert.InDelta(t, 0.5, result.Components[ComponentDomainRelevance], 1e-9)
	assert.InDelta(t, 0.8, result.Components[ComponentTechnicalDepth], 1e-9)
	// no education requirement specified, candidate has an education entry
	assert.Equal(t, 1.0, result.Components[ComponentEducation])

	assert.Greater(t, result.Score, 0.0)
	assert.LessOrEqual(t, result.Score, 1.0)
}

func TestKeywordScoreRequiredSkillsPenalty(t *testing.T) {
	analysis := &models.JDAnalysis{
		RequiredSkills: []string{"Erlang", "Haskell", "COBOL", "Fortran"},
	}
	weak := &models.ParsedResume{
		CanonicalSkills: map[string][]string{"languages": {"Erlang"}},
	}

	result := KeywordScore(analysis, weak, nil)

	// 1 of 4 required skills: component 0.25, penalty (0.5-0.25)*0.3
	assert.InDelta(t, 0.25, result.Components[ComponentRequiredSkills], 1e-9)
	expected := 0.18*0.25 - (0.5-0.25)*0.3
	if expected < 0 {
		expected = 0
	}
	assert.InDelta(t, expected, result.Score, 1e-9)
}

func TestKeywordScoreEmptyResume(t *testing.T) {
	analysis := &models.JDAnalysis{RequiredSkills: []string{"Go"}}
	result := KeywordScore(analysis, &models.ParsedResume{}, nil)

	// Every component zero; the required-skills penalty clamps at zero.
	assert.Zero(t, result.Score)
}

func TestResolveWeights(t *testing.T) {
	t.Run("no overrides returns defaults summing to one", func(t *testing.T) {
		weights := resolveWeights(nil)
		var total float64
		for _, w := range weights {
			total += w
		}
		assert.InDelta(t, 1.0, total, 1e-9)
	})

	t.Run("overrides renormalize", func(t *testing.T) {
		weights := resolveWeights(map[string]float64{
			ComponentRequiredSkills:     1.0,
			ComponentExperienceKeywords: 0.0,
		})
		var total float64
		for _, w := range weights {
			total += w
		}
		assert.InDelta(t, 1.0, total, 1e-9)
		assert.Zero(t, weights[ComponentExperienceKeywords])
		assert.Greater(t, weights[ComponentRequiredSkills], weights[ComponentWeightedKeywords])
	})

	t.Run("unknown and negative overrides ignored", func(t *testing.T) {
		weights := resolveWeights(map[string]float64{
			"bogus":                 5.0,
			ComponentRequiredSkills: -1.0,
		})
		assert.NotContains(t, weights, "bogus")
		assert.InDelta(t, defaultComponentWeights[ComponentRequiredSkills], weights[ComponentRequiredSkills], 1e-9)
	})
}

func TestExperienceKeywordScore(t *testing.T) {
	parsed := &models.ParsedResume{
		Experience: []models.ExperienceEntry{
			{Title: "Engineer", Description: "Led a team. Designed the system."},
		},
	}
	score := experienceKeywordScore(parsed)

	var total float64
	for _, w := range experienceVerbWeights {
		total += w
	}
	assert.InDelta(t, (4.0+3.6)/total, score, 1e-9)

	assert.Zero(t, experienceKeywordScore(&models.ParsedResume{}))
}

func TestEducationComponentWithRequirement(t *testing.T) {
	requirements := &models.FilterRequirements{
		Mandatory: map[string]models.RequirementSpec{
			"degree": {Type: models.RequirementEducation, RequiredFields: []string{"computer science"}},
		},
	}

	match := &models.ParsedResume{Education: []models.EducationEntry{{Degree: "MSc", Field: "Computer Science"}}}
	assert.Equal(t, 1.0, educationComponent(requirements, match))

	miss := &models.ParsedResume{Education: []models.EducationEntry{{Degree: "BA", Field: "History"}}}
	assert.Zero(t, educationComponent(requirements, miss))
}
