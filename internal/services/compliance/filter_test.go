package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/seligo/internal/models"
)

func testFilter() *Filter {
	return NewFilter(nil)
}

func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }

func sampleResume() *models.ParsedResume {
	return &models.ParsedResume{
		Summary:         "Backend engineer, remote-friendly, security clearance held.",
		Location:        "Berlin, Germany",
		YearsExperience: floatPtr(6),
		CanonicalSkills: map[string][]string{
			"languages": {"Go", "Python"},
			"infra":     {"Kubernetes"},
		},
		Experience: []models.ExperienceEntry{
			{Title: "Senior Engineer", Description: "Built distributed ingestion pipelines in Go."},
		},
		Education: []models.EducationEntry{
			{Degree: "BSc", Field: "Computer Science"},
		},
	}
}

func TestEvaluateNilInputs(t *testing.T) {
	f := testFilter()

	result := f.Evaluate(nil, sampleResume())
	assert.True(t, result.Passed)
	assert.Equal(t, 1.0, result.Score)

	result = f.Evaluate(&models.FilterRequirements{}, nil)
	assert.True(t, result.Passed)
	assert.Equal(t, 1.0, result.Score)
}

func TestEvaluateNumeric(t *testing.T) {
	f := testFilter()
	requirements := &models.FilterRequirements{
		Mandatory: map[string]models.RequirementSpec{
			"experience": {Type: models.RequirementNumeric, Min: floatPtr(5)},
		},
	}

	result := f.Evaluate(requirements, sampleResume())
	assert.True(t, result.Passed)
	assert.Equal(t, []string{"experience"}, result.Met)

	junior := sampleResume()
	junior.YearsExperience = floatPtr(3)
	result = f.Evaluate(requirements, junior)
	assert.False(t, result.Passed)
	assert.Equal(t, []string{"experience"}, result.Missing)

	// No experience value on the resume fails the gate rather than passing it.
	unknown := sampleResume()
	unknown.YearsExperience = nil
	result = f.Evaluate(requirements, unknown)
	assert.False(t, result.Passed)
	assert.Contains(t, result.Reason, "no experience value")
}

func TestEvaluateList(t *testing.T) {
	f := testFilter()
	requirements := &models.FilterRequirements{
		Mandatory: map[string]models.RequirementSpec{
			"skills": {
				Type:     models.RequirementList,
				Required: []string{"Go", "Kubernetes"},
				Optional: []string{"Rust"},
			},
		},
	}

	result := f.Evaluate(requirements, sampleResume())
	assert.True(t, result.Passed)

	// Skill absent from the skill set but present in experience text still
	// matches through the substring fallback.
	requirements.Mandatory["skills"] = models.RequirementSpec{
		Type:     models.RequirementList,
		Required: []string{"distributed ingestion"},
	}
	result = f.Evaluate(requirements, sampleResume())
	assert.True(t, result.Passed)

	requirements.Mandatory["skills"] = models.RequirementSpec{
		Type:     models.RequirementList,
		Required: []string{"Go", "COBOL"},
	}
	result = f.Evaluate(requirements, sampleResume())
	assert.False(t, result.Passed)
	assert.Contains(t, result.Reason, "COBOL")
}

func TestEvaluateLocation(t *testing.T) {
	f := testFilter()
	cases := []struct {
		name     string
		location string
		meets    bool
	}{
		{"any always passes", "any", true},
		{"city substring match", "Berlin", true},
		{"remote via resume text", "remote", true},
		{"mismatch", "Tokyo", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			requirements := &models.FilterRequirements{
				Mandatory: map[string]models.RequirementSpec{
					"location": {Type: models.RequirementLocation, Location: tc.location},
				},
			}
			result := f.Evaluate(requirements, sampleResume())
			assert.Equal(t, tc.meets, result.Passed)
		})
	}

	t.Run("no location on resume", func(t *testing.T) {
		requirements := &models.FilterRequirements{
			Mandatory: map[string]models.RequirementSpec{
				"location": {Type: models.RequirementLocation, Location: "Berlin"},
			},
		}
		unlocated := sampleResume()
		unlocated.Location = ""
		result := f.Evaluate(requirements, unlocated)
		assert.False(t, result.Passed)
	})
}

func TestEvaluateEducation(t *testing.T) {
	f := testFilter()

	t.Run("IT category matches computer science", func(t *testing.T) {
		requirements := &models.FilterRequirements{
			Mandatory: map[string]models.RequirementSpec{
				"education": {Type: models.RequirementEducation, Category: "IT"},
			},
		}
		assert.True(t, f.Evaluate(requirements, sampleResume()).Passed)

		arts := sampleResume()
		arts.Education = []models.EducationEntry{{Degree: "BA", Field: "History"}}
		assert.False(t, f.Evaluate(requirements, arts).Passed)
	})

	t.Run("required fields match any", func(t *testing.T) {
		requirements := &models.FilterRequirements{
			Mandatory: map[string]models.RequirementSpec{
				"education": {
					Type:           models.RequirementEducation,
					RequiredFields: []string{"mathematics", "computer science"},
				},
			},
		}
		assert.True(t, f.Evaluate(requirements, sampleResume()).Passed)
	})

	t.Run("excluded field fails before anything else", func(t *testing.T) {
		requirements := &models.FilterRequirements{
			Mandatory: map[string]models.RequirementSpec{
				"education": {
					Type:     models.RequirementEducation,
					Category: "IT",
					Excluded: []string{"computer science"},
				},
			},
		}
		assert.False(t, f.Evaluate(requirements, sampleResume()).Passed)
	})

	t.Run("exclusion-only spec passes when nothing matches", func(t *testing.T) {
		requirements := &models.FilterRequirements{
			Mandatory: map[string]models.RequirementSpec{
				"education": {Type: models.RequirementEducation, Excluded: []string{"fine arts"}},
			},
		}
		assert.True(t, f.Evaluate(requirements, sampleResume()).Passed)
	})

	t.Run("no education entries fails", func(t *testing.T) {
		requirements := &models.FilterRequirements{
			Mandatory: map[string]models.RequirementSpec{
				"education": {Type: models.RequirementEducation, Category: "IT"},
			},
		}
		blank := sampleResume()
		blank.Education = nil
		result := f.Evaluate(requirements, blank)
		assert.False(t, result.Passed)
		assert.Contains(t, result.Reason, "no education entries")
	})
}

func TestEvaluateText(t *testing.T) {
	f := testFilter()

	t.Run("half the key terms suffice", func(t *testing.T) {
		requirements := &models.FilterRequirements{
			Mandatory: map[string]models.RequirementSpec{
				"focus": {Type: models.RequirementText, KeyTerms: "distributed pipelines underwater basketweaving"},
			},
		}
		assert.True(t, f.Evaluate(requirements, sampleResume()).Passed)
	})

	t.Run("too few terms fails", func(t *testing.T) {
		requirements := &models.FilterRequirements{
			Mandatory: map[string]models.RequirementSpec{
				"focus": {Type: models.RequirementText, KeyTerms: "embedded firmware verilog fpga"},
			},
		}
		assert.False(t, f.Evaluate(requirements, sampleResume()).Passed)
	})
}

func TestEvaluateBoolean(t *testing.T) {
	f := testFilter()

	// The requirement name itself is the probe term.
	requirements := &models.FilterRequirements{
		Mandatory: map[string]models.RequirementSpec{
			"security clearance": {Type: models.RequirementBoolean, BoolRequired: boolPtr(true)},
		},
	}
	assert.True(t, f.Evaluate(requirements, sampleResume()).Passed)

	requirements.Mandatory["security clearance"] = models.RequirementSpec{
		Type: models.RequirementBoolean, BoolRequired: boolPtr(false),
	}
	assert.False(t, f.Evaluate(requirements, sampleResume()).Passed)
}

func TestEvaluateSkipsEmptySpecs(t *testing.T) {
	f := testFilter()
	requirements := &models.FilterRequirements{
		Mandatory: map[string]models.RequirementSpec{
			"blank list":    {Type: models.RequirementList},
			"blank numeric": {Type: models.RequirementNumeric},
			"experience":    {Type: models.RequirementNumeric, Min: floatPtr(5)},
		},
	}

	result := f.Evaluate(requirements, sampleResume())
	require.True(t, result.Passed)
	// Only the specified requirement counts toward the score denominator.
	assert.Equal(t, 1.0, result.Score)
	assert.Len(t, result.PerRequirement, 1)
}

func TestEvaluateScoreAndReason(t *testing.T) {
	f := testFilter()
	requirements := &models.FilterRequirements{
		Mandatory: map[string]models.RequirementSpec{
			"a": {Type: models.RequirementList, Required: []string{"COBOL"}},
			"b": {Type: models.RequirementList, Required: []string{"Fortran"}},
			"c": {Type: models.RequirementList, Required: []string{"Ada"}},
			"d": {Type: models.RequirementList, Required: []string{"Prolog"}},
			"e": {Type: models.RequirementList, Required: []string{"Go"}},
		},
	}

	result := f.Evaluate(requirements, sampleResume())
	assert.False(t, result.Passed)
	assert.InDelta(t, 1.0/5.0, result.Score, 1e-9)
	assert.Len(t, result.Missing, 4)
	// Reason keeps at most the first three misses.
	assert.Contains(t, result.Reason, "COBOL")
	assert.NotContains(t, result.Reason, "Prolog")
}

func TestEvaluateSoftRequirementsNeverGate(t *testing.T) {
	f := testFilter()
	requirements := &models.FilterRequirements{
		Soft: map[string]models.RequirementSpec{
			"nice to have": {Type: models.RequirementList, Required: []string{"COBOL"}},
		},
	}

	result := f.Evaluate(requirements, sampleResume())
	assert.True(t, result.Passed)
	assert.Equal(t, 1.0, result.Score)
	require.Contains(t, result.SoftResults, "nice to have")
	assert.False(t, result.SoftResults["nice to have"].Meets)
}
