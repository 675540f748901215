package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/seligo/internal/models"
)

func TestDecodeJDAnalysis(t *testing.T) {
	raw := []byte(`{
		"role_title": "Backend Engineer",
		"seniority": "senior",
		"required_skills": ["golang", "k8s"],
		"preferred_skills": ["ml"],
		"keywords_weighted": [
			{"keyword": "go", "weight": 1.0},
			{"keyword": "kubernetes", "weight": 0.8},
			{"keyword": "", "weight": 0.5}
		],
		"canonical_skills": [
			{"category": "languages", "skills": ["golang", "Python"]},
			{"category": "", "skills": ["dropped"]}
		],
		"years_experience_required": 5,
		"domain_tags": ["search"]
	}`)

	analysis, err := decodeJDAnalysis(raw)
	require.NoError(t, err)

	assert.Equal(t, "Backend Engineer", analysis.RoleTitle)
	// Skill lists are canonicalized on decode.
	assert.Equal(t, []string{"Go", "Kubernetes"}, analysis.RequiredSkills)
	assert.Equal(t, []string{"Machine Learning"}, analysis.PreferredSkills)

	// keywords_weighted arrives as {keyword, weight} pairs and becomes a map;
	// nameless entries are dropped.
	require.Len(t, analysis.KeywordsWeighted, 2)
	assert.Equal(t, 1.0, analysis.KeywordsWeighted["go"])
	assert.Equal(t, 0.8, analysis.KeywordsWeighted["kubernetes"])

	require.Len(t, analysis.CanonicalSkills, 1)
	assert.Equal(t, []string{"Go", "Python"}, analysis.CanonicalSkills["languages"])

	assert.Equal(t, 5.0, analysis.YearsExperienceRequired)
}

func TestDecodeJDAnalysisInvalid(t *testing.T) {
	_, err := decodeJDAnalysis([]byte(`{"role_title":`))
	assert.Error(t, err)
}

func TestDecodeParsedResume(t *testing.T) {
	raw := []byte(`{
		"name": "Alex Doe",
		"location": "Berlin",
		"years_experience": 6.5,
		"summary": "Backend engineer",
		"canonical_skills": [
			{"category": "languages", "skills": ["golang"]}
		],
		"projects": [
			{
				"name": "Search platform",
				"tech_keywords": ["k8s", "golang"],
				"metrics": {
					"difficulty": 0.8, "novelty": 0.5, "skill_relevance": 0.9,
					"complexity": 0.7, "technical_depth": 0.8,
					"domain_relevance": 0.6, "execution_quality": 0.7
				}
			}
		],
		"experience_entries": [
			{"title": "Senior Engineer", "company": "Acme", "description": "Led the team."}
		],
		"education": [
			{"degree": "BSc", "field": "Computer Science"}
		]
	}`)

	parsed, err := decodeParsedResume(raw)
	require.NoError(t, err)

	assert.Equal(t, "Alex Doe", parsed.Name)
	require.NotNil(t, parsed.YearsExperience)
	assert.Equal(t, 6.5, *parsed.YearsExperience)

	assert.Equal(t, []string{"Go"}, parsed.CanonicalSkills["languages"])
	// Project keyword lists are canonicalized too.
	assert.Equal(t, []string{"Kubernetes", "Go"}, parsed.Projects[0].TechKeywords)
	assert.InDelta(t, 0.8, parsed.Projects[0].Metrics.Difficulty, 1e-9)

	require.Len(t, parsed.Experience, 1)
	assert.Equal(t, "Senior Engineer", parsed.Experience[0].Title)
}

func TestDecodeParsedResumeMissingYears(t *testing.T) {
	parsed, err := decodeParsedResume([]byte(`{"name": "Alex Doe"}`))
	require.NoError(t, err)
	// Absent means unknown, not zero.
	assert.Nil(t, parsed.YearsExperience)
}

func TestDecodeFilterRequirements(t *testing.T) {
	raw := []byte(`{
		"mandatory": [
			{"name": "experience", "type": "numeric", "min": 5, "unit": "years"},
			{"name": "skills", "type": "list", "required": ["Go"]},
			{"name": "", "type": "text", "key_terms": "dropped"}
		],
		"soft": [
			{"name": "location", "type": "location", "location": "Berlin"}
		]
	}`)

	requirements, err := decodeFilterRequirements(raw)
	require.NoError(t, err)

	// Nameless entries are dropped.
	require.Len(t, requirements.Mandatory, 2)
	require.Len(t, requirements.Soft, 1)

	experience := requirements.Mandatory["experience"]
	assert.Equal(t, models.RequirementNumeric, experience.Type)
	require.NotNil(t, experience.Min)
	assert.Equal(t, 5.0, *experience.Min)
	assert.Equal(t, "years", experience.Unit)

	skills := requirements.Mandatory["skills"]
	assert.Equal(t, models.RequirementList, skills.Type)
	assert.Equal(t, []string{"Go"}, skills.Required)

	location := requirements.Soft["location"]
	assert.Equal(t, models.RequirementLocation, location.Type)
	assert.Equal(t, "Berlin", location.Location)
}

func TestDecodeFilterRequirementsEmpty(t *testing.T) {
	requirements, err := decodeFilterRequirements([]byte(`{"mandatory": [], "soft": []}`))
	require.NoError(t, err)
	assert.Empty(t, requirements.Mandatory)
	assert.Empty(t, requirements.Soft)
}
