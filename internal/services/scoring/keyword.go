package scoring

import (
	"sort"
	"strings"

	"github.com/ternarybob/seligo/internal/common"
	"github.com/ternarybob/seligo/internal/models"
)

// Keyword score component names. These are the keys accepted in
// jd_analysis.weighting overrides.
const (
	ComponentRequiredSkills     = "required_skills"
	ComponentPreferredSkills    = "preferred_skills"
	ComponentWeightedKeywords   = "weighted_keywords"
	ComponentExperienceKeywords = "experience_keywords"
	ComponentDomainRelevance    = "domain_relevance"
	ComponentTechnicalDepth     = "technical_depth"
	ComponentProjectMetrics     = "project_metrics"
	ComponentResponsibilities   = "responsibilities"
	ComponentEducation          = "education"
)

// defaultComponentWeights sum to 1.0.
var defaultComponentWeights = map[string]float64{
	ComponentRequiredSkills:     0.18,
	ComponentPreferredSkills:    0.08,
	ComponentWeightedKeywords:   0.15,
	ComponentExperienceKeywords: 0.25,
	ComponentDomainRelevance:    0.10,
	ComponentTechnicalDepth:     0.10,
	ComponentProjectMetrics:     0.09,
	ComponentResponsibilities:   0.03,
	ComponentEducation:          0.02,
}

// componentOrder fixes summation order for reproducibility.
var componentOrder = []string{
	ComponentRequiredSkills,
	ComponentPreferredSkills,
	ComponentWeightedKeywords,
	ComponentExperienceKeywords,
	ComponentDomainRelevance,
	ComponentTechnicalDepth,
	ComponentProjectMetrics,
	ComponentResponsibilities,
	ComponentEducation,
}

// experienceVerbWeights is the fixed leadership/action verb table for the
// experience_keywords component.
var experienceVerbWeights = map[string]float64{
	"lead":           4.0,
	"led":            4.0,
	"architect":      4.0,
	"architected":    4.0,
	"designed":       3.6,
	"built":          3.6,
	"productionized": 3.6,
	"scaled":         3.4,
	"implemented":    3.2,
	"improved":       3.0,
	"mentored":       2.8,
}

// requiredSkillsPenaltyFactor shapes the deduction applied when the
// required_skills component falls below 0.5.
const requiredSkillsPenaltyFactor = 0.3

// KeywordResult carries the composite keyword score plus its per-component
// values for audit.
type KeywordResult struct {
	Score      float64
	Components map[string]float64
}

// KeywordScore computes the weighted keyword score for one candidate. The
// component weights default to the fixed table and may be overridden by
// jd_analysis.weighting; overridden weights are renormalized to sum to 1.
func KeywordScore(analysis *models.JDAnalysis, parsed *models.ParsedResume, requirements *models.FilterRequirements) KeywordResult {
	components := map[string]float64{
		ComponentRequiredSkills:     fractionPresent(analysis.RequiredSkills, parsed),
		ComponentPreferredSkills:    fractionPresent(analysis.PreferredSkills, parsed),
		ComponentWeightedKeywords:   weightedKeywordScore(analysis.KeywordsWeighted, parsed),
		ComponentExperienceKeywords: experienceKeywordScore(parsed),
		ComponentDomainRelevance:    domainRelevance(analysis.DomainTags, parsed.DomainTags),
		ComponentTechnicalDepth:     meanTechnicalDepth(parsed.Projects),
		ComponentProjectMetrics:     ProjectScore(parsed.Projects),
		ComponentResponsibilities:   responsibilityCoverage(analysis.Responsibilities, parsed),
		ComponentEducation:          educationComponent(requirements, parsed),
	}

	weights := resolveWeights(analysis.Weighting)

	var score float64
	for _, name := range componentOrder {
		score += weights[name] * components[name]
	}

	// Missing too many required skills is penalized beyond its own weight.
	if req := components[ComponentRequiredSkills]; req < 0.5 {
		score -= (0.5 - req) * requiredSkillsPenaltyFactor
	}

	return KeywordResult{Score: clamp01(score), Components: components}
}

// resolveWeights merges overrides onto the default table and renormalizes
// the result to sum to 1.0.
func resolveWeights(overrides map[string]float64) map[string]float64 {
	weights := make(map[string]float64, len(defaultComponentWeights))
	for name, w := range defaultComponentWeights {
		weights[name] = w
	}
	for name, w := range overrides {
		if _, known := weights[name]; known && w >= 0 {
			weights[name] = w
		}
	}

	var total float64
	for _, name := range componentOrder {
		total += weights[name]
	}
	if total <= 0 {
		return defaultComponentWeights
	}
	for name := range weights {
		weights[name] /= total
	}
	return weights
}

// hasTerm checks the candidate's skill set, then falls back to a substring
// search over the descriptive resume text.
func hasTerm(term string, skills map[string]bool, fullText string) bool {
	norm := common.NormalizeTerm(term)
	if norm == "" {
		return false
	}
	return skills[norm] || strings.Contains(fullText, norm)
}

func fractionPresent(terms []string, parsed *models.ParsedResume) float64 {
	if len(terms) == 0 {
		return 0
	}
	skills := parsed.SkillSet()
	fullText := common.NormalizeTerm(parsed.FullText())

	found := 0
	for _, term := range terms {
		if hasTerm(term, skills, fullText) {
			found++
		}
	}
	return float64(found) / float64(len(terms))
}

// weightedKeywordScore sums the weights of present keywords over the sum of
// all declared weights. Keywords iterate in sorted order so the summation is
// reproducible.
func weightedKeywordScore(weighted map[string]float64, parsed *models.ParsedResume) float64 {
	if len(weighted) == 0 {
		return 0
	}

	keywords := make([]string, 0, len(weighted))
	for kw := range weighted {
		keywords = append(keywords, kw)
	}
	sort.Strings(keywords)

	skills := parsed.SkillSet()
	fullText := common.NormalizeTerm(parsed.FullText())

	var present, total float64
	for _, kw := range keywords {
		total += weighted[kw]
		if hasTerm(kw, skills, fullText) {
			present += weighted[kw]
		}
	}
	if total <= 0 {
		return 0
	}
	return present / total
}

// experienceKeywordScore rewards leadership and delivery verbs appearing in
// the candidate's experience entries.
func experienceKeywordScore(parsed *models.ParsedResume) float64 {
	text := common.NormalizeTerm(parsed.ExperienceText())
	if text == "" {
		return 0
	}

	verbs := make([]string, 0, len(experienceVerbWeights))
	for verb := range experienceVerbWeights {
		verbs = append(verbs, verb)
	}
	sort.Strings(verbs)

	words := make(map[string]bool)
	for _, w := range strings.Fields(text) {
		words[strings.Trim(w, ".,;:()[]{}\"'")] = true
	}

	var present, total float64
	for _, verb := range verbs {
		total += experienceVerbWeights[verb]
		if words[verb] {
			present += experienceVerbWeights[verb]
		}
	}
	return present / total
}

func domainRelevance(jdTags, resumeTags []string) float64 {
	if len(jdTags) == 0 {
		return 0
	}

	resumeSet := make(map[string]bool, len(resumeTags))
	for _, tag := range resumeTags {
		resumeSet[common.NormalizeTerm(tag)] = true
	}

	found := 0
	for _, tag := range jdTags {
		if resumeSet[common.NormalizeTerm(tag)] {
			found++
		}
	}
	return float64(found) / float64(len(jdTags))
}

func meanTechnicalDepth(projects []models.Project) float64 {
	if len(projects) == 0 {
		return 0
	}
	var sum float64
	for _, p := range projects {
		sum += p.Metrics.TechnicalDepth
	}
	return sum / float64(len(projects))
}

// responsibilityCoverage is the fraction of JD responsibility words (length
// > 3) found in the resume text.
func responsibilityCoverage(responsibilities []string, parsed *models.ParsedResume) float64 {
	words := common.WordsLongerThan(strings.Join(responsibilities, " "), 3)
	if len(words) == 0 {
		return 0
	}

	fullText := common.NormalizeTerm(parsed.FullText())
	found := 0
	for _, w := range words {
		if strings.Contains(fullText, w) {
			found++
		}
	}
	return float64(found) / float64(len(words))
}

// educationComponent is 1.0 when an education requirement field matches the
// candidate's education. With no education requirement specified, having any
// education entry at all earns the component.
func educationComponent(requirements *models.FilterRequirements, parsed *models.ParsedResume) float64 {
	fields := collectEducationRequirements(requirements)
	if len(fields) == 0 {
		if len(parsed.Education) > 0 {
			return 1.0
		}
		return 0
	}

	for _, required := range fields {
		norm := common.NormalizeTerm(required)
		for _, edu := range parsed.Education {
			if common.ContainsTerm(edu.Field, norm) || common.ContainsTerm(edu.Degree, norm) {
				return 1.0
			}
		}
	}
	return 0
}

func collectEducationRequirements(requirements *models.FilterRequirements) []string {
	if requirements == nil {
		return nil
	}
	var fields []string
	appendSpecs := func(specs map[string]models.RequirementSpec) {
		for _, name := range sortedSpecNames(specs) {
			spec := specs[name]
			if spec.Type == models.RequirementEducation {
				fields = append(fields, spec.RequiredFields...)
				fields = append(fields, spec.Allowed...)
			}
		}
	}
	appendSpecs(requirements.Mandatory)
	appendSpecs(requirements.Soft)
	return fields
}

func sortedSpecNames(specs map[string]models.RequirementSpec) []string {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
