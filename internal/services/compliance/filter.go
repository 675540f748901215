package compliance

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/seligo/internal/common"
	"github.com/ternarybob/seligo/internal/models"
)

// itEducationFields is the fixed set of study fields counted as IT for
// category-based education requirements.
var itEducationFields = map[string]bool{
	"computer science":        true,
	"cs":                      true,
	"cse":                     true,
	"computer engineering":    true,
	"information technology":  true,
	"it":                      true,
	"software engineering":    true,
	"data science":            true,
	"ai":                      true,
	"ml":                      true,
	"artificial intelligence": true,
}

// Filter evaluates typed requirements against parsed resume content.
// Mandatory requirements gate with 100% strictness: one miss filters the
// candidate. Soft requirements are evaluated for display only.
type Filter struct {
	logger arbor.ILogger
}

func NewFilter(logger arbor.ILogger) *Filter {
	return &Filter{logger: logger}
}

// Evaluate runs every non-empty requirement against the candidate and
// assembles the compliance record.
func (f *Filter) Evaluate(requirements *models.FilterRequirements, parsed *models.ParsedResume) models.Compliance {
	result := models.Compliance{
		Passed:         true,
		Score:          1.0,
		PerRequirement: make(map[string]models.RequirementResult),
		SoftResults:    make(map[string]models.RequirementResult),
	}

	if requirements == nil || parsed == nil {
		return result
	}

	candidate := newCandidateView(parsed)

	specified := 0
	missingDetails := make([]string, 0, 4)

	for _, name := range sortedNames(requirements.Mandatory) {
		spec := requirements.Mandatory[name]
		if spec.Empty() {
			continue
		}
		specified++

		outcome := f.evaluateOne(name, spec, candidate)
		result.PerRequirement[name] = outcome

		if outcome.Meets {
			result.Met = append(result.Met, name)
		} else {
			result.Missing = append(result.Missing, name)
			missingDetails = append(missingDetails, outcome.Detail)
		}
	}

	for _, name := range sortedNames(requirements.Soft) {
		spec := requirements.Soft[name]
		if spec.Empty() {
			continue
		}
		result.SoftResults[name] = f.evaluateOne(name, spec, candidate)
	}

	result.Passed = len(result.Missing) == 0
	if specified > 0 {
		result.Score = float64(len(result.Met)) / float64(specified)
	}

	if len(missingDetails) > 3 {
		missingDetails = missingDetails[:3]
	}
	result.Reason = strings.Join(missingDetails, "; ")

	return result
}

func (f *Filter) evaluateOne(name string, spec models.RequirementSpec, candidate *candidateView) models.RequirementResult {
	switch spec.Type {
	case models.RequirementNumeric:
		return evalNumeric(name, spec, candidate)
	case models.RequirementList:
		return evalList(spec, candidate)
	case models.RequirementLocation:
		return evalLocation(spec, candidate)
	case models.RequirementEducation:
		return evalEducation(spec, candidate)
	case models.RequirementText:
		return evalText(spec, candidate)
	case models.RequirementBoolean:
		return evalBoolean(name, spec, candidate)
	default:
		return models.RequirementResult{Meets: false, Detail: fmt.Sprintf("unknown requirement type %q", spec.Type)}
	}
}

// candidateView precomputes the matching surfaces one evaluation needs:
// the normalized skill set, the concatenated descriptive text, and the
// education entries.
type candidateView struct {
	parsed   *models.ParsedResume
	skills   map[string]bool
	fullText string
}

func newCandidateView(parsed *models.ParsedResume) *candidateView {
	return &candidateView{
		parsed:   parsed,
		skills:   parsed.SkillSet(),
		fullText: common.NormalizeTerm(parsed.FullText()),
	}
}

// hasSkill checks the skill set first, then falls back to a substring search
// over project and experience descriptions.
func (c *candidateView) hasSkill(skill string) bool {
	term := common.NormalizeTerm(skill)
	if term == "" {
		return false
	}
	if c.skills[term] {
		return true
	}
	return strings.Contains(c.fullText, term)
}

func (c *candidateView) textContains(term string) bool {
	term = common.NormalizeTerm(term)
	return term != "" && strings.Contains(c.fullText, term)
}

// evalNumeric gates on the candidate's years of experience: value >= Min.
// Max never filters.
func evalNumeric(name string, spec models.RequirementSpec, candidate *candidateView) models.RequirementResult {
	if candidate.parsed.YearsExperience == nil {
		return models.RequirementResult{
			Meets:  false,
			Detail: fmt.Sprintf("%s: no experience value found on resume", name),
		}
	}

	value := *candidate.parsed.YearsExperience
	if value >= *spec.Min {
		return models.RequirementResult{
			Meets:  true,
			Detail: fmt.Sprintf("%.1f %s meets minimum %.1f", value, unitOrDefault(spec.Unit), *spec.Min),
		}
	}
	return models.RequirementResult{
		Meets:  false,
		Detail: fmt.Sprintf("%.1f %s below minimum %.1f", value, unitOrDefault(spec.Unit), *spec.Min),
	}
}

func unitOrDefault(unit string) string {
	if unit == "" {
		return "years"
	}
	return unit
}

// evalList requires every element of Required to match in the candidate's
// skill surfaces. Optional entries never gate.
func evalList(spec models.RequirementSpec, candidate *candidateView) models.RequirementResult {
	missing := make([]string, 0, len(spec.Required))
	for _, skill := range spec.Required {
		if !candidate.hasSkill(skill) {
			missing = append(missing, skill)
		}
	}

	if len(missing) > 0 {
		return models.RequirementResult{
			Meets:  false,
			Detail: fmt.Sprintf("missing required skills: %s", strings.Join(missing, ", ")),
		}
	}
	return models.RequirementResult{
		Meets:  true,
		Detail: fmt.Sprintf("all %d required skills present", len(spec.Required)),
	}
}

// evalLocation matches by substring in either direction, case-insensitive.
// "any" always passes; "remote" requires the resume to mention remote.
func evalLocation(spec models.RequirementSpec, candidate *candidateView) models.RequirementResult {
	required := common.NormalizeTerm(spec.Location)
	if required == "any" {
		return models.RequirementResult{Meets: true, Detail: "any location accepted"}
	}

	location := common.NormalizeTerm(candidate.parsed.Location)

	if required == "remote" {
		if strings.Contains(location, "remote") || candidate.textContains("remote") {
			return models.RequirementResult{Meets: true, Detail: "remote match"}
		}
		return models.RequirementResult{Meets: false, Detail: "resume does not indicate remote availability"}
	}

	if location == "" {
		return models.RequirementResult{Meets: false, Detail: "no location on resume"}
	}
	if strings.Contains(location, required) || strings.Contains(required, location) {
		return models.RequirementResult{
			Meets:  true,
			Detail: fmt.Sprintf("location %q matches %q", candidate.parsed.Location, spec.Location),
		}
	}
	return models.RequirementResult{
		Meets:  false,
		Detail: fmt.Sprintf("location %q does not match %q", candidate.parsed.Location, spec.Location),
	}
}

// evalEducation checks required fields or IT category membership, then the
// allowed/excluded lists, all by normalized substring.
func evalEducation(spec models.RequirementSpec, candidate *candidateView) models.RequirementResult {
	fields := make([]string, 0, len(candidate.parsed.Education))
	for _, edu := range candidate.parsed.Education {
		if f := common.NormalizeTerm(edu.Field); f != "" {
			fields = append(fields, f)
		}
		if d := common.NormalizeTerm(edu.Degree); d != "" {
			fields = append(fields, d)
		}
	}

	if len(fields) == 0 {
		return models.RequirementResult{Meets: false, Detail: "no education entries on resume"}
	}

	for _, excluded := range spec.Excluded {
		term := common.NormalizeTerm(excluded)
		for _, field := range fields {
			if term != "" && strings.Contains(field, term) {
				return models.RequirementResult{
					Meets:  false,
					Detail: fmt.Sprintf("education field matches excluded %q", excluded),
				}
			}
		}
	}

	matched := func(term string) bool {
		term = common.NormalizeTerm(term)
		if term == "" {
			return false
		}
		for _, field := range fields {
			if strings.Contains(field, term) || strings.Contains(term, field) {
				return true
			}
		}
		return false
	}

	if len(spec.RequiredFields) > 0 {
		for _, required := range spec.RequiredFields {
			if matched(required) {
				return models.RequirementResult{Meets: true, Detail: fmt.Sprintf("education field matches %q", required)}
			}
		}
		return models.RequirementResult{
			Meets:  false,
			Detail: fmt.Sprintf("no education field matches any of: %s", strings.Join(spec.RequiredFields, ", ")),
		}
	}

	if strings.EqualFold(spec.Category, "IT") {
		for _, field := range fields {
			if itEducationFields[field] {
				return models.RequirementResult{Meets: true, Detail: fmt.Sprintf("IT education: %s", field)}
			}
			for known := range itEducationFields {
				if len(known) > 2 && strings.Contains(field, known) {
					return models.RequirementResult{Meets: true, Detail: fmt.Sprintf("IT education: %s", field)}
				}
			}
		}
		return models.RequirementResult{Meets: false, Detail: "no IT-category education field found"}
	}

	if len(spec.Allowed) > 0 {
		for _, allowed := range spec.Allowed {
			if matched(allowed) {
				return models.RequirementResult{Meets: true, Detail: fmt.Sprintf("education field matches allowed %q", allowed)}
			}
		}
		return models.RequirementResult{
			Meets:  false,
			Detail: fmt.Sprintf("no education field in allowed list: %s", strings.Join(spec.Allowed, ", ")),
		}
	}

	// Only an exclusion list was specified and nothing matched it.
	return models.RequirementResult{Meets: true, Detail: "no excluded education field present"}
}

// evalText splits the requirement into words longer than 3 characters;
// meets when at least half appear in the resume text, or when both of the
// first two terms appear.
func evalText(spec models.RequirementSpec, candidate *candidateView) models.RequirementResult {
	terms := common.WordsLongerThan(spec.KeyTerms, 3)
	if len(terms) == 0 {
		return models.RequirementResult{Meets: true, Detail: "no evaluable terms"}
	}

	found := 0
	for _, term := range terms {
		if candidate.textContains(term) {
			found++
		}
	}

	if float64(found) >= float64(len(terms))*0.5 {
		return models.RequirementResult{
			Meets:  true,
			Detail: fmt.Sprintf("%d of %d key terms present", found, len(terms)),
		}
	}

	if len(terms) >= 2 && candidate.textContains(terms[0]) && candidate.textContains(terms[1]) {
		return models.RequirementResult{
			Meets:  true,
			Detail: fmt.Sprintf("leading terms %q and %q present", terms[0], terms[1]),
		}
	}

	return models.RequirementResult{
		Meets:  false,
		Detail: fmt.Sprintf("only %d of %d key terms present", found, len(terms)),
	}
}

// evalBoolean derives the candidate value from whether the requirement name
// appears in the resume text, then compares it to the required value.
func evalBoolean(name string, spec models.RequirementSpec, candidate *candidateView) models.RequirementResult {
	present := candidate.textContains(name)
	if present == *spec.BoolRequired {
		return models.RequirementResult{Meets: true, Detail: fmt.Sprintf("%s = %v as required", name, present)}
	}
	return models.RequirementResult{
		Meets:  false,
		Detail: fmt.Sprintf("%s = %v, required %v", name, present, *spec.BoolRequired),
	}
}

func sortedNames(specs map[string]models.RequirementSpec) []string {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
