package models

// RequirementType tags a requirement spec variant. The compliance filter
// dispatches on this tag with a typed switch; there is no reflective or
// string-keyed dispatch.
type RequirementType string

const (
	RequirementNumeric   RequirementType = "numeric"
	RequirementList      RequirementType = "list"
	RequirementLocation  RequirementType = "location"
	RequirementEducation RequirementType = "education"
	RequirementText      RequirementType = "text"
	RequirementBoolean   RequirementType = "boolean"
)

// RequirementSpec is a tagged-variant record. Only the fields of the active
// variant are meaningful; the rest stay zero.
type RequirementSpec struct {
	Type RequirementType `json:"type"`

	// numeric: candidate_value >= Min gates. Max never filters, it only
	// informs ordering and display.
	Min  *float64 `json:"min,omitempty"`
	Max  *float64 `json:"max,omitempty"`
	Unit string   `json:"unit,omitempty"`

	// list
	Required []string `json:"required,omitempty"`
	Optional []string `json:"optional,omitempty"`

	// location: a place name, "any", or "remote"
	Location string `json:"location,omitempty"`

	// education
	RequiredFields []string `json:"required_fields,omitempty"`
	Category       string   `json:"category,omitempty"` // "IT" or "non-IT"
	Allowed        []string `json:"allowed,omitempty"`
	Excluded       []string `json:"excluded,omitempty"`

	// text
	KeyTerms string `json:"key_terms,omitempty"`

	// boolean
	BoolRequired *bool `json:"bool_required,omitempty"`
}

// Empty reports whether the spec carries no evaluable content for its type.
// Empty specs are skipped: they neither gate nor count toward the
// compliance score denominator.
func (s RequirementSpec) Empty() bool {
	switch s.Type {
	case RequirementNumeric:
		return s.Min == nil
	case RequirementList:
		return len(s.Required) == 0 && len(s.Optional) == 0
	case RequirementLocation:
		return s.Location == ""
	case RequirementEducation:
		return len(s.RequiredFields) == 0 && s.Category == "" && len(s.Allowed) == 0 && len(s.Excluded) == 0
	case RequirementText:
		return s.KeyTerms == ""
	case RequirementBoolean:
		return s.BoolRequired == nil
	default:
		return true
	}
}

// FilterRequirements holds the two requirement blocks. Mandatory entries
// gate candidates (100% strict); soft entries are evaluated for display only.
type FilterRequirements struct {
	Mandatory map[string]RequirementSpec `json:"mandatory"`
	Soft      map[string]RequirementSpec `json:"soft"`
}

// RequirementResult is the per-requirement predicate outcome.
type RequirementResult struct {
	Meets  bool   `json:"meets"`
	Detail string `json:"detail"`
}
