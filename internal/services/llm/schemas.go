package llm

// Named structured-output schemas. Providers enforce these on the wire
// (Gemini via ResponseSchema, Claude via a forced tool call); responses that
// still fail validation are classified SchemaViolation and never retried.

const (
	SchemaNameParseJD         = "parse_jd"
	SchemaNameParseResume     = "parse_resume"
	SchemaNameParseCompliance = "parse_compliance"
	SchemaNameRerank          = "rerank_candidates"
)

func stringArray() map[string]interface{} {
	return map[string]interface{}{
		"type":  "array",
		"items": map[string]interface{}{"type": "string"},
	}
}

func unitNumber(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "number",
		"description": description,
		"minimum":     0.0,
		"maximum":     1.0,
	}
}

// ParseJDSchema is the structured output for JD analysis.
func ParseJDSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"role_title":       map[string]interface{}{"type": "string"},
			"seniority":        map[string]interface{}{"type": "string"},
			"required_skills":  stringArray(),
			"preferred_skills": stringArray(),
			"responsibilities": stringArray(),
			"keywords_flat":    stringArray(),
			"keywords_weighted": map[string]interface{}{
				"type":        "array",
				"description": "Skill keywords with importance weights",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"keyword": map[string]interface{}{"type": "string"},
						"weight":  unitNumber("importance in [0,1]"),
					},
					"required": []string{"keyword", "weight"},
				},
			},
			"canonical_skills": map[string]interface{}{
				"type":        "array",
				"description": "Skills grouped by category",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"category": map[string]interface{}{"type": "string"},
						"skills":   stringArray(),
					},
					"required": []string{"category", "skills"},
				},
			},
			"tools_tech":                stringArray(),
			"soft_skills":               stringArray(),
			"years_experience_required": map[string]interface{}{"type": "number"},
			"domain_tags":               stringArray(),
		},
		"required": []string{"role_title", "required_skills"},
	}
}

// ParseResumeSchema is the structured output for resume parsing, including
// the seven JD-anchored project metrics.
func ParseResumeSchema() map[string]interface{} {
	projectMetrics := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"difficulty":        unitNumber("overall difficulty"),
			"novelty":           unitNumber("novelty of the work"),
			"skill_relevance":   unitNumber("relevance of skills used to the JD"),
			"complexity":        unitNumber("system complexity"),
			"technical_depth":   unitNumber("technical depth demonstrated"),
			"domain_relevance":  unitNumber("relevance to the JD domain tags"),
			"execution_quality": unitNumber("quality of execution and outcomes"),
		},
		"required": []string{
			"difficulty", "novelty", "skill_relevance", "complexity",
			"technical_depth", "domain_relevance", "execution_quality",
		},
	}

	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name":             map[string]interface{}{"type": "string"},
			"email":            map[string]interface{}{"type": "string"},
			"phone":            map[string]interface{}{"type": "string"},
			"location":         map[string]interface{}{"type": "string"},
			"years_experience": map[string]interface{}{"type": "number"},
			"summary":          map[string]interface{}{"type": "string"},
			"canonical_skills": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"category": map[string]interface{}{"type": "string"},
						"skills":   stringArray(),
					},
					"required": []string{"category", "skills"},
				},
			},
			"inferred_skills": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"skill":      map[string]interface{}{"type": "string"},
						"confidence": unitNumber("confidence in [0,1]"),
						"provenance": stringArray(),
					},
					"required": []string{"skill", "confidence"},
				},
			},
			"skill_proficiency": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"skill": map[string]interface{}{"type": "string"},
						"level": map[string]interface{}{"type": "string"},
						"years": map[string]interface{}{"type": "number"},
					},
					"required": []string{"skill"},
				},
			},
			"projects": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"name":           map[string]interface{}{"type": "string"},
						"description":    map[string]interface{}{"type": "string"},
						"tech_keywords":  stringArray(),
						"primary_skills": stringArray(),
						"metrics":        projectMetrics,
					},
					"required": []string{"name", "metrics"},
				},
			},
			"experience_entries": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"title":       map[string]interface{}{"type": "string"},
						"company":     map[string]interface{}{"type": "string"},
						"duration":    map[string]interface{}{"type": "string"},
						"description": map[string]interface{}{"type": "string"},
					},
					"required": []string{"title"},
				},
			},
			"education": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"degree":      map[string]interface{}{"type": "string"},
						"field":       map[string]interface{}{"type": "string"},
						"institution": map[string]interface{}{"type": "string"},
						"year":        map[string]interface{}{"type": "string"},
					},
				},
			},
			"domain_tags": stringArray(),
		},
		"required": []string{"name"},
	}
}

// ParseComplianceSchema turns free-text mandatory/soft compliance prompts
// into typed requirement specs.
func ParseComplianceSchema() map[string]interface{} {
	requirement := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"name": map[string]interface{}{"type": "string"},
			"type": map[string]interface{}{
				"type": "string",
				"enum": []string{"numeric", "list", "location", "education", "text", "boolean"},
			},
			"min":             map[string]interface{}{"type": "number"},
			"max":             map[string]interface{}{"type": "number"},
			"unit":            map[string]interface{}{"type": "string"},
			"required":        stringArray(),
			"optional":        stringArray(),
			"location":        map[string]interface{}{"type": "string"},
			"required_fields": stringArray(),
			"category":        map[string]interface{}{"type": "string", "enum": []string{"IT", "non-IT"}},
			"allowed":         stringArray(),
			"excluded":        stringArray(),
			"key_terms":       map[string]interface{}{"type": "string"},
			"bool_required":   map[string]interface{}{"type": "boolean"},
		},
		"required": []string{"name", "type"},
	}

	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"mandatory": map[string]interface{}{"type": "array", "items": requirement},
			"soft":      map[string]interface{}{"type": "array", "items": requirement},
		},
		"required": []string{"mandatory", "soft"},
	}
}

// RerankSchema is the structured output for the second-pass re-rank over one
// batch of candidate summaries.
func RerankSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"candidates": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"candidate_id":         map[string]interface{}{"type": "string"},
						"llm_rerank_score":     unitNumber("re-rank score in [0,1]"),
						"meets_requirements":   map[string]interface{}{"type": "boolean"},
						"requirements_met":     stringArray(),
						"requirements_missing": stringArray(),
					},
					"required": []string{"candidate_id", "llm_rerank_score", "meets_requirements"},
				},
			},
		},
		"required": []string{"candidates"},
	}
}
