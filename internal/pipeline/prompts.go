package pipeline

import (
	"fmt"
	"strings"
)

const jdParseSystem = `You analyze job descriptions for a candidate ranking system.
Extract every skill, responsibility and keyword faithfully from the text. Do not invent
requirements that are not stated or strongly implied. Weights express how central a
keyword is to the role.`

func jdParsePrompt(jdText string) string {
	return fmt.Sprintf("Analyze this job description and extract the structured fields.\n\n## Job Description\n\n%s", jdText)
}

const complianceParseSystem = `You convert free-text hiring requirements into typed filter
specifications. Each requirement becomes exactly one entry with the narrowest matching
type: numeric for experience thresholds, list for named skills, location for geography,
education for degrees and study fields, boolean for yes/no conditions, text for anything
else. Keep requirement names short and stable.`

func complianceParsePrompt(mandatoryPrompt, softPrompt string) string {
	var b strings.Builder
	b.WriteString("Convert these hiring requirements into typed specifications.\n")
	if mandatoryPrompt != "" {
		b.WriteString("\n## Mandatory (candidates failing any of these are filtered out)\n\n")
		b.WriteString(mandatoryPrompt)
		b.WriteString("\n")
	}
	if softPrompt != "" {
		b.WriteString("\n## Preferred (evaluated but never filtering)\n\n")
		b.WriteString(softPrompt)
		b.WriteString("\n")
	}
	return b.String()
}

const resumeParseSystem = `You parse resumes for a candidate ranking system. Extract only what
the resume states or clearly demonstrates. Inferred skills must carry provenance pointing at
the evidence. Project metrics are scored in [0,1] relative to the provided job domain: a
routine CRUD app scores low on difficulty and novelty, a production distributed system
scores high.`

func resumeParsePrompt(resumeText string, domainTags []string) string {
	var b strings.Builder
	b.WriteString("Parse this resume into the structured fields.")
	if len(domainTags) > 0 {
		b.WriteString(" Score project domain_relevance against these job domains: ")
		b.WriteString(strings.Join(domainTags, ", "))
		b.WriteString(".")
	}
	b.WriteString("\n\n## Resume\n\n")
	b.WriteString(resumeText)
	return b.String()
}
