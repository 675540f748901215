package embeddings

import (
	"context"
	"sort"
	"strings"

	"github.com/ternarybob/seligo/internal/common"
	"github.com/ternarybob/seligo/internal/models"
)

// SectionTexts is the raw text per embedding section, before sentence
// splitting. Empty sections are legal and produce an empty vector list.
type SectionTexts map[string]string

// JDSectionTexts derives the six section texts from a JD analysis and the
// raw JD text. JDs rarely carry education content, so that section holds
// only the experience requirement when one was extracted.
func JDSectionTexts(analysis *models.JDAnalysis, rawText string, overallMaxChars int) SectionTexts {
	texts := SectionTexts{}

	profile := []string{analysis.RoleTitle, analysis.Seniority}
	profile = append(profile, analysis.DomainTags...)
	texts[models.SectionProfile] = joinSentences(profile)

	skills := append([]string{}, analysis.RequiredSkills...)
	skills = append(skills, analysis.PreferredSkills...)
	skills = append(skills, analysis.ToolsTech...)
	texts[models.SectionSkills] = joinSentences(skills)

	projects := append([]string{}, analysis.KeywordsFlat...)
	weighted := make([]string, 0, len(analysis.KeywordsWeighted))
	for kw := range analysis.KeywordsWeighted {
		weighted = append(weighted, kw)
	}
	sort.Strings(weighted)
	projects = append(projects, weighted...)
	texts[models.SectionProjects] = joinSentences(projects)

	texts[models.SectionResponsibilities] = joinSentences(analysis.Responsibilities)

	education := ""
	if analysis.YearsExperienceRequired > 0 {
		education = joinSentences([]string{"Requires relevant professional experience"})
	}
	texts[models.SectionEducation] = education

	texts[models.SectionOverall] = common.Truncate(rawText, overallMaxChars)

	return texts
}

// ResumeSectionTexts derives the six section texts from parsed resume
// content and the raw extracted text.
func ResumeSectionTexts(parsed *models.ParsedResume, rawText string, overallMaxChars int) SectionTexts {
	texts := SectionTexts{}

	profile := []string{parsed.Summary, parsed.Location}
	profile = append(profile, parsed.DomainTags...)
	texts[models.SectionProfile] = joinSentences(profile)

	skills := make([]string, 0, len(parsed.SkillProficiency))
	for _, cat := range parsed.CanonicalSkills {
		skills = append(skills, cat...)
	}
	for _, s := range parsed.InferredSkills {
		skills = append(skills, s.Skill)
	}
	for _, s := range parsed.SkillProficiency {
		skills = append(skills, s.Skill)
	}
	texts[models.SectionSkills] = joinSentences(skills)

	projects := make([]string, 0, len(parsed.Projects))
	for _, proj := range parsed.Projects {
		projects = append(projects, strings.TrimSpace(proj.Name+" "+proj.Description))
	}
	texts[models.SectionProjects] = joinSentences(projects)

	texts[models.SectionResponsibilities] = parsed.ExperienceText()

	education := make([]string, 0, len(parsed.Education))
	for _, edu := range parsed.Education {
		education = append(education, strings.TrimSpace(edu.Degree+" in "+edu.Field+" at "+edu.Institution))
	}
	texts[models.SectionEducation] = joinSentences(education)

	texts[models.SectionOverall] = common.Truncate(rawText, overallMaxChars)

	return texts
}

// joinSentences joins non-empty fragments so the sentence splitter sees one
// sentence per fragment.
func joinSentences(fragments []string) string {
	parts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		f = strings.TrimSpace(f)
		f = strings.TrimSuffix(f, ".")
		if f != "" {
			parts = append(parts, f)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ". ") + "."
}

// EmbedSections splits each section into sentences, embeds all sentences in
// one batched round, and assembles the per-section vector lists. Every
// section key is present in the result even when its vector list is empty.
func (s *Service) EmbedSections(ctx context.Context, texts SectionTexts, sentenceMinChars int) (*models.SectionEmbeddings, error) {
	sentencesBySection := make(map[string][]string, len(models.SectionNames))
	flat := make([]string, 0, 64)

	for _, name := range models.SectionNames {
		sentences := common.SplitSentences(texts[name], sentenceMinChars)
		sentencesBySection[name] = sentences
		flat = append(flat, sentences...)
	}

	embeddings := &models.SectionEmbeddings{
		Model:     s.model,
		Dimension: s.dim,
		Sections:  make(map[string][][]float32, len(models.SectionNames)),
	}

	if len(flat) == 0 {
		for _, name := range models.SectionNames {
			embeddings.Sections[name] = nil
		}
		return embeddings, nil
	}

	vectors, err := s.EmbedTexts(ctx, flat)
	if err != nil {
		return nil, err
	}

	offset := 0
	for _, name := range models.SectionNames {
		count := len(sentencesBySection[name])
		if count == 0 {
			embeddings.Sections[name] = nil
			continue
		}
		embeddings.Sections[name] = vectors[offset : offset+count]
		offset += count
	}

	return embeddings, nil
}
