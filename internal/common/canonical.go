package common

import "strings"

// canonicalSkills maps normalized skill mentions to their canonical spelling.
// The table is applied after NormalizeTerm, so lookups are case and
// whitespace insensitive. Canonical names are the display forms used for all
// equality comparisons downstream.
var canonicalSkills = map[string]string{
	"ml":                             "Machine Learning",
	"machine learning":               "Machine Learning",
	"dl":                             "Deep Learning",
	"deep learning":                  "Deep Learning",
	"ai":                             "Artificial Intelligence",
	"artificial intelligence":        "Artificial Intelligence",
	"nlp":                            "Natural Language Processing",
	"natural language processing":    "Natural Language Processing",
	"cv":                             "Computer Vision",
	"computer vision":                "Computer Vision",
	"rag":                            "Retrieval Augmented Generation",
	"retrieval augmented generation": "Retrieval Augmented Generation",
	"llm":                            "Large Language Models",
	"llms":                           "Large Language Models",
	"large language models":          "Large Language Models",
	"genai":                          "Generative AI",
	"generative ai":                  "Generative AI",
	"py":                             "Python",
	"python":                         "Python",
	"python3":                        "Python",
	"golang":                         "Go",
	"go":                             "Go",
	"js":                             "JavaScript",
	"javascript":                     "JavaScript",
	"ts":                             "TypeScript",
	"typescript":                     "TypeScript",
	"node":                           "Node.js",
	"nodejs":                         "Node.js",
	"node.js":                        "Node.js",
	"react":                          "React",
	"reactjs":                        "React",
	"react.js":                       "React",
	"postgres":                       "PostgreSQL",
	"postgresql":                     "PostgreSQL",
	"mongo":                          "MongoDB",
	"mongodb":                        "MongoDB",
	"k8s":                            "Kubernetes",
	"kubernetes":                     "Kubernetes",
	"docker":                         "Docker",
	"aws":                            "AWS",
	"amazon web services":            "AWS",
	"gcp":                            "Google Cloud Platform",
	"google cloud":                   "Google Cloud Platform",
	"google cloud platform":          "Google Cloud Platform",
	"ci/cd":                          "CI/CD",
	"cicd":                           "CI/CD",
	"tf":                             "TensorFlow",
	"tensorflow":                     "TensorFlow",
	"pytorch":                        "PyTorch",
	"torch":                          "PyTorch",
	"sklearn":                        "Scikit-learn",
	"scikit-learn":                   "Scikit-learn",
	"scikit learn":                   "Scikit-learn",
	"sql":                            "SQL",
	"nosql":                          "NoSQL",
	"rest":                           "REST APIs",
	"rest api":                       "REST APIs",
	"rest apis":                      "REST APIs",
	"grpc":                           "gRPC",
	"microservices":                  "Microservices",
	"micro services":                 "Microservices",
	"mlops":                          "MLOps",
	"devops":                         "DevOps",
	"etl":                            "ETL",
	"data engineering":               "Data Engineering",
	"data science":                   "Data Science",
	"ds":                             "Data Science",
}

// CanonicalSkill resolves a skill mention to its canonical spelling. Unknown
// skills are returned title-trimmed but otherwise unchanged, so the function
// is idempotent: CanonicalSkill(CanonicalSkill(x)) == CanonicalSkill(x).
func CanonicalSkill(skill string) string {
	trimmed := strings.TrimSpace(skill)
	if trimmed == "" {
		return ""
	}
	if canonical, ok := canonicalSkills[NormalizeTerm(trimmed)]; ok {
		return canonical
	}
	return trimmed
}

// CanonicalSkillList canonicalizes a slice, dropping empties and duplicates
// while preserving first-seen order.
func CanonicalSkillList(skills []string) []string {
	seen := make(map[string]bool, len(skills))
	var out []string
	for _, s := range skills {
		c := CanonicalSkill(s)
		if c == "" {
			continue
		}
		key := NormalizeTerm(c)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}
