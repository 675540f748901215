package scoring

import (
	"github.com/ternarybob/seligo/internal/models"
)

// Section similarity thresholds and blend factors.
const (
	coverageWeight  = 0.5
	alignmentWeight = 0.4
	bestWeight      = 0.1
)

// sectionWeights aggregates the six per-section scores. Sections missing on
// either side are skipped and the remaining weights renormalized.
var sectionWeights = map[string]float64{
	models.SectionSkills:           0.30,
	models.SectionProjects:         0.25,
	models.SectionResponsibilities: 0.20,
	models.SectionProfile:          0.10,
	models.SectionEducation:        0.05,
	models.SectionOverall:          0.10,
}

// SemanticThresholds carries the configurable similarity cutoffs.
type SemanticThresholds struct {
	TauCoverage  float64 // row max >= this counts toward coverage
	TauAlignment float64 // column max >= this counts toward alignment
}

// DefaultThresholds returns the standard cutoffs.
func DefaultThresholds() SemanticThresholds {
	return SemanticThresholds{TauCoverage: 0.65, TauAlignment: 0.55}
}

// SemanticScore computes the raw (pre-normalization) semantic similarity of
// a resume against a JD across the six embedding sections. The returned
// value is in [0,1]; batch min-max normalization happens in NormalizeBatch.
func SemanticScore(jd, resume *models.SectionEmbeddings, thresholds SemanticThresholds) float64 {
	if jd == nil || resume == nil {
		return 0
	}

	var weighted, totalWeight float64

	for _, name := range models.SectionNames {
		a := jd.Sections[name]
		b := resume.Sections[name]
		if len(a) == 0 || len(b) == 0 {
			continue
		}

		weighted += sectionWeights[name] * sectionScore(a, b, thresholds)
		totalWeight += sectionWeights[name]
	}

	if totalWeight <= 0 {
		return 0
	}
	return weighted / totalWeight
}

// sectionScore blends coverage (how much of the JD the resume reaches),
// alignment (how much of the resume is on-topic), and the best single match.
func sectionScore(a, b [][]float32, thresholds SemanticThresholds) float64 {
	rows := len(a)
	cols := len(b)

	colMax := make([]float64, cols)
	coveredRows := 0
	best := -1.0

	for i := 0; i < rows; i++ {
		rowMax := -1.0
		for j := 0; j < cols; j++ {
			sim := dot(a[i], b[j])
			if sim > rowMax {
				rowMax = sim
			}
			if sim > colMax[j] {
				colMax[j] = sim
			}
			if sim > best {
				best = sim
			}
		}
		if rowMax >= thresholds.TauCoverage {
			coveredRows++
		}
	}

	alignedCols := 0
	for j := 0; j < cols; j++ {
		if colMax[j] >= thresholds.TauAlignment {
			alignedCols++
		}
	}

	coverage := float64(coveredRows) / float64(rows)
	alignment := float64(alignedCols) / float64(cols)
	if best < 0 {
		best = 0
	}

	return coverageWeight*coverage + alignmentWeight*alignment + bestWeight*clamp01(best)
}

// dot is cosine similarity for unit-normalized vectors.
func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// NormalizeBatch min-max normalizes raw semantic scores across one job's
// candidate batch. A flat batch (zero range) maps every candidate to 0.5.
func NormalizeBatch(raw []float64) []float64 {
	if len(raw) == 0 {
		return nil
	}

	min, max := raw[0], raw[0]
	for _, v := range raw[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	out := make([]float64, len(raw))
	if max-min < 1e-12 {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}

	for i, v := range raw {
		out[i] = (v - min) / (max - min)
	}
	return out
}
