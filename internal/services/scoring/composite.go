package scoring

import (
	"github.com/ternarybob/seligo/internal/models"
)

// Composite blend weights over the three primitives.
const (
	projectWeight  = 0.35
	semanticWeight = 0.35
	keywordWeight  = 0.30
	sparsePenalty  = 0.08
	zeroEpsilon    = 1e-12
)

// ProjectScore is the mean over projects of the equal-weight average of the
// seven metrics. No projects means zero.
func ProjectScore(projects []models.Project) float64 {
	if len(projects) == 0 {
		return 0
	}
	var sum float64
	for _, p := range projects {
		sum += p.Metrics.WeightedAvg()
	}
	return sum / float64(len(projects))
}

// Composite combines the three primitives into the final score.
//
// All three primitives zero means there is no evidence at all: the final
// score is omitted (nil) and the candidate is classified skipped. Exactly
// one non-zero primitive is sparse evidence: the final score is that
// primitive minus a fixed penalty, clamped at zero.
func Composite(projectScore, semanticScore, keywordScore float64) (final *float64, skipped bool) {
	nonZero := make([]float64, 0, 3)
	for _, v := range []float64{projectScore, semanticScore, keywordScore} {
		if v > zeroEpsilon {
			nonZero = append(nonZero, v)
		}
	}

	switch len(nonZero) {
	case 0:
		return nil, true
	case 1:
		v := nonZero[0] - sparsePenalty
		if v < 0 {
			v = 0
		}
		return &v, false
	default:
		v := projectWeight*projectScore + semanticWeight*semanticScore + keywordWeight*keywordScore
		v = clamp01(v)
		return &v, false
	}
}
