package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/seligo/internal/common"
	"github.com/ternarybob/seligo/internal/models"
)

func scored(resumeID string, final float64, passed bool) *models.ScoreResult {
	f := final
	return &models.ScoreResult{
		ResumeID:   resumeID,
		FinalScore: &f,
		Compliance: models.Compliance{Passed: passed},
	}
}

func testRanker(batchSize int) *Ranker {
	return NewRanker(nil, &common.RankingConfig{Enabled: true, BatchSize: batchSize}, nil)
}

func TestEligible(t *testing.T) {
	skipped := &models.ScoreResult{ResumeID: "res_skip", Compliance: models.Compliance{Passed: true}}
	results := []*models.ScoreResult{
		scored("res_c", 0.5, true),
		scored("res_a", 0.9, true),
		scored("res_fail", 0.99, false),
		skipped,
		scored("res_b", 0.5, true),
	}

	eligible := Eligible(results)

	require.Len(t, eligible, 3)
	assert.Equal(t, "res_a", eligible[0].ResumeID)
	// equal scores break ties by candidate ID ascending
	assert.Equal(t, "res_b", eligible[1].ResumeID)
	assert.Equal(t, "res_c", eligible[2].ResumeID)
}

func TestBatches(t *testing.T) {
	r := testRanker(2)

	var eligible []*models.ScoreResult
	for _, id := range []string{"res_1", "res_2", "res_3", "res_4", "res_5"} {
		eligible = append(eligible, scored(id, 0.5, true))
	}

	batches := r.Batches(eligible)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 2)
	assert.Len(t, batches[2], 1)
	// rank order is preserved across batch boundaries
	assert.Equal(t, "res_3", batches[1][0].ResumeID)

	assert.Empty(t, r.Batches(nil))
}

func TestBatchCount(t *testing.T) {
	r := testRanker(30)
	assert.Equal(t, 0, r.BatchCount(0))
	assert.Equal(t, 1, r.BatchCount(1))
	assert.Equal(t, 1, r.BatchCount(30))
	assert.Equal(t, 2, r.BatchCount(31))
	assert.Equal(t, 3, r.BatchCount(61))
}

func TestFinalizeAppliesLLMScores(t *testing.T) {
	r := testRanker(30)
	a := scored("res_a", 0.9, true)
	b := scored("res_b", 0.8, true)
	c := scored("res_c", 0.7, true)
	eligible := []*models.ScoreResult{a, b, c}

	// The re-rank inverts a and c; b has no LLM score and falls back to its
	// composite score.
	r.Finalize(eligible, map[string]float64{
		"res_a": 0.3,
		"res_c": 0.95,
	})

	require.NotNil(t, a.LLMRerankScore)
	assert.Equal(t, 0.3, a.AdjustedScore)
	assert.Nil(t, b.LLMRerankScore)
	assert.Equal(t, 0.8, b.AdjustedScore)

	assert.Equal(t, 1, c.Rank)
	assert.Equal(t, 2, b.Rank)
	assert.Equal(t, 3, a.Rank)
	assert.Equal(t, "res_c", eligible[0].ResumeID)
}

func TestFinalizeTieBreaks(t *testing.T) {
	r := testRanker(30)
	a := scored("res_a", 0.6, true)
	b := scored("res_b", 0.9, true)
	c := scored("res_c", 0.9, true)
	eligible := []*models.ScoreResult{b, c, a}

	// All three get the same adjusted score; ties fall back to the composite
	// score, then to candidate ID.
	r.Finalize(eligible, map[string]float64{
		"res_a": 0.5,
		"res_b": 0.5,
		"res_c": 0.5,
	})

	assert.Equal(t, 1, b.Rank)
	assert.Equal(t, 2, c.Rank)
	assert.Equal(t, 3, a.Rank)
}

func TestFinalizeWithoutLLMScores(t *testing.T) {
	r := testRanker(30)
	a := scored("res_a", 0.4, true)
	b := scored("res_b", 0.7, true)
	eligible := []*models.ScoreResult{a, b}

	r.Finalize(eligible, nil)

	assert.Equal(t, 1, b.Rank)
	assert.Equal(t, 2, a.Rank)
	assert.Equal(t, 0.7, b.AdjustedScore)
}

func TestEnabled(t *testing.T) {
	// A ranker without a model client never runs the re-rank pass, even when
	// configured on.
	assert.False(t, testRanker(30).Enabled())

	disabled := NewRanker(nil, &common.RankingConfig{Enabled: false}, nil)
	assert.False(t, disabled.Enabled())
}
