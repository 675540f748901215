package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/seligo/internal/models"
)

func TestProjectScore(t *testing.T) {
	assert.Zero(t, ProjectScore(nil))

	uniform := func(v float64) models.Project {
		return models.Project{Metrics: models.ProjectMetrics{
			Difficulty: v, Novelty: v, SkillRelevance: v, Complexity: v,
			TechnicalDepth: v, DomainRelevance: v, ExecutionQuality: v,
		}}
	}

	score := ProjectScore([]models.Project{uniform(0.8), uniform(0.4)})
	assert.InDelta(t, 0.6, score, 1e-9)
}

func TestComposite(t *testing.T) {
	t.Run("all zero is skipped with no final score", func(t *testing.T) {
		final, skipped := Composite(0, 0, 0)
		assert.Nil(t, final)
		assert.True(t, skipped)
	})

	t.Run("single primitive pays the sparse penalty", func(t *testing.T) {
		final, skipped := Composite(0, 0.5, 0)
		require.NotNil(t, final)
		assert.False(t, skipped)
		assert.InDelta(t, 0.42, *final, 1e-9)
	})

	t.Run("sparse penalty floors at zero", func(t *testing.T) {
		final, skipped := Composite(0.05, 0, 0)
		require.NotNil(t, final)
		assert.False(t, skipped)
		assert.Zero(t, *final)
	})

	t.Run("two or more primitives blend by weight", func(t *testing.T) {
		final, skipped := Composite(0.8, 0.6, 0.5)
		require.NotNil(t, final)
		assert.False(t, skipped)
		assert.InDelta(t, 0.35*0.8+0.35*0.6+0.30*0.5, *final, 1e-9)
	})

	t.Run("deterministic", func(t *testing.T) {
		a, _ := Composite(0.7, 0.3, 0.2)
		b, _ := Composite(0.7, 0.3, 0.2)
		require.NotNil(t, a)
		require.NotNil(t, b)
		assert.Equal(t, *a, *b)
	})
}
