package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSentences(t *testing.T) {
	t.Run("splits on terminators followed by whitespace", func(t *testing.T) {
		got := SplitSentences("Built a search engine. Scaled it to 1M users! Was it fun? Yes.", 3)
		assert.Equal(t, []string{
			"Built a search engine.",
			"Scaled it to 1M users!",
			"Was it fun?",
			"Yes.",
		}, got)
	})

	t.Run("does not split on inline dots", func(t *testing.T) {
		got := SplitSentences("Deployed v2.5 on k8s. Done.", 3)
		assert.Equal(t, []string{"Deployed v2.5 on k8s.", "Done."}, got)
	})

	t.Run("drops short fragments", func(t *testing.T) {
		got := SplitSentences("Go. Implemented the ranking pipeline.", 10)
		assert.Equal(t, []string{"Implemented the ranking pipeline."}, got)
	})

	t.Run("keeps unterminated tail", func(t *testing.T) {
		got := SplitSentences("First sentence. trailing fragment without period", 3)
		assert.Len(t, got, 2)
		assert.Equal(t, "trailing fragment without period", got[1])
	})

	t.Run("deterministic", func(t *testing.T) {
		text := "One sentence. Another one. And a third."
		assert.Equal(t, SplitSentences(text, 3), SplitSentences(text, 3))
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, SplitSentences("", 3))
		assert.Empty(t, SplitSentences("   ", 3))
	})
}

func TestNormalizeTerm(t *testing.T) {
	assert.Equal(t, "machine learning", NormalizeTerm("  Machine   Learning "))
	assert.Equal(t, "go", NormalizeTerm("GO"))
	assert.Equal(t, "", NormalizeTerm("   "))
	assert.Equal(t, "a b c", NormalizeTerm("a\tb\nc"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "ab", Truncate("abcdef", 2))
	assert.Equal(t, "abcdef", Truncate("abcdef", 0))
	// rune boundary, not byte boundary
	assert.Equal(t, "héll", Truncate("héllo", 4))
}

func TestContainsTerm(t *testing.T) {
	assert.True(t, ContainsTerm("Senior Go Engineer in Berlin", "go engineer"))
	assert.False(t, ContainsTerm("Senior Go Engineer", "rust"))
}

func TestWordsLongerThan(t *testing.T) {
	got := WordsLongerThan("Design, build and operate distributed systems.", 3)
	assert.Equal(t, []string{"design", "build", "operate", "distributed", "systems"}, got)
}

func TestCanonicalSkill(t *testing.T) {
	assert.Equal(t, "Machine Learning", CanonicalSkill("ML"))
	assert.Equal(t, "Machine Learning", CanonicalSkill("machine   learning"))
	assert.Equal(t, "Kubernetes", CanonicalSkill("k8s"))
	assert.Equal(t, "Erlang", CanonicalSkill(" Erlang "))
	assert.Equal(t, "", CanonicalSkill("  "))

	// idempotent
	assert.Equal(t, CanonicalSkill("Go"), CanonicalSkill(CanonicalSkill("golang")))
}

func TestCanonicalSkillList(t *testing.T) {
	got := CanonicalSkillList([]string{"ml", "Machine Learning", "", "k8s", "Kubernetes", "Rust"})
	assert.Equal(t, []string{"Machine Learning", "Kubernetes", "Rust"}, got)
}

func TestScoreResultID(t *testing.T) {
	assert.Equal(t, "job_1:res_2", ScoreResultID("job_1", "res_2"))
	// deterministic: same pair, same key
	assert.Equal(t, ScoreResultID("a", "b"), ScoreResultID("a", "b"))
}
