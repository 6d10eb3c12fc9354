package calendar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitleSimilarity_Score(t *testing.T) {
	m := TitleSimilarity{}

	t.Run("identical titles", func(t *testing.T) {
		assert.Equal(t, 1.0, m.Score("Smith Wedding", "Smith Wedding"))
	})

	t.Run("case and punctuation ignored", func(t *testing.T) {
		assert.Equal(t, 1.0, m.Score("Smith Wedding!", "smith wedding"))
	})

	t.Run("substring scores high", func(t *testing.T) {
		score := m.Score("Smith Wedding", "Smith Wedding Reception")
		assert.GreaterOrEqual(t, score, 0.8)
	})

	t.Run("related titles clear the threshold", func(t *testing.T) {
		score := m.Score("Wedding Smith Family", "Smith Family Wedding Reception")
		assert.Greater(t, score, MatchThreshold)
	})

	t.Run("unrelated titles score low", func(t *testing.T) {
		score := m.Score("Smith Wedding", "Jones Birthday")
		assert.Less(t, score, 0.3)
	})

	t.Run("empty title", func(t *testing.T) {
		assert.Equal(t, 0.0, m.Score("", "Smith Wedding"))
	})
}
