package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fplanalytics/graphrag/internal/intent"
)

func TestBuildIncludesQueryContextAndIntent(t *testing.T) {
	got := Build("Who should I captain?", "[recommendation_1] form_score: 28, player: Salah", intent.TagRecommendation)

	assert.Contains(t, got, "User Query: Who should I captain?")
	assert.Contains(t, got, "User Intent: recommendation")
	assert.Contains(t, got, "[recommendation_1] form_score: 28, player: Salah")
	assert.Contains(t, got, "strictly based on the provided Context")
}
