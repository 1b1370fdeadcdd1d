package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/grant-matcher/internal/domain"
)

func f(v float64) *float64 { return &v }

func TestMeanPolicy(t *testing.T) {
	t.Parallel()

	policy := MeanPolicy{}

	assert.InDelta(t, 6.0, policy.Overall(domain.SubScores{
		Eligibility:     f(8),
		Competitiveness: f(4),
		Exclusions:      f(6),
	}), 0.001)

	assert.InDelta(t, 7.0, policy.Overall(domain.SubScores{
		Eligibility: f(7),
	}), 0.001, "absent sub-scores are excluded, not counted as zero")

	assert.Zero(t, policy.Overall(domain.SubScores{}))
}

func TestGatePolicy(t *testing.T) {
	t.Parallel()

	policy := GatePolicy{Threshold: 5}

	assert.InDelta(t, 2.0, policy.Overall(domain.SubScores{
		Eligibility:     f(9),
		Competitiveness: f(9),
		Exclusions:      f(2),
	}), 0.001, "low exclusions score gates the result")

	assert.InDelta(t, 9.0, policy.Overall(domain.SubScores{
		Eligibility:     f(9),
		Competitiveness: f(9),
		Exclusions:      f(8),
	}), 0.001, "clear exclusions do not drag the mean down")

	assert.InDelta(t, 6.0, policy.Overall(domain.SubScores{
		Eligibility: f(6),
	}), 0.001)
}

func TestNewScorePolicy(t *testing.T) {
	t.Parallel()

	mean, err := NewScorePolicy("mean")
	require.NoError(t, err)
	assert.Equal(t, "mean", mean.Name())

	gate, err := NewScorePolicy("gate")
	require.NoError(t, err)
	assert.Equal(t, "gate", gate.Name())

	def, err := NewScorePolicy("")
	require.NoError(t, err)
	assert.Equal(t, "mean", def.Name())

	_, err = NewScorePolicy("median")
	assert.Error(t, err)
}
