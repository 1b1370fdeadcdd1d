package matcher

import (
	"fmt"

	"github.com/jonesrussell/grant-matcher/internal/domain"
)

// ScorePolicy folds sub-scores into one overall score.
type ScorePolicy interface {
	Overall(scores domain.SubScores) float64
	Name() string
}

// gateThreshold is the exclusions score below which GatePolicy treats the
// grant as blocked regardless of the other sub-scores.
const gateThreshold = 5.0

// NewScorePolicy returns the policy for a configured name.
func NewScorePolicy(name string) (ScorePolicy, error) {
	switch name {
	case "mean", "":
		return MeanPolicy{}, nil
	case "gate":
		return GatePolicy{Threshold: gateThreshold}, nil
	default:
		return nil, fmt.Errorf("unknown score policy %q", name)
	}
}

// MeanPolicy is the unweighted mean of whichever sub-scores are present.
type MeanPolicy struct{}

func (MeanPolicy) Name() string { return "mean" }

func (MeanPolicy) Overall(scores domain.SubScores) float64 {
	var sum float64
	var n int
	for _, s := range []*float64{scores.Eligibility, scores.Competitiveness, scores.Exclusions} {
		if s != nil {
			sum += *s
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// GatePolicy scores like MeanPolicy over eligibility and competitiveness, but
// a low exclusions score caps the result: a disqualified project should not
// rank highly on strength alone.
type GatePolicy struct {
	Threshold float64
}

func (GatePolicy) Name() string { return "gate" }

func (p GatePolicy) Overall(scores domain.SubScores) float64 {
	if scores.Exclusions != nil && *scores.Exclusions < p.Threshold {
		return *scores.Exclusions
	}

	var sum float64
	var n int
	for _, s := range []*float64{scores.Eligibility, scores.Competitiveness} {
		if s != nil {
			sum += *s
			n++
		}
	}
	if n == 0 {
		if scores.Exclusions != nil {
			return *scores.Exclusions
		}
		return 0
	}
	return sum / float64(n)
}
