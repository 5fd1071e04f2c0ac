package bounty

import (
	"math"
	"math/big"
	"time"
)

// Score bounds and component weights.
const (
	MinScore = 0
	MaxScore = 1000

	volumeWeight      = 40
	volumeCap         = 100
	earningsWeight    = 30
	successWeight     = 0.2
	maxSuccessRate    = 100
	consistencyWeight = 10
	// tasks per day that earn the full consistency bonus
	consistencyTarget = 2
)

// ReputationInput is the subset of a worker's aggregates the score depends on.
type ReputationInput struct {
	CompletedTasks uint64
	TotalEarned    *big.Int
	// SuccessRate is a percentage in [0, 100] supplied from outside the indexer.
	SuccessRate   float64
	FirstBountyAt time.Time
	LastBountyAt  time.Time
}

// ReputationParams holds the scoring constants taken from configuration.
type ReputationParams struct {
	// EarningsNormalizer is the amount, in token base units, that earns the full earnings component.
	EarningsNormalizer *big.Int
}

// Score computes the reputation of a worker. The result lies in [0, 1000] and is rounded
// to one decimal place. Score has no side effects.
func Score(in ReputationInput, params ReputationParams) float64 {
	volume := math.Min(float64(in.CompletedTasks)/volumeCap, 1) * volumeWeight
	earnings := earningsRatio(in.TotalEarned, params.EarningsNormalizer) * earningsWeight
	success := clamp(in.SuccessRate, 0, maxSuccessRate) * successWeight
	consistency := consistencyBonus(in)

	total := clamp(volume+earnings+success+consistency, MinScore, MaxScore)

	return math.Round(total*10) / 10 //nolint:mnd
}

func earningsRatio(earned, normalizer *big.Int) float64 {
	if earned == nil || earned.Sign() <= 0 || normalizer == nil || normalizer.Sign() <= 0 {
		return 0
	}
	if earned.Cmp(normalizer) >= 0 {
		return 1
	}

	ratio, _ := new(big.Rat).SetFrac(earned, normalizer).Float64()
	return ratio
}

func consistencyBonus(in ReputationInput) float64 {
	if in.CompletedTasks <= 1 || in.FirstBountyAt.IsZero() || !in.FirstBountyAt.Before(in.LastBountyAt) {
		return 0
	}

	days := in.LastBountyAt.Sub(in.FirstBountyAt).Hours() / 24 //nolint:mnd
	if days < 1 {
		days = 1
	}

	avgPerDay := float64(in.CompletedTasks) / days
	return math.Min(avgPerDay/consistencyTarget, 1) * consistencyWeight
}

// clamp also maps NaN to lo.
func clamp(v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v), v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}
