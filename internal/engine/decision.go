package engine

import "github.com/introweave/introweave/internal/models"

// Thresholds maps a priority score to a routing decision. It is kept apart
// from the scorer so threshold tuning never touches scoring math and both
// can be unit-tested against fixed inputs.
type Thresholds struct {
	// Direct is the high-water mark: scores at or above it route direct.
	Direct float64 `mapstructure:"direct"`
	// Blocked is the low-water mark: scores below it are blocked.
	Blocked float64 `mapstructure:"blocked"`

	// DirectByTargetTier overrides the direct cutoff per target tier,
	// e.g. VIP targets get a higher bar to protect their time.
	DirectByTargetTier map[string]float64 `mapstructure:"direct_by_target_tier"`

	// RequesterTierPenalty is added to both cutoffs for the given
	// requester tier (guests have to clear a higher bar everywhere).
	RequesterTierPenalty map[string]float64 `mapstructure:"requester_tier_penalty"`
}

// DefaultThresholds returns the routing bands shipped out of the box.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Direct:  0.65,
		Blocked: 0.30,
		DirectByTargetTier: map[string]float64{
			models.TierVIP: 0.80,
		},
		RequesterTierPenalty: map[string]float64{
			models.TierGuest: 0.05,
		},
	}
}

// Decide maps a score plus tier context to direct, digest or blocked.
// For fixed tiers the result is monotonic in the score.
func (t Thresholds) Decide(score float64, targetTier, requesterTier string) string {
	direct := t.Direct
	if override, ok := t.DirectByTargetTier[targetTier]; ok {
		direct = override
	}
	blocked := t.Blocked

	if penalty, ok := t.RequesterTierPenalty[requesterTier]; ok {
		direct += penalty
		blocked += penalty
	}

	switch {
	case score >= direct:
		return models.RouteDirect
	case score < blocked:
		return models.RouteBlocked
	default:
		return models.RouteDigest
	}
}
