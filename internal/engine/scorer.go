package engine

import (
	"strings"

	"github.com/introweave/introweave/internal/models"
)

// Factor names returned in the score breakdown. The insights dashboard
// relies on these keys to present "top priority factors".
const (
	FactorTier     = "tier_weight"
	FactorScarcity = "scarcity_pressure"
	FactorFit      = "fit_signal"
	FactorFatigue  = "fatigue_penalty"
)

// ScoreInput carries the member attributes the scorer is allowed to see.
type ScoreInput struct {
	Tier     string
	Scarcity float64
	Sector   string
	Tags     []string

	// Weekly fatigue: introductions already received against the tier cap.
	IntrosThisWeek int
	WeeklyCap      int

	// FitOverride, when set, replaces the locally computed tag/sector
	// overlap with an externally supplied fit signal in [0,1].
	FitOverride *float64
}

// Weights configures the priority scorer. Values are configuration, not
// constants: operators tune them without touching scoring math.
type Weights struct {
	Tier     float64 `mapstructure:"tier"`
	Scarcity float64 `mapstructure:"scarcity"`
	Fit      float64 `mapstructure:"fit"`
	Fatigue  float64 `mapstructure:"fatigue"`
	Base     float64 `mapstructure:"base"`
}

// DefaultWeights returns the tuning shipped out of the box.
func DefaultWeights() Weights {
	return Weights{
		Tier:     0.30,
		Scarcity: 0.20,
		Fit:      0.35,
		Fatigue:  0.25,
		Base:     0.15,
	}
}

// Scorer computes introduction priority scores. It is pure: identical
// inputs always produce identical scores and factor maps.
type Scorer struct {
	weights Weights
}

// NewScorer builds a Scorer with the supplied weights.
func NewScorer(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Score combines requester standing, target scarcity, mutual fit and target
// fatigue into a single priority in [0,1], returning each contributing term
// individually alongside the final value.
func (s *Scorer) Score(requester, target ScoreInput) (float64, map[string]float64) {
	w := s.weights

	tierTerm := w.Tier * tierValue(requester.Tier)

	// Scarce targets raise the bar for everyone...
	scarcity := clamp01(target.Scarcity)
	scarcityTerm := -w.Scarcity * scarcity

	// ...but a strong fit counts for more when the target is scarce.
	fit := fitSignal(requester, target)
	fitTerm := w.Fit * fit * (1 + scarcity)

	fatigueTerm := -w.Fatigue * fatigueRatio(target)

	factors := map[string]float64{
		FactorTier:     tierTerm,
		FactorScarcity: scarcityTerm,
		FactorFit:      fitTerm,
		FactorFatigue:  fatigueTerm,
	}

	score := clamp01(w.Base + tierTerm + scarcityTerm + fitTerm + fatigueTerm)
	return score, factors
}

func tierValue(tier string) float64 {
	switch tier {
	case models.TierVIP:
		return 1.0
	case models.TierMember:
		return 0.7
	case models.TierStartup:
		return 0.5
	default:
		return 0.3
	}
}

// fitSignal measures tag overlap plus a sector match bonus, both
// case-insensitive, yielding a value in [0,1].
func fitSignal(requester, target ScoreInput) float64 {
	if target.FitOverride != nil {
		return clamp01(*target.FitOverride)
	}

	overlap := tagOverlap(requester.Tags, target.Tags)

	fit := 0.8 * overlap
	if requester.Sector != "" && strings.EqualFold(requester.Sector, target.Sector) {
		fit += 0.2
	}
	return clamp01(fit)
}

// tagOverlap is the Jaccard index of the two tag sets.
func tagOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	set := make(map[string]struct{}, len(a))
	for _, tag := range a {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			set[tag] = struct{}{}
		}
	}
	if len(set) == 0 {
		return 0
	}

	shared := 0
	union := len(set)
	seen := make(map[string]struct{}, len(b))
	for _, tag := range b {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		if _, ok := set[tag]; ok {
			shared++
		} else {
			union++
		}
	}

	return float64(shared) / float64(union)
}

// fatigueRatio returns how saturated the target's weekly budget already is.
func fatigueRatio(target ScoreInput) float64 {
	cap := target.WeeklyCap
	if cap <= 0 {
		cap = models.WeeklyCapForTier(target.Tier)
	}
	if cap <= 0 {
		return 1
	}
	return clamp01(float64(target.IntrosThisWeek) / float64(cap))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
