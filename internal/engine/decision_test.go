package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/introweave/introweave/internal/models"
)

func TestDecideBands(t *testing.T) {
	thresholds := DefaultThresholds()

	tests := []struct {
		name  string
		score float64
		want  string
	}{
		{"well above high water mark", 0.9, models.RouteDirect},
		{"exactly at high water mark", 0.65, models.RouteDirect},
		{"middle band", 0.5, models.RouteDigest},
		{"just under high water mark", 0.64, models.RouteDigest},
		{"exactly at low water mark", 0.30, models.RouteDigest},
		{"below low water mark", 0.29, models.RouteBlocked},
		{"zero", 0, models.RouteBlocked},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := thresholds.Decide(tc.score, models.TierMember, models.TierMember)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestDecideVIPTargetsGetHigherBar(t *testing.T) {
	thresholds := DefaultThresholds()

	require.Equal(t, models.RouteDirect, thresholds.Decide(0.70, models.TierMember, models.TierMember))
	require.Equal(t, models.RouteDigest, thresholds.Decide(0.70, models.TierVIP, models.TierMember))
	require.Equal(t, models.RouteDirect, thresholds.Decide(0.85, models.TierVIP, models.TierMember))
}

func TestDecideGuestRequesterPenalty(t *testing.T) {
	thresholds := DefaultThresholds()

	require.Equal(t, models.RouteDirect, thresholds.Decide(0.66, models.TierMember, models.TierMember))
	require.Equal(t, models.RouteDigest, thresholds.Decide(0.66, models.TierMember, models.TierGuest))
}

func TestDecideMonotonicInScore(t *testing.T) {
	thresholds := DefaultThresholds()

	rank := map[string]int{
		models.RouteBlocked: 0,
		models.RouteDigest:  1,
		models.RouteDirect:  2,
	}

	for _, targetTier := range []string{models.TierVIP, models.TierMember, models.TierStartup, models.TierGuest} {
		for _, requesterTier := range []string{models.TierVIP, models.TierMember, models.TierGuest} {
			previous := -1
			for score := 0.0; score <= 1.0; score += 0.01 {
				decision := thresholds.Decide(score, targetTier, requesterTier)
				require.GreaterOrEqual(t, rank[decision], previous,
					"routing regressed at score %.2f for target=%s requester=%s", score, targetTier, requesterTier)
				previous = rank[decision]
			}
		}
	}
}
