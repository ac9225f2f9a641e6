package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/introweave/introweave/internal/models"
)

func TestCreateMemberAppliesDefaults(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewMemberService(db)
	require.NoError(t, err)

	tenant := createTestTenant(t, db)

	member, err := svc.Create(context.Background(), CreateMemberInput{
		TenantID: tenant.ID,
		Name:     "  Dana Reyes  ",
		Email:    "Dana@Example.COM",
		Tags:     []string{" fintech ", "fintech", "saas", ""},
	})
	require.NoError(t, err)
	require.Equal(t, "Dana Reyes", member.Name)
	require.Equal(t, "dana@example.com", member.Email)
	require.Equal(t, models.MemberRoleMember, member.Role)
	require.Equal(t, models.TierMember, member.Tier)
	require.Equal(t, models.VisibilityMembers, member.Visibility)
	require.Equal(t, models.MemberStatusActive, member.Status)

	tags := memberTags(member)
	require.ElementsMatch(t, []string{"fintech", "saas"}, tags)
}

func TestCreateMemberUnknownTenant(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewMemberService(db)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateMemberInput{
		TenantID: uuid.NewString(),
		Name:     "Nobody",
		Email:    "nobody@example.com",
	})
	require.ErrorIs(t, err, ErrTenantNotFound)
}

func TestUpdateMemberClampsScarcity(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewMemberService(db)
	require.NoError(t, err)

	tenant := createTestTenant(t, db)
	member := createTestMember(t, db, tenant.ID, memberOverrides{})

	tooHigh := 3.5
	updated, err := svc.Update(context.Background(), member.ID, UpdateMemberInput{Scarcity: &tooHigh})
	require.NoError(t, err)
	require.Equal(t, 1.0, updated.Scarcity)

	negative := -0.4
	updated, err = svc.Update(context.Background(), member.ID, UpdateMemberInput{Scarcity: &negative})
	require.NoError(t, err)
	require.Equal(t, 0.0, updated.Scarcity)

	// An empty update is a no-op, not an error.
	same, err := svc.Update(context.Background(), member.ID, UpdateMemberInput{})
	require.NoError(t, err)
	require.Equal(t, updated.ID, same.ID)
}

func TestRefreshScarcityTracksDemand(t *testing.T) {
	db := openServiceTestDB(t)
	svc, err := NewMemberService(db)
	require.NoError(t, err)

	tenant := createTestTenant(t, db)
	// VIP cap is 3 per week, so the four-week budget is 12.
	target := createTestMember(t, db, tenant.ID, memberOverrides{Tier: models.TierVIP})

	for i := 0; i < 6; i++ {
		requester := createTestMember(t, db, tenant.ID, memberOverrides{})
		intro := models.Introduction{
			RequesterMemberID: requester.ID,
			TargetMemberID:    target.ID,
			RequesterTenantID: tenant.ID,
			TargetTenantID:    tenant.ID,
			Routing:           models.RouteDigest,
			Status:            models.IntroStatusRequested,
		}
		require.NoError(t, db.Create(&intro).Error)
	}

	scarcity, err := svc.RefreshScarcity(context.Background(), target.ID)
	require.NoError(t, err)
	require.InDelta(t, 0.5, scarcity, 1e-9)

	var reloaded models.Member
	require.NoError(t, db.First(&reloaded, "id = ?", target.ID).Error)
	require.InDelta(t, 0.5, reloaded.Scarcity, 1e-9)
}
