package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/introweave/introweave/internal/models"
)

func newDiscoveryFixture(t *testing.T) (*DiscoveryService, *FederationService, *gorm.DB) {
	t.Helper()

	db := openServiceTestDB(t)
	federation, err := NewFederationService(db, nil)
	require.NoError(t, err)
	svc, err := NewDiscoveryService(db, federation)
	require.NoError(t, err)
	return svc, federation, db
}

func memberIDs(members []models.Member) map[string]bool {
	ids := make(map[string]bool, len(members))
	for _, m := range members {
		ids[m.ID] = true
	}
	return ids
}

func TestVisibleCandidatesSameTenant(t *testing.T) {
	svc, _, db := newDiscoveryFixture(t)
	tenant := createTestTenant(t, db)

	requester := createTestMember(t, db, tenant.ID, memberOverrides{})
	open := createTestMember(t, db, tenant.ID, memberOverrides{Visibility: models.VisibilityMembers})
	private := createTestMember(t, db, tenant.ID, memberOverrides{Visibility: models.VisibilityPrivate})
	paused := createTestMember(t, db, tenant.ID, memberOverrides{Status: models.MemberStatusPaused})

	members, err := svc.VisibleCandidates(context.Background(), requester.ID, tenant.ID)
	require.NoError(t, err)

	ids := memberIDs(members)
	require.True(t, ids[open.ID])
	require.False(t, ids[private.ID], "private profiles are hidden from regular members")
	require.False(t, ids[paused.ID], "paused members are not candidates")
	require.False(t, ids[requester.ID], "requesters never see themselves")

	// Tenant admins see private profiles too.
	admin := createTestMember(t, db, tenant.ID, memberOverrides{Role: models.MemberRoleAdmin})
	members, err = svc.VisibleCandidates(context.Background(), admin.ID, tenant.ID)
	require.NoError(t, err)
	require.True(t, memberIDs(members)[private.ID])
}

func TestVisibleCandidatesCrossTenant(t *testing.T) {
	svc, _, db := newDiscoveryFixture(t)
	home := createTestTenant(t, db)
	remote := createTestTenant(t, db)

	requester := createTestMember(t, db, home.ID, memberOverrides{})
	federated := createTestMember(t, db, remote.ID, memberOverrides{Visibility: models.VisibilityFederated})
	createTestMember(t, db, remote.ID, memberOverrides{Visibility: models.VisibilityMembers})

	// No agreement: nothing is visible across the boundary.
	_, err := svc.VisibleCandidates(context.Background(), requester.ID, remote.ID)
	require.ErrorIs(t, err, ErrFederationInactive)

	// The remote network must share INTO the requester's network; the
	// reverse direction does not open discovery.
	activateFederation(t, db, home.ID, remote.ID)
	_, err = svc.VisibleCandidates(context.Background(), requester.ID, remote.ID)
	require.ErrorIs(t, err, ErrFederationInactive)

	activateFederation(t, db, remote.ID, home.ID)
	members, err := svc.VisibleCandidates(context.Background(), requester.ID, remote.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, federated.ID, members[0].ID)
}

func TestVisibleCandidatesRequiresPeopleGrant(t *testing.T) {
	svc, _, db := newDiscoveryFixture(t)
	home := createTestTenant(t, db)
	remote := createTestTenant(t, db)
	requester := createTestMember(t, db, home.ID, memberOverrides{})
	createTestMember(t, db, remote.ID, memberOverrides{Visibility: models.VisibilityFederated})

	// Active agreement, but people sharing was never granted.
	consent := activateFederation(t, db, remote.ID, home.ID)
	require.NoError(t, db.Model(consent).Update("share_people", false).Error)

	_, err := svc.VisibleCandidates(context.Background(), requester.ID, remote.ID)
	require.ErrorIs(t, err, ErrFederationInactive)
}
