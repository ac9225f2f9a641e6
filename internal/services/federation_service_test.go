package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/introweave/introweave/internal/models"
)

func newFederationFixture(t *testing.T) (*FederationService, *recorderNotifier, func(t *testing.T) (*models.Tenant, *models.Tenant)) {
	t.Helper()

	db := openServiceTestDB(t)
	notifier := &recorderNotifier{}

	svc, err := NewFederationService(db, notifier)
	require.NoError(t, err)

	return svc, notifier, func(t *testing.T) (*models.Tenant, *models.Tenant) {
		return createTestTenant(t, db), createTestTenant(t, db)
	}
}

func TestFederationLifecycle(t *testing.T) {
	svc, notifier, tenants := newFederationFixture(t)
	owner, counterparty := tenants(t)

	consent, err := svc.Request(context.Background(), owner.ID, counterparty.ID,
		models.FederationGrants{People: true, Companies: true})
	require.NoError(t, err)
	require.Equal(t, models.FederationStatusPending, consent.Status)
	require.Len(t, notifier.byType("federation.requested"), 1)

	// Pending agreements grant nothing.
	active, err := svc.IsActive(context.Background(), owner.ID, counterparty.ID)
	require.NoError(t, err)
	require.False(t, active)

	accepted, err := svc.Accept(context.Background(), consent.ID, counterparty.ID)
	require.NoError(t, err)
	require.Equal(t, models.FederationStatusActive, accepted.Status)
	require.NotNil(t, accepted.AcceptedAt)

	active, err = svc.IsActive(context.Background(), owner.ID, counterparty.ID)
	require.NoError(t, err)
	require.True(t, active)

	grants, err := svc.Grants(context.Background(), owner.ID, counterparty.ID)
	require.NoError(t, err)
	require.True(t, grants.People)
	require.False(t, grants.Connections)
	require.True(t, grants.Companies)

	require.NoError(t, svc.Revoke(context.Background(), consent.ID, owner.ID))

	active, err = svc.IsActive(context.Background(), owner.ID, counterparty.ID)
	require.NoError(t, err)
	require.False(t, active)

	grants, err = svc.Grants(context.Background(), owner.ID, counterparty.ID)
	require.NoError(t, err)
	require.False(t, grants.People)
}

func TestFederationIsDirectional(t *testing.T) {
	svc, _, tenants := newFederationFixture(t)
	owner, counterparty := tenants(t)

	consent, err := svc.Request(context.Background(), owner.ID, counterparty.ID,
		models.FederationGrants{People: true})
	require.NoError(t, err)
	_, err = svc.Accept(context.Background(), consent.ID, counterparty.ID)
	require.NoError(t, err)

	// Only the owner shares into the counterparty; the reverse direction
	// needs its own agreement.
	active, err := svc.IsActive(context.Background(), owner.ID, counterparty.ID)
	require.NoError(t, err)
	require.True(t, active)

	active, err = svc.IsActive(context.Background(), counterparty.ID, owner.ID)
	require.NoError(t, err)
	require.False(t, active)
}

func TestFederationRevokedNeverReactivates(t *testing.T) {
	svc, _, tenants := newFederationFixture(t)
	owner, counterparty := tenants(t)

	consent, err := svc.Request(context.Background(), owner.ID, counterparty.ID,
		models.FederationGrants{People: true})
	require.NoError(t, err)
	_, err = svc.Accept(context.Background(), consent.ID, counterparty.ID)
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(context.Background(), consent.ID, counterparty.ID))

	_, err = svc.Accept(context.Background(), consent.ID, counterparty.ID)
	require.ErrorIs(t, err, ErrFederationTransition)

	err = svc.Revoke(context.Background(), consent.ID, owner.ID)
	require.ErrorIs(t, err, ErrFederationTransition)

	// A fresh request is the only way back to an active agreement.
	replacement, err := svc.Request(context.Background(), owner.ID, counterparty.ID,
		models.FederationGrants{People: true})
	require.NoError(t, err)
	require.Equal(t, models.FederationStatusPending, replacement.Status)
}

func TestFederationDuplicateDirectionRejected(t *testing.T) {
	svc, _, tenants := newFederationFixture(t)
	owner, counterparty := tenants(t)

	_, err := svc.Request(context.Background(), owner.ID, counterparty.ID, models.FederationGrants{})
	require.NoError(t, err)

	_, err = svc.Request(context.Background(), owner.ID, counterparty.ID, models.FederationGrants{})
	require.ErrorIs(t, err, ErrFederationExists)

	// The opposite direction is a distinct agreement, not a duplicate.
	_, err = svc.Request(context.Background(), counterparty.ID, owner.ID, models.FederationGrants{})
	require.NoError(t, err)
}

func TestFederationActorChecks(t *testing.T) {
	svc, _, tenants := newFederationFixture(t)
	owner, counterparty := tenants(t)

	consent, err := svc.Request(context.Background(), owner.ID, counterparty.ID, models.FederationGrants{})
	require.NoError(t, err)

	// The requesting tenant cannot accept its own offer.
	_, err = svc.Accept(context.Background(), consent.ID, owner.ID)
	require.ErrorIs(t, err, ErrApprovalForbidden)

	err = svc.Decline(context.Background(), consent.ID, owner.ID)
	require.ErrorIs(t, err, ErrApprovalForbidden)

	require.NoError(t, svc.Decline(context.Background(), consent.ID, counterparty.ID))

	_, err = svc.Accept(context.Background(), consent.ID, counterparty.ID)
	require.ErrorIs(t, err, ErrFederationNotFound)
}
