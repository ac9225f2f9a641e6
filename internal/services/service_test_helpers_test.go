package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/introweave/introweave/internal/database/testutil"
	"github.com/introweave/introweave/internal/models"
)

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
}

// recorderNotifier captures notifications for assertions.
type recorderNotifier struct {
	mu     sync.Mutex
	inputs []NotifyInput
}

func (r *recorderNotifier) Notify(_ context.Context, input NotifyInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs = append(r.inputs, input)
	return nil
}

func (r *recorderNotifier) byType(notificationType string) []NotifyInput {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []NotifyInput
	for _, input := range r.inputs {
		if input.Type == notificationType {
			out = append(out, input)
		}
	}
	return out
}

// testClock is an adjustable clock shared by services under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func createTestTenant(t *testing.T, db *gorm.DB) *models.Tenant {
	t.Helper()

	tenant := models.Tenant{
		Name:   "Network " + uuid.NewString()[:8],
		Slug:   "network-" + uuid.NewString(),
		Status: models.TenantStatusActive,
	}
	require.NoError(t, db.Create(&tenant).Error)
	return &tenant
}

type memberOverrides struct {
	Tier           string
	Visibility     string
	Role           string
	Status         string
	Scarcity       float64
	IntrosThisWeek int
	WeekStart      time.Time
	Sector         string
}

func createTestMember(t *testing.T, db *gorm.DB, tenantID string, overrides memberOverrides) *models.Member {
	t.Helper()

	member := models.Member{
		TenantID:   tenantID,
		Name:       "Member " + uuid.NewString()[:8],
		Email:      uuid.NewString() + "@example.com",
		Role:       models.MemberRoleMember,
		Tier:       models.TierMember,
		Visibility: models.VisibilityMembers,
		Status:     models.MemberStatusActive,
		WeekStart:  time.Now(),
	}

	if overrides.Tier != "" {
		member.Tier = overrides.Tier
	}
	if overrides.Visibility != "" {
		member.Visibility = overrides.Visibility
	}
	if overrides.Role != "" {
		member.Role = overrides.Role
	}
	if overrides.Status != "" {
		member.Status = overrides.Status
	}
	if overrides.Sector != "" {
		member.Sector = overrides.Sector
	}
	member.Scarcity = overrides.Scarcity
	member.IntrosThisWeek = overrides.IntrosThisWeek
	if !overrides.WeekStart.IsZero() {
		member.WeekStart = overrides.WeekStart
	}

	require.NoError(t, db.Create(&member).Error)
	return &member
}

func createTestAdmin(t *testing.T, db *gorm.DB, tenantID string) *models.User {
	t.Helper()

	user := models.User{
		TenantID: tenantID,
		Email:    uuid.NewString() + "@example.com",
		Password: "x",
		Role:     models.MemberRoleAdmin,
		IsActive: true,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func activateFederation(t *testing.T, db *gorm.DB, ownerTenantID, counterpartyTenantID string) *models.FederationConsent {
	t.Helper()

	now := time.Now()
	consent := models.FederationConsent{
		OwnerTenantID:        ownerTenantID,
		CounterpartyTenantID: counterpartyTenantID,
		SharePeople:          true,
		Status:               models.FederationStatusActive,
		AcceptedAt:           &now,
	}
	require.NoError(t, db.Create(&consent).Error)
	return &consent
}
