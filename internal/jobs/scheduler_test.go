package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/introweave/introweave/internal/database"
	"github.com/introweave/introweave/internal/models"
	"github.com/introweave/introweave/internal/services"
)

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, services.NotifyInput) error { return nil }

func openJobsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func seedTenant(t *testing.T, db *gorm.DB) *models.Tenant {
	t.Helper()

	tenant := &models.Tenant{Name: "Jobs Tenant", Slug: "jobs-" + uuid.NewString()}
	require.NoError(t, db.Create(tenant).Error)
	return tenant
}

func seedQueuedIntro(t *testing.T, db *gorm.DB, tenantID string, score float64) *models.Introduction {
	t.Helper()

	intro := &models.Introduction{
		RequesterMemberID: uuid.NewString(),
		TargetMemberID:    uuid.NewString(),
		RequesterTenantID: tenantID,
		TargetTenantID:    tenantID,
		PriorityScore:     score,
		Routing:           models.RouteDigest,
		Status:            models.IntroStatusRequested,
		RequestedAt:       time.Now().UTC(),
	}
	require.NoError(t, db.Create(intro).Error)

	entry := &models.DigestQueueEntry{
		IntroductionID: intro.ID,
		TargetTenantID: tenantID,
		TargetMemberID: intro.TargetMemberID,
		PriorityScore:  score,
	}
	require.NoError(t, db.Create(entry).Error)
	return intro
}

func TestExpireConsentPings(t *testing.T) {
	db := openJobsTestDB(t)
	now := time.Now().UTC()

	lapsed := &models.OptInRequest{
		IntroductionID: uuid.NewString(),
		TargetMemberID: uuid.NewString(),
		TokenHash:      uuid.NewString(),
		Status:         models.OptInStatusPending,
		ExpiresAt:      now.Add(-time.Hour),
	}
	fresh := &models.OptInRequest{
		IntroductionID: uuid.NewString(),
		TargetMemberID: uuid.NewString(),
		TokenHash:      uuid.NewString(),
		Status:         models.OptInStatusPending,
		ExpiresAt:      now.Add(time.Hour),
	}
	answered := &models.OptInRequest{
		IntroductionID: uuid.NewString(),
		TargetMemberID: uuid.NewString(),
		TokenHash:      uuid.NewString(),
		Status:         models.OptInStatusConsented,
		ExpiresAt:      now.Add(-time.Hour),
	}
	require.NoError(t, db.Create(lapsed).Error)
	require.NoError(t, db.Create(fresh).Error)
	require.NoError(t, db.Create(answered).Error)

	swept, err := ExpireConsentPings(context.Background(), db, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, swept)

	var reloaded models.OptInRequest
	require.NoError(t, db.First(&reloaded, "id = ?", lapsed.ID).Error)
	require.Equal(t, models.OptInStatusExpired, reloaded.Status)

	reloaded = models.OptInRequest{}
	require.NoError(t, db.First(&reloaded, "id = ?", fresh.ID).Error)
	require.Equal(t, models.OptInStatusPending, reloaded.Status)

	reloaded = models.OptInRequest{}
	require.NoError(t, db.First(&reloaded, "id = ?", answered.ID).Error)
	require.Equal(t, models.OptInStatusConsented, reloaded.Status)

	// A second pass finds nothing left to sweep.
	swept, err = ExpireConsentPings(context.Background(), db, now)
	require.NoError(t, err)
	require.Zero(t, swept)
}

func TestExpireConsentPingsRequiresDB(t *testing.T) {
	_, err := ExpireConsentPings(context.Background(), nil, time.Now())
	require.Error(t, err)
}

func TestSchedulerRunOnce(t *testing.T) {
	db := openJobsTestDB(t)
	tenant := seedTenant(t, db)

	digestSvc, err := services.NewDigestService(db, noopNotifier{})
	require.NoError(t, err)

	limiter, err := services.NewRateLimitService(db)
	require.NoError(t, err)

	optInSvc, err := services.NewOptInService(db, limiter, noopNotifier{})
	require.NoError(t, err)

	approvalSvc, err := services.NewApprovalService(db, optInSvc, digestSvc, noopNotifier{})
	require.NoError(t, err)

	seedQueuedIntro(t, db, tenant.ID, 0.72)
	seedQueuedIntro(t, db, tenant.ID, 0.41)

	stale := seedQueuedIntro(t, db, tenant.ID, 0.55)
	envelope := &models.CrossTenantIntroRequest{
		IntroductionID:    stale.ID,
		RequesterTenantID: tenant.ID,
		TargetTenantID:    tenant.ID,
		RequesterMemberID: stale.RequesterMemberID,
		TargetMemberID:    stale.TargetMemberID,
		Status:            models.CrossTenantStatusPending,
	}
	require.NoError(t, db.Create(envelope).Error)
	require.NoError(t, db.Model(&models.CrossTenantIntroRequest{}).
		Where("id = ?", envelope.ID).
		Update("created_at", time.Now().UTC().Add(-72*time.Hour)).Error)

	lapsedPing := &models.OptInRequest{
		IntroductionID: uuid.NewString(),
		TargetMemberID: uuid.NewString(),
		TokenHash:      uuid.NewString(),
		Status:         models.OptInStatusPending,
		ExpiresAt:      time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, db.Create(lapsedPing).Error)

	scheduler := NewScheduler(db, digestSvc, approvalSvc,
		WithApprovalMaxAge(24*time.Hour),
	)
	require.NoError(t, scheduler.RunOnce(context.Background()))

	var pendingEntries int64
	require.NoError(t, db.Model(&models.DigestQueueEntry{}).
		Where("processed_at IS NULL").Count(&pendingEntries).Error)
	require.Zero(t, pendingEntries)

	var reloadedEnvelope models.CrossTenantIntroRequest
	require.NoError(t, db.First(&reloadedEnvelope, "id = ?", envelope.ID).Error)
	require.Equal(t, models.CrossTenantStatusDeclined, reloadedEnvelope.Status)

	var reloadedPing models.OptInRequest
	require.NoError(t, db.First(&reloadedPing, "id = ?", lapsedPing.ID).Error)
	require.Equal(t, models.OptInStatusExpired, reloadedPing.Status)
}

func TestSchedulerStartRegistersJobs(t *testing.T) {
	db := openJobsTestDB(t)

	digestSvc, err := services.NewDigestService(db, noopNotifier{})
	require.NoError(t, err)

	limiter, err := services.NewRateLimitService(db)
	require.NoError(t, err)

	optInSvc, err := services.NewOptInService(db, limiter, noopNotifier{})
	require.NoError(t, err)

	approvalSvc, err := services.NewApprovalService(db, optInSvc, digestSvc, noopNotifier{})
	require.NoError(t, err)

	c := cron.New(cron.WithLogger(cron.DiscardLogger))

	scheduler := NewScheduler(db, digestSvc, approvalSvc,
		WithCron(c),
		WithDigestSchedule("0 * * * *"),
		WithApprovalSchedule("30 2 * * *"),
		WithApprovalMaxAge(7*24*time.Hour),
	)
	require.NoError(t, scheduler.Start())
	defer func() { <-scheduler.Stop().Done() }()

	require.Len(t, c.Entries(), 3)
}

func TestSchedulerSkipsDisabledJobs(t *testing.T) {
	c := cron.New(cron.WithLogger(cron.DiscardLogger))

	// No approval max age and no digest service: only the consent sweep runs.
	scheduler := NewScheduler(openJobsTestDB(t), nil, nil, WithCron(c))
	require.NoError(t, scheduler.Start())
	defer func() { <-scheduler.Stop().Done() }()

	require.Len(t, c.Entries(), 1)
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	db := openJobsTestDB(t)

	digestSvc, err := services.NewDigestService(db, noopNotifier{})
	require.NoError(t, err)

	scheduler := NewScheduler(db, digestSvc, nil, WithDigestSchedule("not a cron spec"))
	require.Error(t, scheduler.Start())
}
