package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/introweave/introweave/internal/models"
	"github.com/introweave/introweave/pkg/metrics"
)

// DigestService holds introductions routed to batch delivery. Entries are
// write-only from the engine's perspective; the drain job consumes them and
// composes one consolidated notification per tenant.
type DigestService struct {
	db       *gorm.DB
	notifier Notifier
	now      func() time.Time
}

// NewDigestService constructs a DigestService. The notifier is optional and
// only exercised by the drain job.
func NewDigestService(db *gorm.DB, notifier Notifier) (*DigestService, error) {
	if db == nil {
		return nil, errors.New("digest service: db is required")
	}
	return &DigestService{db: db, notifier: notifier, now: time.Now}, nil
}

// Enqueue defers the introduction for batch delivery, recording the score
// observed now. A second unresolved entry for the same introduction is
// refused. The tx handle allows enqueueing inside a larger transaction.
func (s *DigestService) Enqueue(ctx context.Context, tx *gorm.DB, intro *models.Introduction) error {
	ctx = ensureContext(ctx)
	if intro == nil || intro.ID == "" {
		return errors.New("digest service: introduction is required")
	}
	if tx == nil {
		tx = s.db
	}

	var pending int64
	if err := tx.WithContext(ctx).Model(&models.DigestQueueEntry{}).
		Where("introduction_id = ? AND processed_at IS NULL", intro.ID).
		Count(&pending).Error; err != nil {
		return fmt.Errorf("digest service: check pending entry: %w", err)
	}
	if pending > 0 {
		return ErrDigestAlreadyQueued
	}

	entry := models.DigestQueueEntry{
		IntroductionID: intro.ID,
		TargetTenantID: intro.TargetTenantID,
		TargetMemberID: intro.TargetMemberID,
		PriorityScore:  intro.PriorityScore,
	}
	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("digest service: enqueue: %w", err)
	}
	return nil
}

// PendingForTenant returns unprocessed entries for a tenant, highest
// priority first.
func (s *DigestService) PendingForTenant(ctx context.Context, tenantID string) ([]models.DigestQueueEntry, error) {
	ctx = ensureContext(ctx)

	var entries []models.DigestQueueEntry
	if err := s.db.WithContext(ctx).
		Where("target_tenant_id = ? AND processed_at IS NULL", tenantID).
		Order("priority_score DESC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("digest service: list pending: %w", err)
	}
	return entries, nil
}

// DrainTenant marks the tenant's unprocessed entries processed and sends a
// single consolidated notification to the tenant's administrators. Returns
// the number of entries drained.
func (s *DigestService) DrainTenant(ctx context.Context, tenantID string) (int, error) {
	ctx = ensureContext(ctx)

	entries, err := s.PendingForTenant(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	now := s.now()
	drained := 0
	for _, entry := range entries {
		// Guard on processed_at so a concurrent drain never double-counts.
		res := s.db.WithContext(ctx).Model(&models.DigestQueueEntry{}).
			Where("id = ? AND processed_at IS NULL", entry.ID).
			Update("processed_at", now)
		if res.Error != nil {
			return drained, fmt.Errorf("digest service: mark processed: %w", res.Error)
		}
		drained += int(res.RowsAffected)
	}

	metrics.DigestQueueDepth.Set(float64(drained))

	if s.notifier != nil && drained > 0 {
		_ = s.notifier.Notify(ctx, NotifyInput{
			TenantAdminsOf: tenantID,
			Type:           models.NotificationDigestReady,
			Title:          fmt.Sprintf("%d queued introductions ready for review", drained),
			Message:        "Your network digest has been assembled.",
			Metadata:       map[string]any{"entries": drained},
		})
	}

	return drained, nil
}

// DrainAll drains every tenant with pending entries and returns the total.
func (s *DigestService) DrainAll(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)

	var tenantIDs []string
	if err := s.db.WithContext(ctx).Model(&models.DigestQueueEntry{}).
		Where("processed_at IS NULL").
		Distinct("target_tenant_id").
		Pluck("target_tenant_id", &tenantIDs).Error; err != nil {
		return 0, fmt.Errorf("digest service: list tenants: %w", err)
	}

	total := 0
	for _, tenantID := range tenantIDs {
		drained, err := s.DrainTenant(ctx, tenantID)
		if err != nil {
			return total, err
		}
		total += drained
	}
	return total, nil
}
