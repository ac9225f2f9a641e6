package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/introweave/introweave/internal/models"
)

const (
	// DefaultCrossTenantMaxRequests caps cross-tenant requests per member,
	// per target tenant, per rolling window.
	DefaultCrossTenantMaxRequests = 5
	// DefaultCrossTenantWindow is the rolling window for the cross-tenant quota.
	DefaultCrossTenantWindow = 24 * time.Hour

	weekDuration = 7 * 24 * time.Hour
)

// RateLimitOption customises RateLimitService behaviour.
type RateLimitOption func(*RateLimitService)

// WithRateLimitClock injects a custom clock primarily for testing.
func WithRateLimitClock(clock func() time.Time) RateLimitOption {
	return func(s *RateLimitService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// RateLimitService enforces the weekly per-member introduction quota and the
// rolling cross-tenant request quota. All counter mutations are single
// WHERE-guarded updates so concurrent requests can never both slip under a
// limit of N and produce N+1 accepted introductions.
type RateLimitService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRateLimitService constructs a RateLimitService.
func NewRateLimitService(db *gorm.DB, opts ...RateLimitOption) (*RateLimitService, error) {
	if db == nil {
		return nil, errors.New("rate limit service: db is required")
	}

	service := &RateLimitService{db: db, now: time.Now}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// CheckWeeklyLimit reports whether the target member still has weekly budget
// left. It never mutates state: the counter is only debited once an
// introduction is actually delivered. The boundary is exclusive on the cap.
func (s *RateLimitService) CheckWeeklyLimit(ctx context.Context, target *models.Member) (bool, error) {
	if target == nil {
		return false, ErrMemberNotFound
	}

	count := target.IntrosThisWeek
	if s.now().Sub(target.WeekStart) >= weekDuration {
		// Stale week, counter is logically zero until the next delivery.
		count = 0
	}

	return count < target.WeeklyCap(), nil
}

// ConsumeWeeklySlot debits one introduction from the member's weekly budget,
// rolling the week over first when it has lapsed. Both paths are single
// conditional updates.
func (s *RateLimitService) ConsumeWeeklySlot(ctx context.Context, memberID string) error {
	return s.consumeWeeklySlot(ensureContext(ctx), s.db, memberID)
}

// consumeWeeklySlot runs against the given handle so callers can place the
// debit inside a larger transaction.
func (s *RateLimitService) consumeWeeklySlot(ctx context.Context, db *gorm.DB, memberID string) error {
	now := s.now()
	cutoff := now.Add(-weekDuration)

	res := db.WithContext(ctx).Model(&models.Member{}).
		Where("id = ? AND week_start <= ?", memberID, cutoff).
		Updates(map[string]any{
			"intros_this_week": 1,
			"week_start":       now,
		})
	if res.Error != nil {
		return fmt.Errorf("rate limit service: roll week: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	res = db.WithContext(ctx).Model(&models.Member{}).
		Where("id = ?", memberID).
		Update("intros_this_week", gorm.Expr("intros_this_week + 1"))
	if res.Error != nil {
		return fmt.Errorf("rate limit service: consume slot: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// CheckCrossTenantLimit enforces the rolling cross-tenant request quota for
// the (requester tenant, target tenant, requester member) triple. It lazily
// creates the window row and resets expired windows atomically. A true
// result means the request was counted and may proceed.
func (s *RateLimitService) CheckCrossTenantLimit(ctx context.Context, requesterTenantID, targetTenantID, requesterMemberID string, maxRequests int, window time.Duration) (bool, error) {
	ctx = ensureContext(ctx)
	if maxRequests <= 0 {
		maxRequests = DefaultCrossTenantMaxRequests
	}
	if window <= 0 {
		window = DefaultCrossTenantWindow
	}

	return s.checkCrossTenant(ctx, requesterTenantID, targetTenantID, requesterMemberID, maxRequests, window, true)
}

func (s *RateLimitService) checkCrossTenant(ctx context.Context, requesterTenantID, targetTenantID, requesterMemberID string, maxRequests int, window time.Duration, allowCreate bool) (bool, error) {
	now := s.now()
	cutoff := now.Add(-window)

	key := s.db.WithContext(ctx).Model(&models.RateLimitWindow{}).
		Where("requester_tenant_id = ? AND target_tenant_id = ? AND requester_member_id = ?",
			requesterTenantID, targetTenantID, requesterMemberID)

	// Increment-and-compare in one statement: only succeeds while the
	// active window is under the limit.
	res := key.Session(&gorm.Session{}).
		Where("window_start > ? AND request_count < ?", cutoff, maxRequests).
		Update("request_count", gorm.Expr("request_count + 1"))
	if res.Error != nil {
		return false, fmt.Errorf("rate limit service: increment window: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	// Expired window: reset counter and window start in one statement.
	res = key.Session(&gorm.Session{}).
		Where("window_start <= ?", cutoff).
		Updates(map[string]any{
			"request_count": 1,
			"window_start":  now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("rate limit service: reset window: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	// Either no window row exists yet, or the active window is at capacity.
	var existing int64
	if err := key.Session(&gorm.Session{}).Count(&existing).Error; err != nil {
		return false, fmt.Errorf("rate limit service: inspect window: %w", err)
	}
	if existing > 0 {
		return false, nil
	}

	if !allowCreate {
		return false, nil
	}

	entry := models.RateLimitWindow{
		RequesterTenantID: requesterTenantID,
		TargetTenantID:    targetTenantID,
		RequesterMemberID: requesterMemberID,
		RequestCount:      1,
		WindowStart:       now,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		if isUniqueConstraintError(err) {
			// A concurrent request created the row first; fall back to
			// the guarded update path exactly once.
			return s.checkCrossTenant(ctx, requesterTenantID, targetTenantID, requesterMemberID, maxRequests, window, false)
		}
		return false, fmt.Errorf("rate limit service: create window: %w", err)
	}

	return true, nil
}
