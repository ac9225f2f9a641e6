package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/introweave/introweave/internal/models"
	"github.com/introweave/introweave/pkg/logger"
	"github.com/introweave/introweave/pkg/metrics"
)

// Approval decisions accepted by Resolve.
const (
	DecisionApprove = "approve"
	DecisionDecline = "decline"
)

// ApprovalOption customises ApprovalService behaviour.
type ApprovalOption func(*ApprovalService)

// WithApprovalClock injects a custom clock primarily for testing.
func WithApprovalClock(clock func() time.Time) ApprovalOption {
	return func(s *ApprovalService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// ApprovalService owns the cross-tenant approval state machine. A request
// leaves pending_approval exactly once; every transition is a conditional
// update guarded by the current status.
type ApprovalService struct {
	db       *gorm.DB
	optIn    *OptInService
	digest   *DigestService
	notifier Notifier
	now      func() time.Time
	log      *zap.Logger
}

// NewApprovalService constructs an ApprovalService.
func NewApprovalService(db *gorm.DB, optIn *OptInService, digest *DigestService, notifier Notifier, opts ...ApprovalOption) (*ApprovalService, error) {
	if db == nil {
		return nil, errors.New("approval service: db is required")
	}
	if optIn == nil {
		return nil, errors.New("approval service: optin service is required")
	}
	if digest == nil {
		return nil, errors.New("approval service: digest service is required")
	}

	service := &ApprovalService{
		db:       db,
		optIn:    optIn,
		digest:   digest,
		notifier: notifier,
		now:      time.Now,
		log:      logger.WithModule("approvals"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// GetByID loads a cross-tenant request.
func (s *ApprovalService) GetByID(ctx context.Context, requestID string) (*models.CrossTenantIntroRequest, error) {
	ctx = ensureContext(ctx)

	var request models.CrossTenantIntroRequest
	err := s.db.WithContext(ctx).Where("id = ?", requestID).First(&request).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrApprovalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("approval service: load request: %w", err)
	}
	return &request, nil
}

// ListPendingForTenant returns unresolved requests targeting the tenant.
func (s *ApprovalService) ListPendingForTenant(ctx context.Context, tenantID string) ([]models.CrossTenantIntroRequest, error) {
	ctx = ensureContext(ctx)

	var requests []models.CrossTenantIntroRequest
	if err := s.db.WithContext(ctx).
		Where("target_tenant_id = ? AND status = ?", tenantID, models.CrossTenantStatusPending).
		Order("created_at ASC").
		Find(&requests).Error; err != nil {
		return nil, fmt.Errorf("approval service: list pending: %w", err)
	}
	return requests, nil
}

// Resolve approves or declines a pending request on behalf of an admin of
// the target tenant. A second resolution attempt reports a conflict and
// leaves state untouched.
func (s *ApprovalService) Resolve(ctx context.Context, requestID, actorUserID, decision, reason string) (*models.CrossTenantIntroRequest, error) {
	ctx = ensureContext(ctx)

	if decision != DecisionApprove && decision != DecisionDecline {
		return nil, fmt.Errorf("approval service: unknown decision %q", decision)
	}

	request, err := s.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	var actor models.User
	err = s.db.WithContext(ctx).Where("id = ?", actorUserID).First(&actor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("approval service: load actor: %w", err)
	}
	if actor.TenantID != request.TargetTenantID || actor.Role != models.MemberRoleAdmin {
		return nil, ErrApprovalForbidden
	}

	now := s.now()
	next := models.CrossTenantStatusDeclined
	if decision == DecisionApprove {
		next = models.CrossTenantStatusApproved
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.CrossTenantIntroRequest{}).
			Where("id = ? AND status = ?", requestID, models.CrossTenantStatusPending).
			Updates(map[string]any{
				"status":      next,
				"resolved_by": actor.ID,
				"resolved_at": now,
				"reason":      reason,
			})
		if res.Error != nil {
			return fmt.Errorf("approval service: resolve request: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrApprovalAlreadyResolved
		}

		if next == models.CrossTenantStatusDeclined {
			// Declining the envelope terminally declines the introduction.
			res = tx.Model(&models.Introduction{}).
				Where("id = ? AND status NOT IN ?", request.IntroductionID,
					[]string{models.IntroStatusCompleted, models.IntroStatusDeclined}).
				Updates(map[string]any{
					"status":      models.IntroStatusDeclined,
					"declined_at": now,
				})
			if res.Error != nil {
				return fmt.Errorf("approval service: decline introduction: %w", res.Error)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	request.Status = next
	request.ResolvedBy = actor.ID
	request.ResolvedAt = &now
	request.Reason = reason

	metrics.ApprovalResolutions.WithLabelValues(next).Inc()

	if next == models.CrossTenantStatusApproved {
		s.handOffApproved(ctx, request)
	}

	if s.notifier != nil {
		_ = s.notifier.Notify(ctx, NotifyInput{
			TenantAdminsOf: request.RequesterTenantID,
			Type:           models.NotificationApprovalResolved,
			Title:          "Cross-network introduction " + next,
			Message:        reason,
			Metadata: map[string]any{
				"request_id":      request.ID,
				"introduction_id": request.IntroductionID,
				"resolution":      next,
			},
		})
	}

	return request, nil
}

// handOffApproved routes an approved introduction onwards: direct routing
// starts the opt-in consent ping now, digest routing defers it to the next
// drain. Failures here are logged; the approval itself stands.
func (s *ApprovalService) handOffApproved(ctx context.Context, request *models.CrossTenantIntroRequest) {
	var intro models.Introduction
	if err := s.db.WithContext(ctx).Where("id = ?", request.IntroductionID).First(&intro).Error; err != nil {
		s.log.Error("load approved introduction", zap.String("introduction_id", request.IntroductionID), zap.Error(err))
		return
	}

	switch intro.Routing {
	case models.RouteDigest:
		if err := s.digest.Enqueue(ctx, nil, &intro); err != nil && !errors.Is(err, ErrDigestAlreadyQueued) {
			s.log.Error("enqueue approved introduction", zap.String("introduction_id", intro.ID), zap.Error(err))
		}
	default:
		if _, _, err := s.optIn.StartConsent(ctx, intro.ID); err != nil && !errors.Is(err, ErrConsentAlreadyPending) {
			s.log.Error("start consent for approved introduction", zap.String("introduction_id", intro.ID), zap.Error(err))
		}
	}
}

// ExpireStale declines pending requests older than the supplied age, using
// the same guarded transition as an explicit decline. Returns the number of
// requests expired.
func (s *ApprovalService) ExpireStale(ctx context.Context, maxAge time.Duration) (int, error) {
	ctx = ensureContext(ctx)
	if maxAge <= 0 {
		return 0, nil
	}

	now := s.now()
	cutoff := now.Add(-maxAge)

	var stale []models.CrossTenantIntroRequest
	if err := s.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.CrossTenantStatusPending, cutoff).
		Find(&stale).Error; err != nil {
		return 0, fmt.Errorf("approval service: find stale requests: %w", err)
	}

	expired := 0
	for _, request := range stale {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.CrossTenantIntroRequest{}).
				Where("id = ? AND status = ?", request.ID, models.CrossTenantStatusPending).
				Updates(map[string]any{
					"status":      models.CrossTenantStatusDeclined,
					"resolved_at": now,
					"reason":      "expired",
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil // raced with an explicit resolution
			}

			expired++
			return tx.Model(&models.Introduction{}).
				Where("id = ? AND status NOT IN ?", request.IntroductionID,
					[]string{models.IntroStatusCompleted, models.IntroStatusDeclined}).
				Updates(map[string]any{
					"status":      models.IntroStatusDeclined,
					"declined_at": now,
				}).Error
		})
		if err != nil {
			return expired, fmt.Errorf("approval service: expire request: %w", err)
		}
	}

	if expired > 0 {
		metrics.ApprovalResolutions.WithLabelValues("expired").Add(float64(expired))
	}

	return expired, nil
}
