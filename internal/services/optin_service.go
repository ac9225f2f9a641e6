package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/introweave/introweave/internal/models"
	"github.com/introweave/introweave/pkg/crypto"
)

const (
	defaultConsentExpiry     = 7 * 24 * time.Hour
	defaultConsentTokenBytes = 32
)

// OptInOption customises OptInService behaviour.
type OptInOption func(*OptInService)

// WithConsentExpiry overrides the consent token lifetime.
func WithConsentExpiry(d time.Duration) OptInOption {
	return func(s *OptInService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithOptInClock injects a custom clock primarily for testing.
func WithOptInClock(clock func() time.Time) OptInOption {
	return func(s *OptInService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// OptInService drives the double opt-in workflow: a low-friction consent
// ping to the target, followed by the full introduction only once consent
// has been recorded.
type OptInService struct {
	db       *gorm.DB
	limiter  *RateLimitService
	notifier Notifier
	expiry   time.Duration
	now      func() time.Time
}

// NewOptInService constructs an OptInService.
func NewOptInService(db *gorm.DB, limiter *RateLimitService, notifier Notifier, opts ...OptInOption) (*OptInService, error) {
	if db == nil {
		return nil, errors.New("optin service: db is required")
	}
	if limiter == nil {
		return nil, errors.New("optin service: rate limiter is required")
	}

	service := &OptInService{
		db:       db,
		limiter:  limiter,
		notifier: notifier,
		expiry:   defaultConsentExpiry,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// StartConsent sends the consent ping for an introduction that is clear to
// proceed. Cross-tenant introductions must carry an approved request; a
// second ping is refused while one is outstanding.
func (s *OptInService) StartConsent(ctx context.Context, introductionID string) (*models.OptInRequest, string, error) {
	ctx = ensureContext(ctx)

	var intro models.Introduction
	err := s.db.WithContext(ctx).Where("id = ?", introductionID).First(&intro).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", ErrIntroductionNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("optin service: load introduction: %w", err)
	}

	if intro.Status != models.IntroStatusRequested || intro.Routing == models.RouteBlocked {
		return nil, "", ErrIntroNotEligible
	}

	if intro.IsCrossTenant {
		var approved int64
		if err := s.db.WithContext(ctx).Model(&models.CrossTenantIntroRequest{}).
			Where("introduction_id = ? AND status = ?", intro.ID, models.CrossTenantStatusApproved).
			Count(&approved).Error; err != nil {
			return nil, "", fmt.Errorf("optin service: check approval: %w", err)
		}
		if approved == 0 {
			return nil, "", ErrIntroNotApproved
		}
	}

	now := s.now()

	// Retire lapsed pings first so the partial unique index on pending
	// entries only ever guards a ping that is genuinely outstanding.
	if err := s.db.WithContext(ctx).Model(&models.OptInRequest{}).
		Where("introduction_id = ? AND status = ? AND expires_at <= ?", intro.ID, models.OptInStatusPending, now).
		Update("status", models.OptInStatusExpired).Error; err != nil {
		return nil, "", fmt.Errorf("optin service: retire lapsed pings: %w", err)
	}

	token, err := crypto.GenerateToken(defaultConsentTokenBytes)
	if err != nil {
		return nil, "", fmt.Errorf("optin service: generate token: %w", err)
	}

	request := models.OptInRequest{
		IntroductionID: intro.ID,
		TargetMemberID: intro.TargetMemberID,
		TokenHash:      crypto.TokenHash(token),
		Status:         models.OptInStatusPending,
		ExpiresAt:      now.Add(s.expiry),
	}
	if err := s.db.WithContext(ctx).Create(&request).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, "", ErrConsentAlreadyPending
		}
		return nil, "", fmt.Errorf("optin service: create consent request: %w", err)
	}

	if s.notifier != nil {
		// Dispatch failure never rolls the request back.
		_ = s.notifier.Notify(ctx, NotifyInput{
			Type:     models.NotificationConsentRequested,
			Title:    "Someone would like an introduction",
			Message:  "Are you open to a short introduction? Reply within the week.",
			Metadata: map[string]any{"introduction_id": intro.ID, "opt_in_id": request.ID},
			Emails:   s.memberEmails(ctx, intro.TargetMemberID),
		})
	}

	return &request, token, nil
}

// RecordConsent resolves an outstanding consent ping by token. Accepting
// moves the introduction through pre_consented and composes the full
// introduction; declining terminally declines it.
func (s *OptInService) RecordConsent(ctx context.Context, token string, accept bool) (*models.Introduction, error) {
	ctx = ensureContext(ctx)
	if token == "" {
		return nil, ErrConsentNotFound
	}

	var request models.OptInRequest
	err := s.db.WithContext(ctx).Where("token_hash = ?", crypto.TokenHash(token)).First(&request).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConsentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("optin service: load consent request: %w", err)
	}

	now := s.now()
	next := models.OptInStatusDeclined
	if accept {
		next = models.OptInStatusConsented
	}

	// The ping reply, the introduction transitions and the weekly debit
	// commit or roll back as one unit: a recorded consent must never
	// outlive a failed introduction transition.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Resolve at most once, and only while the token is still valid.
		res := tx.Model(&models.OptInRequest{}).
			Where("id = ? AND status = ? AND expires_at > ?", request.ID, models.OptInStatusPending, now).
			Updates(map[string]any{
				"status":       next,
				"responded_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("optin service: record consent: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConsentAlreadyResolved
		}

		if !accept {
			return s.declineIntroduction(tx, request.IntroductionID, now)
		}

		// Consent recorded: requested -> pre_consented -> scheduled, then
		// the weekly debit, all inside the same transaction.
		res = tx.Model(&models.Introduction{}).
			Where("id = ? AND status = ?", request.IntroductionID, models.IntroStatusRequested).
			Updates(map[string]any{
				"status":       models.IntroStatusPreConsented,
				"consented_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("optin service: mark pre consented: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrIntroNotEligible
		}

		res = tx.Model(&models.Introduction{}).
			Where("id = ? AND status = ?", request.IntroductionID, models.IntroStatusPreConsented).
			Updates(map[string]any{
				"status":       models.IntroStatusScheduled,
				"scheduled_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("optin service: schedule introduction: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrIntroNotEligible
		}

		// The weekly cap is debited here, at actual delivery.
		return s.limiter.consumeWeeklySlot(ctx, tx, request.TargetMemberID)
	})
	if err != nil {
		return nil, err
	}

	intro, err := s.loadIntroduction(ctx, request.IntroductionID)
	if err != nil {
		return nil, err
	}
	if accept {
		s.notifyComposed(ctx, intro, now)
	}
	return intro, nil
}

// notifyComposed sends the full introduction with proposed time windows to
// both parties. Runs after commit; dispatch failure never reverts state.
func (s *OptInService) notifyComposed(ctx context.Context, intro *models.Introduction, now time.Time) {
	if s.notifier == nil {
		return
	}
	emails := append(
		s.memberEmails(ctx, intro.RequesterMemberID),
		s.memberEmails(ctx, intro.TargetMemberID)...,
	)
	_ = s.notifier.Notify(ctx, NotifyInput{
		Type:    models.NotificationIntroComposed,
		Title:   "You have been introduced",
		Message: "We have connected you both. Proposed windows: " + proposedWindows(now),
		Metadata: map[string]any{
			"introduction_id": intro.ID,
		},
		Emails: emails,
	})
}

func (s *OptInService) declineIntroduction(tx *gorm.DB, introductionID string, now time.Time) error {
	res := tx.Model(&models.Introduction{}).
		Where("id = ? AND status NOT IN ?", introductionID,
			[]string{models.IntroStatusCompleted, models.IntroStatusDeclined}).
		Updates(map[string]any{
			"status":      models.IntroStatusDeclined,
			"declined_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("optin service: decline introduction: %w", res.Error)
	}
	return nil
}

func (s *OptInService) loadIntroduction(ctx context.Context, id string) (*models.Introduction, error) {
	var intro models.Introduction
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&intro).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrIntroductionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("optin service: load introduction: %w", err)
	}
	return &intro, nil
}

func (s *OptInService) memberEmails(ctx context.Context, memberIDs ...string) []string {
	var emails []string
	if len(memberIDs) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Model(&models.Member{}).
		Where("id IN ?", memberIDs).
		Pluck("email", &emails).Error; err != nil {
		return nil
	}
	return emails
}

// proposedWindows suggests three meeting slots in the coming week.
func proposedWindows(from time.Time) string {
	slots := make([]string, 0, 3)
	for _, days := range []int{2, 4, 7} {
		slot := from.AddDate(0, 0, days)
		slots = append(slots, slot.Format("Mon Jan 2"))
	}
	return slots[0] + ", " + slots[1] + " or " + slots[2]
}
