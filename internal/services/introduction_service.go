package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/introweave/introweave/internal/engine"
	"github.com/introweave/introweave/internal/models"
	"github.com/introweave/introweave/pkg/logger"
	"github.com/introweave/introweave/pkg/metrics"
)

// StatusPendingApproval is the submit outcome for cross-tenant requests
// that entered the approval workflow.
const StatusPendingApproval = "pending_approval"

// IntroductionConfig tunes the request pipeline.
type IntroductionConfig struct {
	Weights    engine.Weights
	Thresholds engine.Thresholds

	CrossTenantMaxRequests int
	CrossTenantWindow      time.Duration
}

// SubmitResult is the outcome of an introduction request.
type SubmitResult struct {
	Status           string             `json:"status"`
	RequiresApproval bool               `json:"requires_approval,omitempty"`
	IntroductionID   string             `json:"intro_id,omitempty"`
	PriorityScore    float64            `json:"priority_score"`
	PriorityFactors  map[string]float64 `json:"priority_factors,omitempty"`
}

// IntroductionOption customises IntroductionService behaviour.
type IntroductionOption func(*IntroductionService)

// WithIntroductionClock injects a custom clock primarily for testing.
func WithIntroductionClock(clock func() time.Time) IntroductionOption {
	return func(s *IntroductionService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// IntroductionService runs the request pipeline: rate limits, priority
// scoring, the routing decision and the federation gates, then persists the
// outcome. Policy rejections never leave a partial Introduction behind.
type IntroductionService struct {
	db         *gorm.DB
	limiter    *RateLimitService
	federation *FederationService
	digest     *DigestService
	optIn      *OptInService
	notifier   Notifier

	scorer     *engine.Scorer
	thresholds engine.Thresholds

	crossTenantMax    int
	crossTenantWindow time.Duration

	now func() time.Time
	log *zap.Logger
}

// NewIntroductionService constructs the pipeline with its collaborators.
func NewIntroductionService(
	db *gorm.DB,
	limiter *RateLimitService,
	federation *FederationService,
	digest *DigestService,
	optIn *OptInService,
	notifier Notifier,
	cfg IntroductionConfig,
	opts ...IntroductionOption,
) (*IntroductionService, error) {
	if db == nil {
		return nil, errors.New("introduction service: db is required")
	}
	if limiter == nil || federation == nil || digest == nil || optIn == nil {
		return nil, errors.New("introduction service: limiter, federation, digest and optin services are required")
	}

	maxRequests := cfg.CrossTenantMaxRequests
	if maxRequests <= 0 {
		maxRequests = DefaultCrossTenantMaxRequests
	}
	window := cfg.CrossTenantWindow
	if window <= 0 {
		window = DefaultCrossTenantWindow
	}

	service := &IntroductionService{
		db:                db,
		limiter:           limiter,
		federation:        federation,
		digest:            digest,
		optIn:             optIn,
		notifier:          notifier,
		scorer:            engine.NewScorer(cfg.Weights),
		thresholds:        cfg.Thresholds,
		crossTenantMax:    maxRequests,
		crossTenantWindow: window,
		now:               time.Now,
		log:               logger.WithModule("introductions"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Submit runs the full decision pipeline for one introduction request.
func (s *IntroductionService) Submit(ctx context.Context, requesterMemberID, targetMemberID, requestContext string) (*SubmitResult, error) {
	ctx = ensureContext(ctx)

	requesterMemberID = strings.TrimSpace(requesterMemberID)
	targetMemberID = strings.TrimSpace(targetMemberID)
	if requesterMemberID == "" || targetMemberID == "" {
		return nil, ErrMemberNotFound
	}
	if requesterMemberID == targetMemberID {
		return nil, ErrSelfIntroduction
	}

	requester, err := s.loadActiveMember(ctx, requesterMemberID)
	if err != nil {
		return nil, err
	}
	target, err := s.loadActiveMember(ctx, targetMemberID)
	if err != nil {
		return nil, err
	}

	crossTenant := requester.TenantID != target.TenantID

	if crossTenant {
		// The target's network must actively share people into the
		// requester's network, and the target must have opted in.
		active, err := s.federation.IsActive(ctx, target.TenantID, requester.TenantID)
		if err != nil {
			return nil, err
		}
		if !active {
			return nil, ErrFederationInactive
		}
		if target.Visibility != models.VisibilityFederated {
			return nil, ErrTargetNotFederated
		}

		allowed, err := s.limiter.CheckCrossTenantLimit(ctx,
			requester.TenantID, target.TenantID, requester.ID,
			s.crossTenantMax, s.crossTenantWindow)
		if err != nil {
			return nil, err
		}
		if !allowed {
			metrics.RateLimitRejections.WithLabelValues("cross_tenant").Inc()
			return nil, ErrCrossTenantLimit
		}
	}

	score, factors := s.scorer.Score(scoreInput(requester), scoreInput(target))
	route := s.thresholds.Decide(score, target.Tier, requester.Tier)

	// A full weekly budget downgrades direct delivery to the digest; it is
	// a delivery-shaping signal, not an error.
	if route == models.RouteDirect {
		hasBudget, err := s.limiter.CheckWeeklyLimit(ctx, target)
		if err != nil {
			return nil, err
		}
		if !hasBudget {
			route = models.RouteDigest
		}
	}

	metrics.RoutingDecisions.WithLabelValues(route, strconv.FormatBool(crossTenant)).Inc()

	result := &SubmitResult{
		Status:          route,
		PriorityScore:   score,
		PriorityFactors: factors,
	}

	if route == models.RouteBlocked {
		// Nothing actionable persists for blocked requests.
		return result, nil
	}

	intro := &models.Introduction{
		RequesterMemberID: requester.ID,
		TargetMemberID:    target.ID,
		RequesterTenantID: requester.TenantID,
		TargetTenantID:    target.TenantID,
		Context:           strings.TrimSpace(requestContext),
		PriorityScore:     score,
		PriorityFactors:   factorsToJSON(factors),
		Routing:           route,
		IsCrossTenant:     crossTenant,
		Status:            models.IntroStatusRequested,
		RequestedAt:       s.now(),
	}

	// The Introduction and its approval envelope (or digest entry) commit
	// together: no half-created aggregates survive a failure.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(intro).Error; err != nil {
			return fmt.Errorf("introduction service: create introduction: %w", err)
		}

		if crossTenant {
			request := models.CrossTenantIntroRequest{
				IntroductionID:    intro.ID,
				RequesterTenantID: requester.TenantID,
				TargetTenantID:    target.TenantID,
				RequesterMemberID: requester.ID,
				TargetMemberID:    target.ID,
				Status:            models.CrossTenantStatusPending,
			}
			if err := tx.Create(&request).Error; err != nil {
				return fmt.Errorf("introduction service: create approval request: %w", err)
			}
			return nil
		}

		if route == models.RouteDigest {
			return s.digest.Enqueue(ctx, tx, intro)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.IntroductionID = intro.ID

	if crossTenant {
		result.Status = StatusPendingApproval
		result.RequiresApproval = true

		if s.notifier != nil {
			_ = s.notifier.Notify(ctx, NotifyInput{
				TenantAdminsOf: target.TenantID,
				Type:           models.NotificationApprovalRequested,
				Title:          "New cross-network introduction request",
				Message:        "A member of a federated network requested an introduction.",
				Metadata: map[string]any{
					"introduction_id": intro.ID,
					"priority_score":  score,
				},
			})
		}
		return result, nil
	}

	if route == models.RouteDirect {
		if _, _, err := s.optIn.StartConsent(ctx, intro.ID); err != nil && !errors.Is(err, ErrConsentAlreadyPending) {
			// The introduction stands; the ping can be retried.
			s.log.Error("start consent", zap.String("introduction_id", intro.ID), zap.Error(err))
		}
	}

	return result, nil
}

// GetByID loads a single introduction.
func (s *IntroductionService) GetByID(ctx context.Context, id string) (*models.Introduction, error) {
	ctx = ensureContext(ctx)

	var intro models.Introduction
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&intro).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrIntroductionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("introduction service: load introduction: %w", err)
	}
	return &intro, nil
}

// ListForTenant returns introductions where the tenant is requester or target.
func (s *IntroductionService) ListForTenant(ctx context.Context, tenantID string, limit, offset int) ([]models.Introduction, error) {
	ctx = ensureContext(ctx)

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var intros []models.Introduction
	if err := s.db.WithContext(ctx).
		Where("requester_tenant_id = ? OR target_tenant_id = ?", tenantID, tenantID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&intros).Error; err != nil {
		return nil, fmt.Errorf("introduction service: list introductions: %w", err)
	}
	return intros, nil
}

// MarkCompleted records that the introduction actually took place.
func (s *IntroductionService) MarkCompleted(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	res := s.db.WithContext(ctx).Model(&models.Introduction{}).
		Where("id = ? AND status = ?", id, models.IntroStatusScheduled).
		Updates(map[string]any{
			"status":       models.IntroStatusCompleted,
			"completed_at": s.now(),
		})
	if res.Error != nil {
		return fmt.Errorf("introduction service: mark completed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrIntroNotEligible
	}
	return nil
}

func (s *IntroductionService) loadActiveMember(ctx context.Context, memberID string) (*models.Member, error) {
	var member models.Member
	err := s.db.WithContext(ctx).Where("id = ?", memberID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("introduction service: load member: %w", err)
	}
	if member.Status != models.MemberStatusActive {
		return nil, ErrMemberInactive
	}
	return &member, nil
}

func factorsToJSON(factors map[string]float64) datatypes.JSONMap {
	out := make(datatypes.JSONMap, len(factors))
	for key, value := range factors {
		out[key] = value
	}
	return out
}
