package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/introweave/introweave/internal/models"
	"github.com/introweave/introweave/internal/services"
	"github.com/introweave/introweave/pkg/logger"
)

const (
	defaultDigestSpec   = "@hourly"
	defaultApprovalSpec = "@daily"
	defaultConsentSpec  = "@daily"
)

// Scheduler coordinates background jobs: draining digest queues, expiring
// stale cross-tenant approval requests and sweeping lapsed consent pings.
type Scheduler struct {
	db        *gorm.DB
	digest    *services.DigestService
	approvals *services.ApprovalService
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger

	// approvalMaxAge of zero disables the approval expiry sweep: idle
	// requests then wait for an explicit decision forever.
	approvalMaxAge time.Duration

	digestSchedule   string
	approvalSchedule string
	consentSchedule  string
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock used for expiry comparisons.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDigestSchedule overrides the cron specification for digest drains.
func WithDigestSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.digestSchedule = spec
		}
	}
}

// WithApprovalSchedule overrides the cron specification for the approval sweep.
func WithApprovalSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.approvalSchedule = spec
		}
	}
}

// WithApprovalMaxAge enables the approval expiry sweep for requests older
// than the supplied age.
func WithApprovalMaxAge(maxAge time.Duration) Option {
	return func(s *Scheduler) {
		if maxAge > 0 {
			s.approvalMaxAge = maxAge
		}
	}
}

// WithConsentSchedule overrides the cron specification for the consent sweep.
func WithConsentSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.consentSchedule = spec
		}
	}
}

// NewScheduler constructs a Scheduler with sensible defaults. Any nil
// dependency results in the corresponding job being skipped.
func NewScheduler(db *gorm.DB, digest *services.DigestService, approvals *services.ApprovalService, opts ...Option) *Scheduler {
	scheduler := &Scheduler{
		db:               db,
		digest:           digest,
		approvals:        approvals,
		now:              time.Now,
		digestSchedule:   defaultDigestSpec,
		approvalSchedule: defaultApprovalSpec,
		consentSchedule:  defaultConsentSpec,
		log:              logger.WithModule("jobs"),
	}

	for _, opt := range opts {
		opt(scheduler)
	}

	if scheduler.cron == nil {
		scheduler.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return scheduler
}

// Start registers the jobs with the cron scheduler and launches it.
func (s *Scheduler) Start() error {
	if s.digest != nil {
		if _, err := s.cron.AddFunc(s.digestSchedule, func() {
			ctx := context.Background()
			if _, err := s.digest.DrainAll(ctx); err != nil {
				s.log.Warn("digest drain failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if s.approvals != nil && s.approvalMaxAge > 0 {
		if _, err := s.cron.AddFunc(s.approvalSchedule, func() {
			ctx := context.Background()
			if _, err := s.approvals.ExpireStale(ctx, s.approvalMaxAge); err != nil {
				s.log.Warn("approval expiry sweep failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if s.db != nil {
		if _, err := s.cron.AddFunc(s.consentSchedule, func() {
			ctx := context.Background()
			if _, err := ExpireConsentPings(ctx, s.db, s.now()); err != nil {
				s.log.Warn("consent sweep failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for running jobs to complete.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes all configured jobs sequentially. Primarily used in tests
// and during graceful shutdown.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if s.digest != nil {
		if _, err := s.digest.DrainAll(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if s.approvals != nil && s.approvalMaxAge > 0 {
		if _, err := s.approvals.ExpireStale(ctx, s.approvalMaxAge); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if s.db != nil {
		if _, err := ExpireConsentPings(ctx, s.db, s.now()); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

// ExpireConsentPings flips pending consent requests past their expiry to the
// expired status. RecordConsent already refuses lapsed tokens on its own;
// this sweep just keeps the table honest for reporting.
func ExpireConsentPings(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("expire consent pings: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	res := db.WithContext(ctx).Model(&models.OptInRequest{}).
		Where("status = ? AND expires_at <= ?", models.OptInStatusPending, now).
		Update("status", models.OptInStatusExpired)
	if res.Error != nil {
		return 0, fmt.Errorf("expire consent pings: %w", res.Error)
	}
	return res.RowsAffected, nil
}
