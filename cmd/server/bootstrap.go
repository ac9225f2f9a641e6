package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/introweave/introweave/internal/api"
	"github.com/introweave/introweave/internal/app"
	iauth "github.com/introweave/introweave/internal/auth"
	"github.com/introweave/introweave/internal/cache"
	"github.com/introweave/introweave/internal/database"
	"github.com/introweave/introweave/internal/jobs"
	"github.com/introweave/introweave/internal/middleware"
	"github.com/introweave/introweave/internal/realtime"
	"github.com/introweave/introweave/internal/services"
	"github.com/introweave/introweave/pkg/logger"
	"github.com/introweave/introweave/pkg/mail"
)

// runtimeStack bundles long-lived resources used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Redis     *cache.RedisStore
	Scheduler *jobs.Scheduler
	RateStore middleware.RateStore
	Router    *gin.Engine
}

// bootstrapRuntime initialises the database, caches, services, background
// jobs and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	dbStore := cache.NewDatabaseStore(stack.DB)

	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisStore(cfg.Cache.RedisSettings()); err != nil {
			log.Warn("redis unavailable; falling back to database-backed operations", zap.Error(err))
			stack.Redis = nil
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	var mailer mail.Mailer
	if cfg.Email.SMTP.Enabled {
		if mailer, err = mail.NewSMTPMailer(cfg.Email.SMTPSettings()); err != nil {
			return nil, fmt.Errorf("initialise mailer: %w", err)
		}
	}

	hub := realtime.NewHub()

	notifier, err := services.NewNotificationService(stack.DB, mailer, hub)
	if err != nil {
		return nil, fmt.Errorf("initialise notification service: %w", err)
	}

	tenantSvc, err := services.NewTenantService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise tenant service: %w", err)
	}

	memberSvc, err := services.NewMemberService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise member service: %w", err)
	}

	userSvc, err := services.NewUserService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise user service: %w", err)
	}

	limiter, err := services.NewRateLimitService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise rate limit service: %w", err)
	}

	federationSvc, err := services.NewFederationService(stack.DB, notifier)
	if err != nil {
		return nil, fmt.Errorf("initialise federation service: %w", err)
	}

	discoverySvc, err := services.NewDiscoveryService(stack.DB, federationSvc)
	if err != nil {
		return nil, fmt.Errorf("initialise discovery service: %w", err)
	}

	digestSvc, err := services.NewDigestService(stack.DB, notifier)
	if err != nil {
		return nil, fmt.Errorf("initialise digest service: %w", err)
	}

	optInSvc, err := services.NewOptInService(stack.DB, limiter, notifier,
		services.WithConsentExpiry(cfg.Engine.Consent.Expiry))
	if err != nil {
		return nil, fmt.Errorf("initialise opt-in service: %w", err)
	}

	approvalSvc, err := services.NewApprovalService(stack.DB, optInSvc, digestSvc, notifier)
	if err != nil {
		return nil, fmt.Errorf("initialise approval service: %w", err)
	}

	introSvc, err := services.NewIntroductionService(stack.DB, limiter, federationSvc, digestSvc, optInSvc, notifier,
		cfg.Engine.IntroductionSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise introduction service: %w", err)
	}

	schedulerOpts := []jobs.Option{jobs.WithDigestSchedule(cfg.Digest.CronSpec)}
	if cfg.Approvals.ExpiryDays > 0 {
		schedulerOpts = append(schedulerOpts,
			jobs.WithApprovalMaxAge(time.Duration(cfg.Approvals.ExpiryDays)*24*time.Hour))
	}
	stack.Scheduler = jobs.NewScheduler(stack.DB, digestSvc, approvalSvc, schedulerOpts...)
	if err := stack.Scheduler.Start(); err != nil {
		return nil, fmt.Errorf("start background jobs: %w", err)
	}

	switch {
	case stack.Redis != nil:
		stack.RateStore = middleware.NewRedisRateStore(stack.Redis)
	case dbStore != nil:
		stack.RateStore = middleware.NewDatabaseRateStore(dbStore)
	}

	stack.Router, err = api.NewRouter(api.Deps{
		Config:        cfg,
		JWT:           jwtSvc,
		Hub:           hub,
		Tenants:       tenantSvc,
		Members:       memberSvc,
		Users:         userSvc,
		Discovery:     discoverySvc,
		Federation:    federationSvc,
		Introductions: introSvc,
		Approvals:     approvalSvc,
		Digest:        digestSvc,
		OptIn:         optInSvc,
		Notifications: notifier,
		RateStore:     stack.RateStore,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Scheduler != nil {
		stopCtx := s.Scheduler.Stop()
		if stopCtx != nil {
			ctx = stopCtx
		}
		if err := s.Scheduler.RunOnce(ctx); err != nil {
			log.Warn("job shutdown sweep failed", zap.Error(err))
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseSettings()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
