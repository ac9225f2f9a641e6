package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/introweave/introweave/internal/app"
	iauth "github.com/introweave/introweave/internal/auth"
	"github.com/introweave/introweave/internal/handlers"
	"github.com/introweave/introweave/internal/middleware"
	"github.com/introweave/introweave/internal/models"
	"github.com/introweave/introweave/internal/realtime"
	"github.com/introweave/introweave/internal/services"
)

// Deps carries the constructed services the router wires to routes. The
// bootstrap owns construction so the scheduler and router share instances.
type Deps struct {
	Config *app.Config
	JWT    *iauth.JWTService
	Hub    *realtime.Hub

	Tenants       *services.TenantService
	Members       *services.MemberService
	Users         *services.UserService
	Discovery     *services.DiscoveryService
	Federation    *services.FederationService
	Introductions *services.IntroductionService
	Approvals     *services.ApprovalService
	Digest        *services.DigestService
	OptIn         *services.OptInService
	Notifications *services.NotificationService

	// RateStore backs the HTTP rate limit middleware. Nil falls back to the
	// in-process store.
	RateStore middleware.RateStore
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	if rl := deps.Config.Server.RateLimit; rl.Enabled {
		store := deps.RateStore
		if store == nil {
			store = middleware.NewMemoryRateStore()
		}
		r.Use(middleware.RateLimitWithStore(store, rl.MaxRequests, rl.Window))
	}

	r.NoRoute(middleware.NotFoundHandler)

	if deps.Config.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health())
	}
	if deps.Config.Monitoring.Prometheus.Enabled {
		endpoint := deps.Config.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	authHandler := handlers.NewAuthHandler(deps.Users, deps.JWT)
	optInHandler := handlers.NewOptInHandler(deps.OptIn)

	// Public routes: login, and the consent response reached from an email
	// link. The consent token is the credential there.
	r.POST("/api/auth/login", authHandler.Login)
	r.POST("/api/optin/respond", optInHandler.Respond)

	requireAuth := middleware.Auth(deps.JWT)
	requireAdmin := middleware.RequireRole(models.MemberRoleAdmin)

	api := r.Group("/api")
	api.Use(requireAuth)

	api.GET("/auth/me", authHandler.Me)

	introHandler := handlers.NewIntroductionHandler(deps.Introductions)
	intros := api.Group("/introductions")
	{
		intros.POST("", introHandler.Submit)
		intros.GET("", requireAdmin, introHandler.List)
		intros.GET("/:id", introHandler.Get)
		intros.POST("/:id/complete", introHandler.Complete)
	}

	approvalHandler := handlers.NewApprovalHandler(deps.Approvals)
	approvals := api.Group("/introductions/approvals")
	{
		// Tenant scoping of the actor is enforced in the service.
		approvals.GET("", requireAdmin, approvalHandler.ListPending)
		approvals.POST("/:id", requireAdmin, approvalHandler.Resolve)
	}

	federationHandler := handlers.NewFederationHandler(deps.Federation)
	federation := api.Group("/federation")
	federation.Use(requireAdmin)
	{
		federation.GET("", federationHandler.List)
		federation.POST("", federationHandler.Request)
		federation.POST("/:id/accept", federationHandler.Accept)
		federation.POST("/:id/decline", federationHandler.Decline)
		federation.POST("/:id/revoke", federationHandler.Revoke)
	}

	discoveryHandler := handlers.NewDiscoveryHandler(deps.Discovery)
	api.GET("/discovery/:tenantID", discoveryHandler.Candidates)

	memberHandler := handlers.NewMemberHandler(deps.Members)
	members := api.Group("/members")
	{
		members.GET("", memberHandler.List)
		members.GET("/:id", memberHandler.Get)
		members.POST("", requireAdmin, memberHandler.Create)
		members.PATCH("/:id", requireAdmin, memberHandler.Update)
		members.POST("/:id/scarcity/refresh", requireAdmin, memberHandler.RefreshScarcity)
	}

	tenantHandler := handlers.NewTenantHandler(deps.Tenants)
	tenants := api.Group("/tenants")
	tenants.Use(requireAdmin)
	{
		tenants.GET("", tenantHandler.List)
		tenants.GET("/:id", tenantHandler.Get)
		tenants.POST("", tenantHandler.Create)
	}

	userHandler := handlers.NewUserHandler(deps.Users)
	api.POST("/users", requireAdmin, userHandler.Create)

	digestHandler := handlers.NewDigestHandler(deps.Digest)
	digest := api.Group("/digest")
	digest.Use(requireAdmin)
	{
		digest.GET("", digestHandler.Pending)
		digest.POST("/drain", digestHandler.Drain)
	}

	notificationHandler := handlers.NewNotificationHandler(deps.Notifications, deps.Hub, deps.JWT)
	notifications := api.Group("/notifications")
	{
		notifications.GET("", notificationHandler.List)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
	}

	if deps.Config.Server.Realtime.Enabled && deps.Hub != nil {
		// Token arrives as a query parameter: browsers cannot set headers on
		// WebSocket dials.
		r.GET("/api/ws", notificationHandler.Stream)
	}

	return r, nil
}
