package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/introweave/introweave/internal/app"
	iauth "github.com/introweave/introweave/internal/auth"
	"github.com/introweave/introweave/internal/database/testutil"
	"github.com/introweave/introweave/internal/models"
	"github.com/introweave/introweave/internal/realtime"
	"github.com/introweave/introweave/internal/services"
)

func newTestRouter(t *testing.T, cfg *app.Config) (*gin.Engine, *gorm.DB, *iauth.JWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "router-test-secret",
		Issuer:         "test",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	notifier, err := services.NewNotificationService(db, nil, nil)
	require.NoError(t, err)
	tenantSvc, err := services.NewTenantService(db)
	require.NoError(t, err)
	memberSvc, err := services.NewMemberService(db)
	require.NoError(t, err)
	userSvc, err := services.NewUserService(db)
	require.NoError(t, err)
	limiter, err := services.NewRateLimitService(db)
	require.NoError(t, err)
	federationSvc, err := services.NewFederationService(db, notifier)
	require.NoError(t, err)
	discoverySvc, err := services.NewDiscoveryService(db, federationSvc)
	require.NoError(t, err)
	digestSvc, err := services.NewDigestService(db, notifier)
	require.NoError(t, err)
	optInSvc, err := services.NewOptInService(db, limiter, notifier)
	require.NoError(t, err)
	approvalSvc, err := services.NewApprovalService(db, optInSvc, digestSvc, notifier)
	require.NoError(t, err)
	introSvc, err := services.NewIntroductionService(db, limiter, federationSvc, digestSvc, optInSvc, notifier,
		services.IntroductionConfig{})
	require.NoError(t, err)

	router, err := NewRouter(Deps{
		Config:        cfg,
		JWT:           jwtSvc,
		Hub:           realtime.NewHub(),
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
	})
	require.NoError(t, err)

	return router, db, jwtSvc
}

func routerTestConfig() *app.Config {
	cfg := &app.Config{}
	cfg.Server.Port = 0
	cfg.Monitoring.Health.Enabled = true
	cfg.Monitoring.Prometheus.Enabled = true
	cfg.Monitoring.Prometheus.Endpoint = "/metrics"
	cfg.Server.Realtime.Enabled = true
	return cfg
}

func TestRouterPublicAndProtectedRoutes(t *testing.T) {
	router, _, _ := newTestRouter(t, routerTestConfig())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	for _, path := range []string{"/api/auth/me", "/api/introductions", "/api/members", "/api/federation"} {
		w = httptest.NewRecorder()
		req, _ = http.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusUnauthorized, w.Code, "expected 401 for %s", path)
	}
}

func TestRouterRoleGate(t *testing.T) {
	router, db, jwtSvc := newTestRouter(t, routerTestConfig())

	tenant := &models.Tenant{Name: "Router Net", Slug: "router-net"}
	require.NoError(t, db.Create(tenant).Error)

	memberToken, err := jwtSvc.GenerateAccessToken(iauth.AccessTokenInput{
		UserID:   "user-1",
		TenantID: tenant.ID,
		Role:     models.MemberRoleMember,
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/tenants", strings.NewReader(`{"name":"Blocked"}`))
	req.Header.Set("Authorization", "Bearer "+memberToken)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)

	adminToken, err := jwtSvc.GenerateAccessToken(iauth.AccessTokenInput{
		UserID:   "user-2",
		TenantID: tenant.ID,
		Role:     models.MemberRoleAdmin,
	})
	require.NoError(t, err)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodPost, "/api/tenants", strings.NewReader(`{"name":"Allowed"}`))
	req.Header.Set("Authorization", "Bearer "+adminToken)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t, routerTestConfig())

	rec := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	metricsRec := httptest.NewRecorder()
	metricsReq, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(metricsRec, metricsReq)
	require.Equal(t, http.StatusOK, metricsRec.Code)
	require.Contains(t, metricsRec.Body.String(), "introweave_api_latency_seconds")
}

func TestRouterUnknownRoute(t *testing.T) {
	router, _, _ := newTestRouter(t, routerTestConfig())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/nope", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}
