package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	iauth "github.com/introweave/introweave/internal/auth"
	"github.com/introweave/introweave/internal/database/testutil"
	"github.com/introweave/introweave/internal/middleware"
	"github.com/introweave/introweave/internal/models"
	"github.com/introweave/introweave/internal/services"
	"github.com/introweave/introweave/pkg/response"
)

// silentNotifier keeps handler tests quiet while recording dispatches.
type silentNotifier struct {
	mu     sync.Mutex
	inputs []services.NotifyInput
}

func (n *silentNotifier) Notify(_ context.Context, input services.NotifyInput) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.inputs = append(n.inputs, input)
	return nil
}

// handlerStack wires the full service graph against an in-memory database.
type handlerStack struct {
	db       *gorm.DB
	notifier *silentNotifier
	jwt      *iauth.JWTService

	tenants    *services.TenantService
	members    *services.MemberService
	users      *services.UserService
	federation *services.FederationService
	intros     *services.IntroductionService
	approvals  *services.ApprovalService
	optIn      *services.OptInService
	digest     *services.DigestService
}

func newHandlerStack(t *testing.T) *handlerStack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	notifier := &silentNotifier{}

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "handler-test-secret",
		Issuer:         "test",
		AccessTokenTTL: time.Hour,
	})
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
	digestSvc, err := services.NewDigestService(db, notifier)
	require.NoError(t, err)
	optInSvc, err := services.NewOptInService(db, limiter, notifier)
	require.NoError(t, err)
	approvalSvc, err := services.NewApprovalService(db, optInSvc, digestSvc, notifier)
	require.NoError(t, err)
	introSvc, err := services.NewIntroductionService(db, limiter, federationSvc, digestSvc, optInSvc, notifier,
		services.IntroductionConfig{})
	require.NoError(t, err)

	return &handlerStack{
		db:         db,
		notifier:   notifier,
		jwt:        jwtSvc,
		tenants:    tenantSvc,
		members:    memberSvc,
		users:      userSvc,
		federation: federationSvc,
		intros:     introSvc,
		approvals:  approvalSvc,
		optIn:      optInSvc,
		digest:     digestSvc,
	}
}

func (s *handlerStack) createTenant(t *testing.T) *models.Tenant {
	t.Helper()

	tenant := &models.Tenant{Name: "Handler Net", Slug: "handler-" + uuid.NewString()}
	require.NoError(t, s.db.Create(tenant).Error)
	return tenant
}

func (s *handlerStack) createMember(t *testing.T, tenantID string) *models.Member {
	t.Helper()

	member := &models.Member{
		TenantID:   tenantID,
		Name:       "Member " + uuid.NewString()[:8],
		Email:      uuid.NewString() + "@example.com",
		Role:       models.MemberRoleMember,
		Tier:       models.TierMember,
		Visibility: models.VisibilityMembers,
		Status:     models.MemberStatusActive,
		WeekStart:  time.Now().UTC(),
	}
	require.NoError(t, s.db.Create(member).Error)
	return member
}

func (s *handlerStack) createAdminUser(t *testing.T, tenantID string) *models.User {
	t.Helper()

	user := &models.User{
		TenantID: tenantID,
		Email:    uuid.NewString() + "@example.com",
		Password: "irrelevant-hash",
		Role:     models.MemberRoleAdmin,
		IsActive: true,
	}
	require.NoError(t, s.db.Create(user).Error)
	return user
}

// testRequest builds a gin test context carrying an optional JSON body and
// identity keys, mirroring what the auth middleware would set.
func testRequest(t *testing.T, body any) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(http.MethodPost, "/", reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	return c, recorder
}

func asIdentity(c *gin.Context, user *models.User) {
	c.Set(middleware.CtxUserIDKey, user.ID)
	c.Set(middleware.CtxTenantIDKey, user.TenantID)
	c.Set(middleware.CtxRoleKey, user.Role)
	if user.MemberID != nil {
		c.Set(middleware.CtxMemberIDKey, *user.MemberID)
	}
}

func decodeResponse(t *testing.T, recorder *httptest.ResponseRecorder) response.Response {
	t.Helper()

	var payload response.Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	return payload
}
