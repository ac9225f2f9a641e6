package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/introweave/introweave/internal/middleware"
	"github.com/introweave/introweave/internal/services"
)

func TestAuthHandlerLoginRoundTrip(t *testing.T) {
	stack := newHandlerStack(t)
	handler := NewAuthHandler(stack.users, stack.jwt)

	tenant := stack.createTenant(t)
	_, err := stack.users.Create(context.Background(), services.CreateUserInput{
		TenantID: tenant.ID,
		Email:    "ada@example.com",
		Password: "correct horse battery",
		Role:     "admin",
	})
	require.NoError(t, err)

	c, recorder := testRequest(t, gin.H{"email": "ada@example.com", "password": "correct horse battery"})
	handler.Login(c)

	require.Equal(t, http.StatusOK, recorder.Code)
	data := decodeResponse(t, recorder).Data.(map[string]any)
	token, _ := data["access_token"].(string)
	require.NotEmpty(t, token)

	claims, err := stack.jwt.ValidateAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, tenant.ID, claims.TenantID)
	require.Equal(t, "admin", claims.Role)
}

func TestAuthHandlerLoginBadPassword(t *testing.T) {
	stack := newHandlerStack(t)
	handler := NewAuthHandler(stack.users, stack.jwt)

	tenant := stack.createTenant(t)
	_, err := stack.users.Create(context.Background(), services.CreateUserInput{
		TenantID: tenant.ID,
		Email:    "bob@example.com",
		Password: "right password",
	})
	require.NoError(t, err)

	c, recorder := testRequest(t, gin.H{"email": "bob@example.com", "password": "wrong password"})
	handler.Login(c)

	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	require.Equal(t, "INVALID_CREDENTIALS", decodeResponse(t, recorder).Error.Code)
}

func TestAuthHandlerMe(t *testing.T) {
	stack := newHandlerStack(t)
	handler := NewAuthHandler(stack.users, stack.jwt)

	admin := stack.createAdminUser(t, stack.createTenant(t).ID)

	c, recorder := testRequest(t, nil)
	c.Request.Method = http.MethodGet
	c.Set(middleware.CtxUserIDKey, admin.ID)
	handler.Me(c)

	require.Equal(t, http.StatusOK, recorder.Code)
	data := decodeResponse(t, recorder).Data.(map[string]any)
	require.Equal(t, admin.Email, data["email"])
	// The password hash never leaves the server.
	_, leaked := data["password"]
	require.False(t, leaked)
}

func TestAuthHandlerMeUnauthenticated(t *testing.T) {
	stack := newHandlerStack(t)
	handler := NewAuthHandler(stack.users, stack.jwt)

	c, recorder := testRequest(t, nil)
	c.Request.Method = http.MethodGet
	handler.Me(c)

	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}
