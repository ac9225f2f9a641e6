package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJWTServiceRoundTrip(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "test-secret", Issuer: "introweave"})
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken(AccessTokenInput{
		UserID:   "user-1",
		TenantID: "tenant-1",
		Role:     "admin",
		MemberID: "member-1",
	})
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "tenant-1", claims.TenantID)
	require.Equal(t, "admin", claims.Role)
	require.Equal(t, "member-1", claims.MemberID)
}

func TestJWTServiceRejectsMissingTenant(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "test-secret"})
	require.NoError(t, err)

	_, err = svc.GenerateAccessToken(AccessTokenInput{UserID: "user-1"})
	require.Error(t, err)
}

func TestJWTServiceRejectsExpiredToken(t *testing.T) {
	current := time.Now()
	clock := func() time.Time { return current }

	svc, err := NewJWTService(JWTConfig{
		Secret:         "test-secret",
		AccessTokenTTL: time.Minute,
		Clock:          clock,
	})
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken(AccessTokenInput{UserID: "user-1", TenantID: "tenant-1"})
	require.NoError(t, err)

	current = current.Add(2 * time.Minute)
	_, err = svc.ValidateAccessToken(token)
	require.Error(t, err)
}

func TestJWTServiceRejectsWrongIssuer(t *testing.T) {
	issuerA, err := NewJWTService(JWTConfig{Secret: "test-secret", Issuer: "a"})
	require.NoError(t, err)
	issuerB, err := NewJWTService(JWTConfig{Secret: "test-secret", Issuer: "b"})
	require.NoError(t, err)

	token, err := issuerA.GenerateAccessToken(AccessTokenInput{UserID: "user-1", TenantID: "tenant-1"})
	require.NoError(t, err)

	_, err = issuerB.ValidateAccessToken(token)
	require.Error(t, err)
}
