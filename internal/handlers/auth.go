package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/introweave/introweave/internal/auth"
	"github.com/introweave/introweave/internal/middleware"
	"github.com/introweave/introweave/internal/services"
	"github.com/introweave/introweave/pkg/errors"
	"github.com/introweave/introweave/pkg/response"
)

// AuthHandler manages console authentication (login and identity inspection).
type AuthHandler struct {
	users *services.UserService
	jwt   *iauth.JWTService
}

func NewAuthHandler(users *services.UserService, jwt *iauth.JWTService) *AuthHandler {
	return &AuthHandler{users: users, jwt: jwt}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Authenticate(requestContext(c), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		// Normalise auth errors to 401
		respondError(c, err)
		return
	}

	memberID := ""
	if user.MemberID != nil {
		memberID = *user.MemberID
	}

	token, err := h.jwt.GenerateAccessToken(iauth.AccessTokenInput{
		UserID:   user.ID,
		TenantID: user.TenantID,
		Role:     user.Role,
		MemberID: memberID,
	})
	if err != nil {
		response.Error(c, errors.ErrInternalServer)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"access_token": token,
		"user": gin.H{
			"id":        user.ID,
			"tenant_id": user.TenantID,
			"member_id": memberID,
			"email":     user.Email,
			"role":      user.Role,
		},
	})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	user, err := h.users.GetByID(requestContext(c), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, user)
}
