package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/introweave/introweave/internal/auth"
	"github.com/introweave/introweave/internal/middleware"
	"github.com/introweave/introweave/internal/realtime"
	"github.com/introweave/introweave/internal/services"
	"github.com/introweave/introweave/pkg/errors"
	"github.com/introweave/introweave/pkg/response"
)

// NotificationHandler exposes HTTP endpoints for in-app notifications and
// the realtime stream.
type NotificationHandler struct {
	service *services.NotificationService
	hub     *realtime.Hub
	jwt     *iauth.JWTService
}

func NewNotificationHandler(service *services.NotificationService, hub *realtime.Hub, jwt *iauth.JWTService) *NotificationHandler {
	return &NotificationHandler{service: service, hub: hub, jwt: jwt}
}

// List returns notifications for the current user.
func (h *NotificationHandler) List(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	limit := parseIntQuery(c, "limit", 25)
	offset := parseIntQuery(c, "offset", 0)

	items, err := h.service.ListForUser(requestContext(c), userID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, items)
}

// MarkRead toggles a notification to read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if err := h.service.MarkRead(requestContext(c), userID, id); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"read": true})
}

// Stream upgrades the connection to a WebSocket for realtime events.
func (h *NotificationHandler) Stream(c *gin.Context) {
	if h.jwt == nil || h.hub == nil {
		response.Error(c, errors.ErrNotFound)
		return
	}

	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		authz := c.GetHeader("Authorization")
		if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			token = strings.TrimSpace(authz[7:])
		}
	}

	if token == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	claims, err := h.jwt.ValidateAccessToken(token)
	if err != nil {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	h.hub.Serve(claims.UserID, c.Writer, c.Request)
}
