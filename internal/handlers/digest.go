package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/introweave/introweave/internal/middleware"
	"github.com/introweave/introweave/internal/services"
	"github.com/introweave/introweave/pkg/errors"
	"github.com/introweave/introweave/pkg/response"
)

// DigestHandler exposes the digest queue for inspection and manual drains.
// The scheduler drains on its own; these endpoints let tenant admins peek at
// what is waiting and flush it early.
type DigestHandler struct {
	digest *services.DigestService
}

func NewDigestHandler(digest *services.DigestService) *DigestHandler {
	return &DigestHandler{digest: digest}
}

// GET /api/digest
func (h *DigestHandler) Pending(c *gin.Context) {
	tenantID := c.GetString(middleware.CtxTenantIDKey)
	if tenantID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	entries, err := h.digest.PendingForTenant(requestContext(c), tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, entries)
}

// POST /api/digest/drain
func (h *DigestHandler) Drain(c *gin.Context) {
	tenantID := c.GetString(middleware.CtxTenantIDKey)
	if tenantID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	drained, err := h.digest.DrainTenant(requestContext(c), tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"drained": drained})
}
