package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/introweave/introweave/internal/middleware"
	"github.com/introweave/introweave/internal/services"
	"github.com/introweave/introweave/pkg/errors"
	"github.com/introweave/introweave/pkg/response"
)

// ApprovalHandler exposes the cross-tenant approval workflow.
type ApprovalHandler struct {
	approvals *services.ApprovalService
}

func NewApprovalHandler(approvals *services.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{approvals: approvals}
}

type resolveApprovalRequest struct {
	Decision string `json:"decision" validate:"required,oneof=approve decline"`
	Reason   string `json:"reason" validate:"max=500"`
}

// GET /api/introductions/approvals
func (h *ApprovalHandler) ListPending(c *gin.Context) {
	tenantID := c.GetString(middleware.CtxTenantIDKey)
	if tenantID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	pending, err := h.approvals.ListPendingForTenant(requestContext(c), tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, pending)
}

// POST /api/introductions/approvals/:id
func (h *ApprovalHandler) Resolve(c *gin.Context) {
	var req resolveApprovalRequest
	if !bindAndValidate(c, &req) {
		return
	}

	actorID := c.GetString(middleware.CtxUserIDKey)
	if actorID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	resolved, err := h.approvals.Resolve(requestContext(c), id, actorID, req.Decision, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, resolved)
}
