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

// IntroductionHandler exposes the introduction request pipeline over HTTP.
type IntroductionHandler struct {
	intros *services.IntroductionService
}

func NewIntroductionHandler(intros *services.IntroductionService) *IntroductionHandler {
	return &IntroductionHandler{intros: intros}
}

type submitIntroductionRequest struct {
	RequesterMemberID string `json:"requester_member_id" validate:"required"`
	TargetMemberID    string `json:"target_member_id" validate:"required"`
	Context           string `json:"context" validate:"max=2000"`
}

// POST /api/introductions
//
// The routing outcome is always a 200: blocked is a decision, not a
// transport failure. Policy rejections keep their HTTP statuses.
func (h *IntroductionHandler) Submit(c *gin.Context) {
	var req submitIntroductionRequest
	if !bindAndValidate(c, &req) {
		return
	}

	// A member token may only request introductions for itself.
	if memberID := c.GetString(middleware.CtxMemberIDKey); memberID != "" && memberID != req.RequesterMemberID {
		if c.GetString(middleware.CtxRoleKey) != "admin" {
			response.Error(c, errors.ErrForbidden)
			return
		}
	}

	result, err := h.intros.Submit(requestContext(c), req.RequesterMemberID, req.TargetMemberID, req.Context)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// GET /api/introductions/:id
func (h *IntroductionHandler) Get(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	intro, err := h.intros.GetByID(requestContext(c), id)
	if err != nil {
		respondError(c, err)
		return
	}

	// Scope reads to the two tenants involved.
	tenantID := c.GetString(middleware.CtxTenantIDKey)
	if tenantID != "" && tenantID != intro.RequesterTenantID && tenantID != intro.TargetTenantID {
		response.Error(c, errors.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, intro)
}

// GET /api/introductions
func (h *IntroductionHandler) List(c *gin.Context) {
	tenantID := c.GetString(middleware.CtxTenantIDKey)
	if tenantID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	limit := parseIntQuery(c, "limit", 50)
	offset := parseIntQuery(c, "offset", 0)

	intros, err := h.intros.ListForTenant(requestContext(c), tenantID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, intros)
}

// POST /api/introductions/:id/complete
func (h *IntroductionHandler) Complete(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	if err := h.intros.MarkCompleted(requestContext(c), id); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"completed": true})
}
