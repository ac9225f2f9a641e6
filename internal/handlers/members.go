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

// MemberHandler manages member profiles within the caller's tenant.
type MemberHandler struct {
	members *services.MemberService
}

func NewMemberHandler(members *services.MemberService) *MemberHandler {
	return &MemberHandler{members: members}
}

type createMemberRequest struct {
	Name       string   `json:"name" validate:"required,max=200"`
	Email      string   `json:"email" validate:"required,email"`
	Headline   string   `json:"headline" validate:"max=300"`
	Role       string   `json:"role" validate:"omitempty,oneof=member admin scout"`
	Tier       string   `json:"tier" validate:"omitempty,oneof=guest startup member vip"`
	Visibility string   `json:"visibility" validate:"omitempty,oneof=private members federated"`
	Sector     string   `json:"sector" validate:"max=100"`
	Tags       []string `json:"tags"`
}

type updateMemberRequest struct {
	Name       *string  `json:"name" validate:"omitempty,max=200"`
	Headline   *string  `json:"headline" validate:"omitempty,max=300"`
	Tier       *string  `json:"tier" validate:"omitempty,oneof=guest startup member vip"`
	Visibility *string  `json:"visibility" validate:"omitempty,oneof=private members federated"`
	Sector     *string  `json:"sector" validate:"omitempty,max=100"`
	Tags       []string `json:"tags"`
	Scarcity   *float64 `json:"scarcity"`
	Status     *string  `json:"status" validate:"omitempty,oneof=active paused"`
}

// POST /api/members
func (h *MemberHandler) Create(c *gin.Context) {
	var req createMemberRequest
	if !bindAndValidate(c, &req) {
		return
	}

	tenantID := c.GetString(middleware.CtxTenantIDKey)
	if tenantID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	member, err := h.members.Create(requestContext(c), services.CreateMemberInput{
		TenantID:   tenantID,
		Name:       req.Name,
		Email:      req.Email,
		Headline:   req.Headline,
		Role:       req.Role,
		Tier:       req.Tier,
		Visibility: req.Visibility,
		Sector:     req.Sector,
		Tags:       req.Tags,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, member)
}

// GET /api/members/:id
func (h *MemberHandler) Get(c *gin.Context) {
	member, err := h.members.GetByID(requestContext(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}

	if tenantID := c.GetString(middleware.CtxTenantIDKey); tenantID != "" && tenantID != member.TenantID {
		response.Error(c, errors.ErrNotFound)
		return
	}

	response.Success(c, http.StatusOK, member)
}

// GET /api/members
func (h *MemberHandler) List(c *gin.Context) {
	tenantID := c.GetString(middleware.CtxTenantIDKey)
	if tenantID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	members, err := h.members.ListByTenant(requestContext(c), tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, members)
}

// PATCH /api/members/:id
func (h *MemberHandler) Update(c *gin.Context) {
	var req updateMemberRequest
	if !bindAndValidate(c, &req) {
		return
	}

	id := strings.TrimSpace(c.Param("id"))

	existing, err := h.members.GetByID(requestContext(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if tenantID := c.GetString(middleware.CtxTenantIDKey); tenantID != "" && tenantID != existing.TenantID {
		response.Error(c, errors.ErrNotFound)
		return
	}

	member, err := h.members.Update(requestContext(c), id, services.UpdateMemberInput{
		Name:       req.Name,
		Headline:   req.Headline,
		Tier:       req.Tier,
		Visibility: req.Visibility,
		Sector:     req.Sector,
		Tags:       req.Tags,
		Scarcity:   req.Scarcity,
		Status:     req.Status,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, member)
}

// POST /api/members/:id/scarcity/refresh
func (h *MemberHandler) RefreshScarcity(c *gin.Context) {
	scarcity, err := h.members.RefreshScarcity(requestContext(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"scarcity": scarcity})
}
