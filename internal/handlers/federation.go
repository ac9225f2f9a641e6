package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/introweave/introweave/internal/middleware"
	"github.com/introweave/introweave/internal/models"
	"github.com/introweave/introweave/internal/services"
	"github.com/introweave/introweave/pkg/errors"
	"github.com/introweave/introweave/pkg/response"
)

// FederationHandler manages consent agreements between tenant networks.
// The acting tenant is always taken from the caller's token, never the
// payload, so one network cannot speak for another.
type FederationHandler struct {
	federation *services.FederationService
}

func NewFederationHandler(federation *services.FederationService) *FederationHandler {
	return &FederationHandler{federation: federation}
}

type requestFederationRequest struct {
	CounterpartyTenantID string `json:"counterparty_tenant_id" validate:"required"`
	SharePeople          bool   `json:"share_people"`
	ShareConnections     bool   `json:"share_connections"`
	ShareCompanies       bool   `json:"share_companies"`
}

// POST /api/federation
//
// The caller offers the counterparty's members introductions from its own
// network: the caller is the owner of the resulting agreement.
func (h *FederationHandler) Request(c *gin.Context) {
	var req requestFederationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	tenantID := c.GetString(middleware.CtxTenantIDKey)
	if tenantID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	consent, err := h.federation.Request(requestContext(c), tenantID, req.CounterpartyTenantID, models.FederationGrants{
		People:      req.SharePeople,
		Connections: req.ShareConnections,
		Companies:   req.ShareCompanies,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, consent)
}

// POST /api/federation/:id/accept
func (h *FederationHandler) Accept(c *gin.Context) {
	tenantID := c.GetString(middleware.CtxTenantIDKey)
	if tenantID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	consent, err := h.federation.Accept(requestContext(c), strings.TrimSpace(c.Param("id")), tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, consent)
}

// POST /api/federation/:id/decline
func (h *FederationHandler) Decline(c *gin.Context) {
	tenantID := c.GetString(middleware.CtxTenantIDKey)
	if tenantID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.federation.Decline(requestContext(c), strings.TrimSpace(c.Param("id")), tenantID); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"declined": true})
}

// POST /api/federation/:id/revoke
func (h *FederationHandler) Revoke(c *gin.Context) {
	tenantID := c.GetString(middleware.CtxTenantIDKey)
	if tenantID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.federation.Revoke(requestContext(c), strings.TrimSpace(c.Param("id")), tenantID); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// GET /api/federation
func (h *FederationHandler) List(c *gin.Context) {
	tenantID := c.GetString(middleware.CtxTenantIDKey)
	if tenantID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	consents, err := h.federation.ListForTenant(requestContext(c), tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, consents)
}
