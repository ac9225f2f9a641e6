package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/introweave/introweave/internal/services"
	"github.com/introweave/introweave/pkg/response"
)

// TenantHandler manages tenant networks. Creation and listing are operator
// surfaces and sit behind the admin role in the router.
type TenantHandler struct {
	tenants *services.TenantService
}

func NewTenantHandler(tenants *services.TenantService) *TenantHandler {
	return &TenantHandler{tenants: tenants}
}

type createTenantRequest struct {
	Name string `json:"name" validate:"required,max=200"`
	Slug string `json:"slug" validate:"omitempty,max=100"`
}

// POST /api/tenants
func (h *TenantHandler) Create(c *gin.Context) {
	var req createTenantRequest
	if !bindAndValidate(c, &req) {
		return
	}

	tenant, err := h.tenants.Create(requestContext(c), req.Name, req.Slug)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, tenant)
}

// GET /api/tenants/:id
func (h *TenantHandler) Get(c *gin.Context) {
	tenant, err := h.tenants.GetByID(requestContext(c), strings.TrimSpace(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, tenant)
}

// GET /api/tenants
func (h *TenantHandler) List(c *gin.Context) {
	tenants, err := h.tenants.List(requestContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, tenants)
}
