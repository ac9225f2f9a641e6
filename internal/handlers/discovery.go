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

// DiscoveryHandler lists the members a caller may request introductions to.
type DiscoveryHandler struct {
	discovery *services.DiscoveryService
}

func NewDiscoveryHandler(discovery *services.DiscoveryService) *DiscoveryHandler {
	return &DiscoveryHandler{discovery: discovery}
}

// GET /api/discovery/:tenantID
//
// Visibility and federation gates are enforced in the service: browsing a
// foreign tenant without an active agreement reads as a 403, not an empty
// list, so the caller can distinguish "no candidates" from "no access".
func (h *DiscoveryHandler) Candidates(c *gin.Context) {
	memberID := c.GetString(middleware.CtxMemberIDKey)
	if memberID == "" {
		response.Error(c, errors.ErrForbidden)
		return
	}

	tenantID := strings.TrimSpace(c.Param("tenantID"))
	candidates, err := h.discovery.VisibleCandidates(requestContext(c), memberID, tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, candidates)
}
