package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/introweave/introweave/internal/services"
	"github.com/introweave/introweave/pkg/response"
)

// OptInHandler records consent ping responses. The token in the payload is
// the only credential: targets answer from an email link without logging in.
type OptInHandler struct {
	optIn *services.OptInService
}

func NewOptInHandler(optIn *services.OptInService) *OptInHandler {
	return &OptInHandler{optIn: optIn}
}

type consentResponseRequest struct {
	Token    string `json:"token" validate:"required"`
	Decision string `json:"decision" validate:"required,oneof=accept decline"`
}

// POST /api/optin/respond
func (h *OptInHandler) Respond(c *gin.Context) {
	var req consentResponseRequest
	if !bindAndValidate(c, &req) {
		return
	}

	intro, err := h.optIn.RecordConsent(requestContext(c), strings.TrimSpace(req.Token), req.Decision == "accept")
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"introduction_id": intro.ID,
		"status":          intro.Status,
	})
}
