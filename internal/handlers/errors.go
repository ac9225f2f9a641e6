package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/introweave/introweave/internal/services"
	appErrors "github.com/introweave/introweave/pkg/errors"
	"github.com/introweave/introweave/pkg/response"
)

// respondError translates service sentinel errors into the API error
// taxonomy before writing the response. Unrecognised errors fall through to
// a generic 500 without leaking internals.
func respondError(c *gin.Context, err error) {
	response.Error(c, mapServiceError(err))
}

func mapServiceError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, services.ErrMemberNotFound),
		errors.Is(err, services.ErrTenantNotFound),
		errors.Is(err, services.ErrIntroductionNotFound),
		errors.Is(err, services.ErrFederationNotFound),
		errors.Is(err, services.ErrApprovalNotFound),
		errors.Is(err, services.ErrConsentNotFound),
		errors.Is(err, services.ErrUserNotFound):
		return appErrors.ErrNotFound.WithInternal(err)

	case errors.Is(err, services.ErrSelfIntroduction):
		return appErrors.NewBadRequest("requester and target must be different members")

	case errors.Is(err, services.ErrMemberInactive):
		return appErrors.New("members.inactive", "Member is not active", http.StatusForbidden).WithInternal(err)

	case errors.Is(err, services.ErrFederationInactive):
		return appErrors.ErrFederationInactive.WithInternal(err)

	case errors.Is(err, services.ErrTargetNotFederated):
		return appErrors.ErrMemberNotFederated.WithInternal(err)

	case errors.Is(err, services.ErrCrossTenantLimit):
		return appErrors.ErrCrossTenantRateLimit.WithInternal(err)

	case errors.Is(err, services.ErrApprovalForbidden):
		return appErrors.ErrForbidden.WithInternal(err)

	case errors.Is(err, services.ErrFederationExists):
		return appErrors.NewConflict("A federation agreement already exists for this direction")

	case errors.Is(err, services.ErrFederationTransition):
		return appErrors.NewConflict("The agreement is not in a state that allows this transition")

	case errors.Is(err, services.ErrApprovalAlreadyResolved):
		return appErrors.NewConflict("The approval request was already resolved")

	case errors.Is(err, services.ErrIntroNotApproved):
		return appErrors.NewConflict("The introduction has not been approved yet")

	case errors.Is(err, services.ErrDigestAlreadyQueued):
		return appErrors.NewConflict("The introduction is already queued for digest delivery")

	case errors.Is(err, services.ErrConsentAlreadyPending):
		return appErrors.NewConflict("A consent request is already outstanding")

	case errors.Is(err, services.ErrConsentAlreadyResolved):
		return appErrors.NewConflict("The consent request was already answered")

	case errors.Is(err, services.ErrIntroNotEligible):
		return appErrors.NewConflict("The introduction is not in an eligible state")

	case errors.Is(err, services.ErrSlugTaken):
		return appErrors.NewConflict("The tenant slug is already in use")

	case errors.Is(err, services.ErrEmailTaken):
		return appErrors.NewConflict("The email address is already registered")

	case errors.Is(err, services.ErrInvalidLogin):
		return appErrors.ErrInvalidCredentials.WithInternal(err)
	}

	return err
}
