package services

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Sentinel errors surfaced by the routing and federation services. Handlers
// translate them into the API error taxonomy.
var (
	// ErrMemberNotFound indicates the requester or target member does not exist.
	ErrMemberNotFound = errors.New("members: not found")
	// ErrMemberInactive indicates the member exists but is paused.
	ErrMemberInactive = errors.New("members: not active")
	// ErrTenantNotFound indicates an unknown tenant id or slug.
	ErrTenantNotFound = errors.New("tenants: not found")
	// ErrSelfIntroduction rejects introductions from a member to themselves.
	ErrSelfIntroduction = errors.New("introductions: requester and target are the same member")
	// ErrIntroductionNotFound indicates an unknown introduction id.
	ErrIntroductionNotFound = errors.New("introductions: not found")

	// ErrFederationNotFound indicates no consent record for the id or direction.
	ErrFederationNotFound = errors.New("federation: consent not found")
	// ErrFederationInactive signals a cross-tenant request without an active agreement.
	ErrFederationInactive = errors.New("federation: agreement not active")
	// ErrFederationExists indicates a record already covers the direction.
	ErrFederationExists = errors.New("federation: agreement already exists for this direction")
	// ErrFederationTransition indicates the record is not in the state the transition requires.
	ErrFederationTransition = errors.New("federation: invalid state transition")
	// ErrTargetNotFederated signals the target member has not opted in to federation.
	ErrTargetNotFederated = errors.New("federation: target member visibility is not federated")
	// ErrCrossTenantLimit signals the rolling cross-tenant request quota was hit.
	ErrCrossTenantLimit = errors.New("federation: cross-tenant request limit reached")

	// ErrApprovalNotFound indicates an unknown cross-tenant request id.
	ErrApprovalNotFound = errors.New("approvals: request not found")
	// ErrApprovalAlreadyResolved signals a second resolution attempt on the same request.
	ErrApprovalAlreadyResolved = errors.New("approvals: request already resolved")
	// ErrApprovalForbidden signals the actor is not an admin of the target tenant.
	ErrApprovalForbidden = errors.New("approvals: actor may not resolve this request")
	// ErrIntroNotApproved blocks the opt-in workflow for unapproved cross-tenant intros.
	ErrIntroNotApproved = errors.New("approvals: cross-tenant introduction not approved")

	// ErrDigestAlreadyQueued prevents duplicate unprocessed digest entries.
	ErrDigestAlreadyQueued = errors.New("digest: introduction already queued")

	// ErrConsentAlreadyPending prevents re-sending an outstanding consent ping.
	ErrConsentAlreadyPending = errors.New("optin: consent ping already outstanding")
	// ErrConsentNotFound indicates an unknown or consumed consent token.
	ErrConsentNotFound = errors.New("optin: consent request not found")
	// ErrConsentAlreadyResolved signals a second response to the same consent ping.
	ErrConsentAlreadyResolved = errors.New("optin: consent already recorded")
	// ErrIntroNotEligible blocks the opt-in workflow for intros that are not clear to proceed.
	ErrIntroNotEligible = errors.New("optin: introduction not eligible for consent")

	// ErrUserNotFound indicates an unknown console account.
	ErrUserNotFound = errors.New("users: not found")

	// ErrSlugTaken indicates the tenant slug is already in use.
	ErrSlugTaken = errors.New("tenants: slug already in use")
	// ErrEmailTaken indicates the email is already registered to an account.
	ErrEmailTaken = errors.New("users: email already registered")
)

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate") ||
		strings.Contains(lower, "constraint")
}
