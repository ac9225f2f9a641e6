package models

import "time"

// Cross-tenant approval request statuses.
const (
	CrossTenantStatusPending  = "pending_approval"
	CrossTenantStatusApproved = "approved"
	CrossTenantStatusDeclined = "declined"
)

// CrossTenantIntroRequest is the approval envelope wrapping a cross-tenant
// Introduction. It is resolved at most once by an admin of the target tenant.
type CrossTenantIntroRequest struct {
	BaseModel

	IntroductionID string `gorm:"type:uuid;not null;uniqueIndex" json:"introduction_id"`

	RequesterTenantID string `gorm:"type:uuid;not null;index" json:"requester_tenant_id"`
	TargetTenantID    string `gorm:"type:uuid;not null;index" json:"target_tenant_id"`
	RequesterMemberID string `gorm:"type:uuid;not null" json:"requester_member_id"`
	TargetMemberID    string `gorm:"type:uuid;not null" json:"target_member_id"`

	Status     string     `gorm:"not null;default:pending_approval;index" json:"status"`
	ResolvedBy string     `gorm:"type:uuid" json:"resolved_by,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	Reason     string     `json:"reason,omitempty"`

	Introduction *Introduction `gorm:"constraint:OnDelete:CASCADE" json:"introduction,omitempty"`
}
