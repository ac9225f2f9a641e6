package models

import (
	"time"

	"gorm.io/datatypes"
)

// Introduction statuses. Transitions are append-only: a status never
// regresses except through an explicit decline.
const (
	IntroStatusRequested    = "requested"
	IntroStatusPreConsented = "pre_consented"
	IntroStatusScheduled    = "scheduled"
	IntroStatusCompleted    = "completed"
	IntroStatusDeclined     = "declined"
)

// Routing outcomes produced by the decision engine.
const (
	RouteDirect  = "direct"
	RouteDigest  = "digest"
	RouteBlocked = "blocked"
)

// Introduction links a requester to a target member together with the
// priority verdict computed at submission time.
type Introduction struct {
	BaseModel

	RequesterMemberID string `gorm:"type:uuid;not null;index" json:"requester_member_id"`
	TargetMemberID    string `gorm:"type:uuid;not null;index" json:"target_member_id"`
	RequesterTenantID string `gorm:"type:uuid;not null;index" json:"requester_tenant_id"`
	TargetTenantID    string `gorm:"type:uuid;not null;index" json:"target_tenant_id"`

	Context string `json:"context,omitempty"`

	PriorityScore   float64           `gorm:"not null" json:"priority_score"`
	PriorityFactors datatypes.JSONMap `json:"priority_factors,omitempty"`
	Routing         string            `gorm:"not null" json:"routing"`

	// Invariant: true iff requester and target tenants differ.
	IsCrossTenant bool `gorm:"not null;index" json:"is_cross_tenant"`

	Status string `gorm:"not null;default:requested;index" json:"status"`

	RequestedAt time.Time  `json:"requested_at"`
	ConsentedAt *time.Time `json:"consented_at,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DeclinedAt  *time.Time `json:"declined_at,omitempty"`

	RequesterMember *Member `gorm:"foreignKey:RequesterMemberID" json:"requester_member,omitempty"`
	TargetMember    *Member `gorm:"foreignKey:TargetMemberID" json:"target_member,omitempty"`
}
