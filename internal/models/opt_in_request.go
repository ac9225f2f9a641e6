package models

import "time"

// Opt-in request statuses.
const (
	OptInStatusPending   = "pending"
	OptInStatusConsented = "consented"
	OptInStatusDeclined  = "declined"
	OptInStatusExpired   = "expired"
)

// OptInRequest is the consent ping of the double opt-in workflow: a
// low-friction message asking the target whether they are open to the
// introduction. The partial index holds the outstanding-ping invariant at
// the database, so one pending row per introduction even under concurrent
// sends. The full introduction is never composed before consent is
// recorded.
type OptInRequest struct {
	BaseModel

	IntroductionID string `gorm:"type:uuid;not null;index;uniqueIndex:idx_opt_in_outstanding,where:status = 'pending'" json:"introduction_id"`
	TargetMemberID string `gorm:"type:uuid;not null" json:"target_member_id"`

	TokenHash string `gorm:"not null;uniqueIndex" json:"-"`

	Status      string     `gorm:"not null;default:pending;index" json:"status"`
	ExpiresAt   time.Time  `gorm:"index" json:"expires_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`

	Introduction *Introduction `gorm:"constraint:OnDelete:CASCADE" json:"introduction,omitempty"`
}
