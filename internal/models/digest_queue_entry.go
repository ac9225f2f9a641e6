package models

import "time"

// DigestQueueEntry is a deferred notification for an introduction routed to
// batch delivery. Entries keep the score observed at enqueue time and are
// never re-scored. At most one unprocessed entry exists per introduction.
type DigestQueueEntry struct {
	BaseModel

	IntroductionID string  `gorm:"type:uuid;not null;index" json:"introduction_id"`
	TargetTenantID string  `gorm:"type:uuid;not null;index" json:"target_tenant_id"`
	TargetMemberID string  `gorm:"type:uuid;not null" json:"target_member_id"`
	PriorityScore  float64 `gorm:"not null" json:"priority_score"`

	ProcessedAt *time.Time `gorm:"index" json:"processed_at,omitempty"`

	Introduction *Introduction `gorm:"constraint:OnDelete:CASCADE" json:"introduction,omitempty"`
}
