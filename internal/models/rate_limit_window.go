package models

import "time"

// RateLimitWindow tracks cross-tenant introduction requests issued by a
// single member towards a target tenant within a rolling window. The
// counter is only ever mutated through WHERE-guarded updates so concurrent
// requests cannot both sneak under the limit.
type RateLimitWindow struct {
	BaseModel

	RequesterTenantID string `gorm:"type:uuid;not null;uniqueIndex:idx_rate_limit_key" json:"requester_tenant_id"`
	TargetTenantID    string `gorm:"type:uuid;not null;uniqueIndex:idx_rate_limit_key" json:"target_tenant_id"`
	RequesterMemberID string `gorm:"type:uuid;not null;uniqueIndex:idx_rate_limit_key" json:"requester_member_id"`

	RequestCount int       `gorm:"not null;default:0" json:"request_count"`
	WindowStart  time.Time `gorm:"not null" json:"window_start"`
}
