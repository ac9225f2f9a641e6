package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification types emitted by the routing engine.
const (
	NotificationApprovalRequested = "introductions.approval_requested"
	NotificationApprovalResolved  = "introductions.approval_resolved"
	NotificationConsentRequested  = "introductions.consent_requested"
	NotificationIntroComposed     = "introductions.composed"
	NotificationDigestReady       = "digest.ready"
)

// Notification is an in-app notification row shown in the admin console.
// Delivery over email is best effort and never blocks workflow state.
type Notification struct {
	BaseModel

	UserID   string            `gorm:"type:uuid;not null;index" json:"user_id"`
	Type     string            `gorm:"not null;index" json:"type"`
	Title    string            `gorm:"not null" json:"title"`
	Message  string            `json:"message"`
	Metadata datatypes.JSONMap `json:"metadata,omitempty"`

	IsRead bool       `gorm:"not null;default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at,omitempty"`
}
