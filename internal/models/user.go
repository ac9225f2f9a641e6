package models

import "time"

// User is a console account able to authenticate against the API. Every
// user belongs to a tenant and is usually linked to a Member profile.
type User struct {
	BaseModel

	TenantID string  `gorm:"type:uuid;not null;index" json:"tenant_id"`
	MemberID *string `gorm:"type:uuid;index" json:"member_id,omitempty"`

	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`
	Role     string `gorm:"not null;default:member" json:"role"`
	IsActive bool   `gorm:"not null;default:true" json:"is_active"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	Tenant *Tenant `gorm:"constraint:OnDelete:CASCADE" json:"tenant,omitempty"`
	Member *Member `gorm:"constraint:OnDelete:SET NULL" json:"member,omitempty"`
}
