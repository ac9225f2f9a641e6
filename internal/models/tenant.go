package models

// Tenant statuses.
const (
	TenantStatusActive    = "active"
	TenantStatusSuspended = "suspended"
)

// Tenant represents an isolated member network with its own admins,
// federation agreements and rate-limit budgets.
type Tenant struct {
	BaseModel

	Name   string `gorm:"not null" json:"name"`
	Slug   string `gorm:"uniqueIndex;not null" json:"slug"`
	Status string `gorm:"not null;default:active" json:"status"`
}
