package models

import "time"

// Federation consent statuses. A revoked agreement can never be
// reactivated; a fresh request must be created instead.
const (
	FederationStatusPending = "pending"
	FederationStatusActive  = "active"
	FederationStatusRevoked = "revoked"
)

// FederationConsent records what the owner tenant shares INTO the
// counterparty tenant. Sharing is directional: each direction requires its
// own record and the two directions may carry different grants.
type FederationConsent struct {
	BaseModel

	OwnerTenantID        string `gorm:"type:uuid;not null;uniqueIndex:idx_federation_direction" json:"owner_tenant_id"`
	CounterpartyTenantID string `gorm:"type:uuid;not null;uniqueIndex:idx_federation_direction" json:"counterparty_tenant_id"`

	SharePeople      bool `gorm:"not null;default:false" json:"share_people"`
	ShareConnections bool `gorm:"not null;default:false" json:"share_connections"`
	ShareCompanies   bool `gorm:"not null;default:false" json:"share_companies"`

	Status    string     `gorm:"not null;default:pending;index" json:"status"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`

	OwnerTenant        *Tenant `gorm:"foreignKey:OwnerTenantID" json:"owner_tenant,omitempty"`
	CounterpartyTenant *Tenant `gorm:"foreignKey:CounterpartyTenantID" json:"counterparty_tenant,omitempty"`
}

// FederationGrants summarises the data categories an agreement shares.
type FederationGrants struct {
	People      bool `json:"people"`
	Connections bool `json:"connections"`
	Companies   bool `json:"companies"`
}

// Grants returns the grant flags of the consent record.
func (c *FederationConsent) Grants() FederationGrants {
	return FederationGrants{
		People:      c.SharePeople,
		Connections: c.ShareConnections,
		Companies:   c.ShareCompanies,
	}
}
