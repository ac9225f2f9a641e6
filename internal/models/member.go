package models

import (
	"time"

	"gorm.io/datatypes"
)

// Member roles.
const (
	MemberRoleAdmin  = "admin"
	MemberRoleMember = "member"
	MemberRoleScout  = "scout"
)

// Member tiers, in descending order of standing.
const (
	TierVIP     = "vip"
	TierMember  = "member"
	TierStartup = "startup"
	TierGuest   = "guest"
)

// Member visibility levels. Only federated members may be discovered or
// introduced across networks.
const (
	VisibilityPrivate   = "private"
	VisibilityMembers   = "members"
	VisibilityFederated = "federated"
)

// Member statuses. Members are never hard-deleted.
const (
	MemberStatusActive = "active"
	MemberStatusPaused = "paused"
)

// Member is a person within a tenant network.
type Member struct {
	BaseModel

	TenantID string `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Name     string `gorm:"not null" json:"name"`
	Email    string `gorm:"not null;index" json:"email"`
	Headline string `json:"headline,omitempty"`
	Role     string `gorm:"not null;default:member" json:"role"`
	Tier     string `gorm:"not null;default:member" json:"tier"`

	// Scarcity in [0,1]: how in-demand the member is. Recomputed from
	// recent introduction pressure, never set directly by requesters.
	Scarcity   float64        `gorm:"not null;default:0" json:"scarcity"`
	Visibility string         `gorm:"not null;default:members" json:"visibility"`
	Sector     string         `gorm:"index" json:"sector,omitempty"`
	Tags       datatypes.JSON `json:"tags,omitempty"`

	// Rolling weekly introduction counter, debited only on delivery.
	IntrosThisWeek int       `gorm:"not null;default:0" json:"intros_this_week"`
	WeekStart      time.Time `json:"week_start"`

	Status string `gorm:"not null;default:active" json:"status"`

	Tenant *Tenant `gorm:"constraint:OnDelete:CASCADE" json:"tenant,omitempty"`
}

// WeeklyCap returns the per-tier cap on introductions received per week.
func (m *Member) WeeklyCap() int {
	return WeeklyCapForTier(m.Tier)
}

// WeeklyCapForTier maps member tiers to their weekly introduction caps.
func WeeklyCapForTier(tier string) int {
	switch tier {
	case TierVIP:
		return 3
	case TierMember:
		return 5
	case TierStartup:
		return 8
	default:
		return 2
	}
}
