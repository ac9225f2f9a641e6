package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/introweave/introweave/internal/models"
)

// DiscoveryService filters which members a requester may even see as
// introduction candidates. A member can never be the target of a request
// they could not have discovered.
type DiscoveryService struct {
	db         *gorm.DB
	federation *FederationService
}

// NewDiscoveryService constructs a DiscoveryService.
func NewDiscoveryService(db *gorm.DB, federation *FederationService) (*DiscoveryService, error) {
	if db == nil {
		return nil, errors.New("discovery service: db is required")
	}
	if federation == nil {
		return nil, errors.New("discovery service: federation service is required")
	}
	return &DiscoveryService{db: db, federation: federation}, nil
}

// VisibleCandidates returns the members of the given tenant the requester is
// permitted to discover. Same-tenant discovery hides private profiles from
// non-admins; cross-tenant discovery requires an active people-sharing grant
// in the target-to-requester direction and federated visibility.
func (s *DiscoveryService) VisibleCandidates(ctx context.Context, requesterMemberID, tenantID string) ([]models.Member, error) {
	ctx = ensureContext(ctx)

	var requester models.Member
	err := s.db.WithContext(ctx).Where("id = ?", requesterMemberID).First(&requester).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("discovery service: load requester: %w", err)
	}

	query := s.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ? AND id <> ?", tenantID, models.MemberStatusActive, requester.ID)

	if tenantID == requester.TenantID {
		if requester.Role != models.MemberRoleAdmin {
			query = query.Where("visibility <> ?", models.VisibilityPrivate)
		}
	} else {
		grants, err := s.federation.Grants(ctx, tenantID, requester.TenantID)
		if err != nil {
			return nil, err
		}
		if !grants.People {
			return nil, ErrFederationInactive
		}
		query = query.Where("visibility = ?", models.VisibilityFederated)
	}

	var members []models.Member
	if err := query.Order("name ASC").Find(&members).Error; err != nil {
		return nil, fmt.Errorf("discovery service: list candidates: %w", err)
	}
	return members, nil
}
