package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/introweave/introweave/internal/models"
)

// FederationOption customises FederationService behaviour.
type FederationOption func(*FederationService)

// WithFederationClock injects a custom clock primarily for testing.
func WithFederationClock(clock func() time.Time) FederationOption {
	return func(s *FederationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// FederationService manages directional data-sharing agreements between
// tenants. Sharing is asymmetric by design: tenant A sharing into B says
// nothing about B sharing into A.
type FederationService struct {
	db       *gorm.DB
	notifier Notifier
	now      func() time.Time
}

// NewFederationService constructs a FederationService. The notifier is optional.
func NewFederationService(db *gorm.DB, notifier Notifier, opts ...FederationOption) (*FederationService, error) {
	if db == nil {
		return nil, errors.New("federation service: db is required")
	}

	service := &FederationService{db: db, notifier: notifier, now: time.Now}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Request creates a pending agreement describing what the owner tenant
// offers to share into the counterparty tenant.
func (s *FederationService) Request(ctx context.Context, ownerTenantID, counterpartyTenantID string, grants models.FederationGrants) (*models.FederationConsent, error) {
	ctx = ensureContext(ctx)

	if ownerTenantID == "" || counterpartyTenantID == "" {
		return nil, errors.New("federation service: both tenant ids are required")
	}
	if ownerTenantID == counterpartyTenantID {
		return nil, errors.New("federation service: a tenant cannot federate with itself")
	}

	var tenantCount int64
	if err := s.db.WithContext(ctx).Model(&models.Tenant{}).
		Where("id IN ?", []string{ownerTenantID, counterpartyTenantID}).
		Count(&tenantCount).Error; err != nil {
		return nil, fmt.Errorf("federation service: verify tenants: %w", err)
	}
	if tenantCount != 2 {
		return nil, ErrTenantNotFound
	}

	consent := models.FederationConsent{
		OwnerTenantID:        ownerTenantID,
		CounterpartyTenantID: counterpartyTenantID,
		SharePeople:          grants.People,
		ShareConnections:     grants.Connections,
		ShareCompanies:       grants.Companies,
		Status:               models.FederationStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(&consent).Error; err != nil {
		if isUniqueConstraintError(err) {
			// A revoked agreement for this direction does not block a fresh
			// request: recycle the row back to pending with the new grants.
			// Pending or active agreements do.
			res := s.db.WithContext(ctx).Model(&models.FederationConsent{}).
				Where("owner_tenant_id = ? AND counterparty_tenant_id = ? AND status = ?",
					ownerTenantID, counterpartyTenantID, models.FederationStatusRevoked).
				Updates(map[string]any{
					"status":            models.FederationStatusPending,
					"share_people":      grants.People,
					"share_connections": grants.Connections,
					"share_companies":   grants.Companies,
					"accepted_at":       nil,
					"revoked_at":        nil,
				})
			if res.Error != nil {
				return nil, fmt.Errorf("federation service: recycle consent: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return nil, ErrFederationExists
			}
			if err := s.db.WithContext(ctx).
				Where("owner_tenant_id = ? AND counterparty_tenant_id = ?", ownerTenantID, counterpartyTenantID).
				First(&consent).Error; err != nil {
				return nil, fmt.Errorf("federation service: reload consent: %w", err)
			}
		} else {
			return nil, fmt.Errorf("federation service: create consent: %w", err)
		}
	}

	if s.notifier != nil {
		_ = s.notifier.Notify(ctx, NotifyInput{
			TenantAdminsOf: counterpartyTenantID,
			Type:           "federation.requested",
			Title:          "New federation request",
			Message:        "Another network has offered a data-sharing agreement.",
			Metadata:       map[string]any{"consent_id": consent.ID},
		})
	}

	return &consent, nil
}

// Accept activates a pending agreement. Only the counterparty tenant may accept.
func (s *FederationService) Accept(ctx context.Context, consentID, actorTenantID string) (*models.FederationConsent, error) {
	ctx = ensureContext(ctx)

	consent, err := s.getByID(ctx, consentID)
	if err != nil {
		return nil, err
	}
	if consent.CounterpartyTenantID != actorTenantID {
		return nil, ErrApprovalForbidden
	}

	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.FederationConsent{}).
		Where("id = ? AND status = ?", consentID, models.FederationStatusPending).
		Updates(map[string]any{
			"status":      models.FederationStatusActive,
			"accepted_at": now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("federation service: accept consent: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrFederationTransition
	}

	consent.Status = models.FederationStatusActive
	consent.AcceptedAt = &now
	return consent, nil
}

// Decline removes a pending agreement. Only the counterparty tenant may decline.
func (s *FederationService) Decline(ctx context.Context, consentID, actorTenantID string) error {
	ctx = ensureContext(ctx)

	consent, err := s.getByID(ctx, consentID)
	if err != nil {
		return err
	}
	if consent.CounterpartyTenantID != actorTenantID {
		return ErrApprovalForbidden
	}

	res := s.db.WithContext(ctx).
		Where("id = ? AND status = ?", consentID, models.FederationStatusPending).
		Delete(&models.FederationConsent{})
	if res.Error != nil {
		return fmt.Errorf("federation service: decline consent: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrFederationTransition
	}
	return nil
}

// Revoke terminates an active agreement. Either party may revoke; the
// transition is immediate and irreversible.
func (s *FederationService) Revoke(ctx context.Context, consentID, actorTenantID string) error {
	ctx = ensureContext(ctx)

	consent, err := s.getByID(ctx, consentID)
	if err != nil {
		return err
	}
	if consent.OwnerTenantID != actorTenantID && consent.CounterpartyTenantID != actorTenantID {
		return ErrApprovalForbidden
	}

	res := s.db.WithContext(ctx).Model(&models.FederationConsent{}).
		Where("id = ? AND status = ?", consentID, models.FederationStatusActive).
		Updates(map[string]any{
			"status":     models.FederationStatusRevoked,
			"revoked_at": s.now(),
		})
	if res.Error != nil {
		return fmt.Errorf("federation service: revoke consent: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrFederationTransition
	}
	return nil
}

// IsActive reports whether the owner tenant actively shares into the
// counterparty tenant. Direction matters.
func (s *FederationService) IsActive(ctx context.Context, ownerTenantID, counterpartyTenantID string) (bool, error) {
	ctx = ensureContext(ctx)

	var count int64
	err := s.db.WithContext(ctx).Model(&models.FederationConsent{}).
		Where("owner_tenant_id = ? AND counterparty_tenant_id = ? AND status = ?",
			ownerTenantID, counterpartyTenantID, models.FederationStatusActive).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("federation service: check active: %w", err)
	}
	return count > 0, nil
}

// Grants returns the data categories the owner tenant shares into the
// counterparty. A missing or inactive agreement yields zero grants.
func (s *FederationService) Grants(ctx context.Context, ownerTenantID, counterpartyTenantID string) (models.FederationGrants, error) {
	ctx = ensureContext(ctx)

	var consent models.FederationConsent
	err := s.db.WithContext(ctx).
		Where("owner_tenant_id = ? AND counterparty_tenant_id = ? AND status = ?",
			ownerTenantID, counterpartyTenantID, models.FederationStatusActive).
		First(&consent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.FederationGrants{}, nil
	}
	if err != nil {
		return models.FederationGrants{}, fmt.Errorf("federation service: load grants: %w", err)
	}
	return consent.Grants(), nil
}

// ListForTenant returns all agreements where the tenant is a party.
func (s *FederationService) ListForTenant(ctx context.Context, tenantID string) ([]models.FederationConsent, error) {
	ctx = ensureContext(ctx)

	var consents []models.FederationConsent
	if err := s.db.WithContext(ctx).
		Where("owner_tenant_id = ? OR counterparty_tenant_id = ?", tenantID, tenantID).
		Order("created_at DESC").
		Find(&consents).Error; err != nil {
		return nil, fmt.Errorf("federation service: list consents: %w", err)
	}
	return consents, nil
}

func (s *FederationService) getByID(ctx context.Context, consentID string) (*models.FederationConsent, error) {
	var consent models.FederationConsent
	err := s.db.WithContext(ctx).Where("id = ?", consentID).First(&consent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFederationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("federation service: load consent: %w", err)
	}
	return &consent, nil
}
