package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"github.com/introweave/introweave/internal/models"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// TenantService manages the networks that own members and federation
// agreements.
type TenantService struct {
	db *gorm.DB
}

// NewTenantService constructs a TenantService.
func NewTenantService(db *gorm.DB) (*TenantService, error) {
	if db == nil {
		return nil, errors.New("tenant service: db is required")
	}
	return &TenantService{db: db}, nil
}

// Create registers a new tenant network.
func (s *TenantService) Create(ctx context.Context, name, slug string) (*models.Tenant, error) {
	ctx = ensureContext(ctx)

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("tenant service: name is required")
	}
	if slug == "" {
		slug = name
	}
	slug = Slugify(slug)

	tenant := models.Tenant{
		Name:   name,
		Slug:   slug,
		Status: models.TenantStatusActive,
	}
	if err := s.db.WithContext(ctx).Create(&tenant).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, fmt.Errorf("tenant service: slug %q: %w", slug, ErrSlugTaken)
		}
		return nil, fmt.Errorf("tenant service: create tenant: %w", err)
	}
	return &tenant, nil
}

// GetByID loads a tenant.
func (s *TenantService) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	ctx = ensureContext(ctx)

	var tenant models.Tenant
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tenant service: load tenant: %w", err)
	}
	return &tenant, nil
}

// List returns all tenants ordered by name.
func (s *TenantService) List(ctx context.Context) ([]models.Tenant, error) {
	ctx = ensureContext(ctx)

	var tenants []models.Tenant
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&tenants).Error; err != nil {
		return nil, fmt.Errorf("tenant service: list tenants: %w", err)
	}
	return tenants, nil
}

// Slugify normalises a display name into a URL-safe tenant slug.
func Slugify(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = slugPattern.ReplaceAllString(value, "-")
	return strings.Trim(value, "-")
}
