package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/introweave/introweave/internal/models"
)

// CreateMemberInput defines attributes required to onboard a member.
type CreateMemberInput struct {
	TenantID   string
	Name       string
	Email      string
	Headline   string
	Role       string
	Tier       string
	Visibility string
	Sector     string
	Tags       []string
}

// UpdateMemberInput carries optional profile mutations.
type UpdateMemberInput struct {
	Name       *string
	Headline   *string
	Tier       *string
	Visibility *string
	Sector     *string
	Tags       []string
	Scarcity   *float64
	Status     *string
}

// MemberService manages member profiles and the engine inputs attached to
// them (tier, visibility, scarcity, tags).
type MemberService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewMemberService constructs a MemberService.
func NewMemberService(db *gorm.DB) (*MemberService, error) {
	if db == nil {
		return nil, errors.New("member service: db is required")
	}
	return &MemberService{db: db, now: time.Now}, nil
}

// Create onboards a member into a tenant.
func (s *MemberService) Create(ctx context.Context, input CreateMemberInput) (*models.Member, error) {
	ctx = ensureContext(ctx)

	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.TenantID == "" || input.Name == "" || input.Email == "" {
		return nil, errors.New("member service: tenant, name and email are required")
	}

	var tenantCount int64
	if err := s.db.WithContext(ctx).Model(&models.Tenant{}).
		Where("id = ?", input.TenantID).Count(&tenantCount).Error; err != nil {
		return nil, fmt.Errorf("member service: verify tenant: %w", err)
	}
	if tenantCount == 0 {
		return nil, ErrTenantNotFound
	}

	member := models.Member{
		TenantID:   input.TenantID,
		Name:       input.Name,
		Email:      input.Email,
		Headline:   strings.TrimSpace(input.Headline),
		Role:       defaultString(input.Role, models.MemberRoleMember),
		Tier:       defaultString(input.Tier, models.TierMember),
		Visibility: defaultString(input.Visibility, models.VisibilityMembers),
		Sector:     strings.TrimSpace(input.Sector),
		Status:     models.MemberStatusActive,
		WeekStart:  s.now(),
	}
	if len(input.Tags) > 0 {
		encoded, err := json.Marshal(normaliseIDs(input.Tags))
		if err != nil {
			return nil, fmt.Errorf("member service: encode tags: %w", err)
		}
		member.Tags = datatypes.JSON(encoded)
	}

	if err := s.db.WithContext(ctx).Create(&member).Error; err != nil {
		return nil, fmt.Errorf("member service: create member: %w", err)
	}
	return &member, nil
}

// GetByID loads a single member.
func (s *MemberService) GetByID(ctx context.Context, id string) (*models.Member, error) {
	ctx = ensureContext(ctx)

	var member models.Member
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("member service: load member: %w", err)
	}
	return &member, nil
}

// ListByTenant returns a tenant's members ordered by name.
func (s *MemberService) ListByTenant(ctx context.Context, tenantID string) ([]models.Member, error) {
	ctx = ensureContext(ctx)

	var members []models.Member
	if err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("name ASC").
		Find(&members).Error; err != nil {
		return nil, fmt.Errorf("member service: list members: %w", err)
	}
	return members, nil
}

// Update applies profile mutations.
func (s *MemberService) Update(ctx context.Context, id string, input UpdateMemberInput) (*models.Member, error) {
	ctx = ensureContext(ctx)

	member, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		updates["name"] = strings.TrimSpace(*input.Name)
	}
	if input.Headline != nil {
		updates["headline"] = strings.TrimSpace(*input.Headline)
	}
	if input.Tier != nil {
		updates["tier"] = *input.Tier
	}
	if input.Visibility != nil {
		updates["visibility"] = *input.Visibility
	}
	if input.Sector != nil {
		updates["sector"] = strings.TrimSpace(*input.Sector)
	}
	if input.Scarcity != nil {
		updates["scarcity"] = clampScarcity(*input.Scarcity)
	}
	if input.Status != nil {
		updates["status"] = *input.Status
	}
	if input.Tags != nil {
		encoded, err := json.Marshal(normaliseIDs(input.Tags))
		if err != nil {
			return nil, fmt.Errorf("member service: encode tags: %w", err)
		}
		updates["tags"] = datatypes.JSON(encoded)
	}

	if len(updates) == 0 {
		return member, nil
	}

	if err := s.db.WithContext(ctx).Model(&models.Member{}).
		Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("member service: update member: %w", err)
	}
	return s.GetByID(ctx, id)
}

// RefreshScarcity recomputes the member's scarcity from recent introduction
// pressure: the more requests a member attracts relative to their weekly
// cap, the scarcer they become.
func (s *MemberService) RefreshScarcity(ctx context.Context, id string) (float64, error) {
	ctx = ensureContext(ctx)

	member, err := s.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}

	since := s.now().Add(-28 * 24 * time.Hour)
	var recent int64
	if err := s.db.WithContext(ctx).Model(&models.Introduction{}).
		Where("target_member_id = ? AND created_at > ?", id, since).
		Count(&recent).Error; err != nil {
		return 0, fmt.Errorf("member service: count recent intros: %w", err)
	}

	// Four weeks of demand against four weeks of budget, capped at 1.
	budget := float64(member.WeeklyCap() * 4)
	scarcity := clampScarcity(float64(recent) / budget)

	if err := s.db.WithContext(ctx).Model(&models.Member{}).
		Where("id = ?", id).Update("scarcity", scarcity).Error; err != nil {
		return 0, fmt.Errorf("member service: update scarcity: %w", err)
	}
	return scarcity, nil
}

func clampScarcity(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func defaultString(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}
