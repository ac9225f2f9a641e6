package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/introweave/introweave/internal/models"
	"github.com/introweave/introweave/pkg/crypto"
)

// ErrInvalidLogin is returned for any authentication failure so callers
// cannot distinguish unknown accounts from wrong passwords.
var ErrInvalidLogin = errors.New("users: invalid email or password")

// CreateUserInput defines attributes required to create a console account.
type CreateUserInput struct {
	TenantID string
	MemberID string
	Email    string
	Password string
	Role     string
}

// UserService manages console accounts.
type UserService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db, now: time.Now}, nil
}

// Create registers a console account with a hashed password.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.TenantID == "" || input.Email == "" || input.Password == "" {
		return nil, errors.New("user service: tenant, email and password are required")
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := models.User{
		TenantID: input.TenantID,
		Email:    input.Email,
		Password: hashed,
		Role:     defaultString(input.Role, models.MemberRoleMember),
		IsActive: true,
	}
	if memberID := strings.TrimSpace(input.MemberID); memberID != "" {
		user.MemberID = &memberID
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, fmt.Errorf("user service: email %q: %w", input.Email, ErrEmailTaken)
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}
	return &user, nil
}

// Authenticate verifies credentials and records the login time.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	ctx = ensureContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidLogin
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ? AND is_active = ?", email, true).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidLogin
	}
	if err != nil {
		return nil, fmt.Errorf("user service: load user: %w", err)
	}

	if !crypto.VerifyPassword(user.Password, password) {
		return nil, ErrInvalidLogin
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).Update("last_login_at", now).Error; err != nil {
		return nil, fmt.Errorf("user service: record login: %w", err)
	}
	user.LastLoginAt = &now
	return &user, nil
}

// GetByID loads a console account.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	return &user, nil
}
