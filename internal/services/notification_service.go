package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/introweave/introweave/internal/models"
	"github.com/introweave/introweave/internal/realtime"
	"github.com/introweave/introweave/pkg/logger"
	"github.com/introweave/introweave/pkg/mail"
)

// NotifyInput describes a workflow notification. Recipients can be named
// directly through UserIDs or resolved from a tenant's administrators.
type NotifyInput struct {
	TenantAdminsOf string // tenant id whose admins should be notified
	UserIDs        []string
	Emails         []string

	Type     string // template key
	Title    string
	Message  string
	Metadata map[string]any
}

// Notifier delivers workflow notifications. Delivery is best effort: the
// calling workflow state is authoritative and is never rolled back on a
// dispatch failure.
type Notifier interface {
	Notify(ctx context.Context, input NotifyInput) error
}

// NotificationService implements Notifier by persisting in-app notification
// rows, pushing realtime events and optionally mailing recipients.
type NotificationService struct {
	db     *gorm.DB
	mailer mail.Mailer
	hub    *realtime.Hub
	log    *zap.Logger
}

// NewNotificationService constructs a NotificationService. The mailer and
// hub are optional collaborators.
func NewNotificationService(db *gorm.DB, mailer mail.Mailer, hub *realtime.Hub) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &NotificationService{
		db:     db,
		mailer: mailer,
		hub:    hub,
		log:    logger.WithModule("notifications"),
	}, nil
}

// Notify fans the notification out to all resolved recipients.
func (s *NotificationService) Notify(ctx context.Context, input NotifyInput) error {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(input.Type) == "" {
		return errors.New("notification service: type is required")
	}

	userIDs, emails, err := s.resolveRecipients(ctx, input)
	if err != nil {
		return err
	}

	for _, userID := range userIDs {
		row := models.Notification{
			UserID:   userID,
			Type:     input.Type,
			Title:    input.Title,
			Message:  input.Message,
			Metadata: datatypes.JSONMap(input.Metadata),
		}
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			return fmt.Errorf("notification service: create notification: %w", err)
		}
	}

	if s.hub != nil && len(userIDs) > 0 {
		s.hub.BroadcastToUsers(userIDs, realtime.Message{
			Event: input.Type,
			Data: map[string]any{
				"title":   input.Title,
				"message": input.Message,
			},
			Meta: input.Metadata,
		})
	}

	if s.mailer != nil && len(emails) > 0 {
		msg := mail.Message{
			To:      emails,
			Subject: input.Title,
			Body:    input.Message,
		}
		if mailErr := s.mailer.Send(ctx, msg); mailErr != nil && !errors.Is(mailErr, mail.ErrSMTPDisabled) {
			// Best effort: log and keep the workflow state authoritative.
			s.log.Warn("email dispatch failed",
				zap.String("type", input.Type),
				zap.Error(mailErr),
			)
		}
	}

	return nil
}

// ListForUser returns notifications for the supplied user ordered by recency.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, limit, offset int) ([]models.Notification, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("notification service: user id is required")
	}

	if limit <= 0 || limit > 100 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}

	var rows []models.Notification
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list notifications: %w", err)
	}
	return rows, nil
}

// MarkRead marks a single notification as read for the owning user.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	ctx = ensureContext(ctx)

	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND is_read = ?", notificationID, userID, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("notification service: mark read: %w", res.Error)
	}
	return nil
}

func (s *NotificationService) resolveRecipients(ctx context.Context, input NotifyInput) ([]string, []string, error) {
	userIDs := append([]string(nil), input.UserIDs...)
	emails := append([]string(nil), input.Emails...)

	if tenantID := strings.TrimSpace(input.TenantAdminsOf); tenantID != "" {
		var admins []models.User
		if err := s.db.WithContext(ctx).
			Where("tenant_id = ? AND role = ? AND is_active = ?", tenantID, models.MemberRoleAdmin, true).
			Find(&admins).Error; err != nil {
			return nil, nil, fmt.Errorf("notification service: resolve tenant admins: %w", err)
		}
		for _, admin := range admins {
			userIDs = append(userIDs, admin.ID)
			emails = append(emails, admin.Email)
		}
	}

	return normaliseIDs(userIDs), normaliseIDs(emails), nil
}
