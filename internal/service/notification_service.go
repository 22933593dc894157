package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-admin-api/internal/models"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
)

type notificationRepository interface {
	FindByID(ctx context.Context, id string) (*models.Notification, error)
	ListForRecipient(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
	Create(ctx context.Context, n *models.Notification) error
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, recipientID string) (int, error)
	Delete(ctx context.Context, id string) error
}

// NotificationService handles notification delivery and inbox use-cases.
type NotificationService struct {
	repo      notificationRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNotificationService constructs the notification service.
func NewNotificationService(repo notificationRepository, validate *validator.Validate, logger *zap.Logger) *NotificationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, validator: validate, logger: logger}
}

// List returns the caller's notifications, broadcasts included.
func (s *NotificationService) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, int, error) {
	notifications, total, err := s.repo.ListForRecipient(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, total, nil
}

// UnreadCount returns how many unread notifications the caller has.
func (s *NotificationService) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	count, err := s.repo.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return count, nil
}

// Send creates a notification. A nil recipient broadcasts to everyone.
func (s *NotificationService) Send(ctx context.Context, senderID string, req models.CreateNotificationRequest) (*models.Notification, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notification payload")
	}
	nType := req.Type
	if nType == "" {
		nType = "system"
	}
	level := req.Level
	if level == "" {
		level = "info"
	}
	n := &models.Notification{
		Title:       req.Title,
		Content:     req.Content,
		Type:        nType,
		Level:       level,
		SenderID:    &senderID,
		RecipientID: req.RecipientID,
		ExpireAt:    req.ExpireAt,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notification")
	}
	if n.RecipientID == nil {
		s.logger.Info("broadcast notification sent", zap.String("notification_id", n.ID), zap.String("sender_id", senderID))
	}
	return n, nil
}

// MarkRead marks one notification read. Only the recipient may do so;
// broadcasts can be marked by anyone who can see them.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification")
	}
	if n.RecipientID != nil && *n.RecipientID != userID {
		return appErrors.ErrForbidden
	}
	if err := s.repo.MarkRead(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

// MarkAllRead marks every visible notification read and reports how many.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	affected, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	return affected, nil
}

// Delete soft-deletes a notification. Admins may delete any; other users
// only their own.
func (s *NotificationService) Delete(ctx context.Context, userID string, role models.UserRole, id string) error {
	n, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification")
	}
	if role != models.RoleAdmin {
		if n.RecipientID == nil || *n.RecipientID != userID {
			return appErrors.ErrForbidden
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete notification")
	}
	return nil
}
