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

type settingRepository interface {
	FindByKey(ctx context.Context, key string) (*models.Setting, error)
	ListAll(ctx context.Context) ([]models.Setting, error)
	ListPublic(ctx context.Context) ([]models.Setting, error)
	ListByGroup(ctx context.Context, group string) ([]models.Setting, error)
	Upsert(ctx context.Context, setting *models.Setting) error
	UpdateValue(ctx context.Context, key string, value *string) error
	Delete(ctx context.Context, key string) error
}

// SettingService handles runtime configuration use-cases.
type SettingService struct {
	repo      settingRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSettingService constructs the setting service.
func NewSettingService(repo settingRepository, validate *validator.Validate, logger *zap.Logger) *SettingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingService{repo: repo, validator: validate, logger: logger}
}

// List returns all settings grouped and ordered for admin display.
func (s *SettingService) List(ctx context.Context) ([]models.Setting, error) {
	settings, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list settings")
	}
	return settings, nil
}

// Public returns settings exposed without authentication.
func (s *SettingService) Public(ctx context.Context) ([]models.Setting, error) {
	settings, err := s.repo.ListPublic(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list public settings")
	}
	return settings, nil
}

// Group returns the settings of one group.
func (s *SettingService) Group(ctx context.Context, group string) ([]models.Setting, error) {
	settings, err := s.repo.ListByGroup(ctx, group)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list settings group")
	}
	return settings, nil
}

// Get returns one setting by key.
func (s *SettingService) Get(ctx context.Context, key string) (*models.Setting, error) {
	setting, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "setting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load setting")
	}
	return setting, nil
}

// Set creates or updates a setting by key. System settings keep their
// system flag; it cannot be toggled through this path.
func (s *SettingService) Set(ctx context.Context, key string, req models.UpsertSettingRequest) (*models.Setting, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid setting payload")
	}
	if key == "" {
		return nil, appErrors.Validationf("setting key is required")
	}

	setting := &models.Setting{Key: key, ValueType: "string"}
	existing, err := s.repo.FindByKey(ctx, key)
	if err == nil {
		setting = existing
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load setting")
	}

	setting.Value = req.Value
	if req.ValueType != "" {
		setting.ValueType = req.ValueType
	}
	if req.Description != nil {
		setting.Description = req.Description
	}
	if req.Group != nil {
		setting.Group = req.Group
	}
	if req.IsPublic != nil {
		setting.IsPublic = *req.IsPublic
	}
	if req.SortOrder != nil {
		setting.SortOrder = *req.SortOrder
	}

	if err := s.repo.Upsert(ctx, setting); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save setting")
	}
	return setting, nil
}

// BatchSet updates the values of several existing settings at once. Keys
// that do not exist are reported back rather than created silently.
func (s *SettingService) BatchSet(ctx context.Context, items []models.BatchSettingItem) ([]string, error) {
	if len(items) == 0 {
		return nil, appErrors.Validationf("no settings supplied")
	}
	var missing []string
	for _, item := range items {
		if err := s.validator.Struct(item); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid setting item")
		}
		if err := s.repo.UpdateValue(ctx, item.Key, item.Value); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				missing = append(missing, item.Key)
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update setting")
		}
	}
	return missing, nil
}

// Delete removes a non-system setting.
func (s *SettingService) Delete(ctx context.Context, key string) error {
	setting, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "setting not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load setting")
	}
	if setting.IsSystem {
		return appErrors.Clone(appErrors.ErrForbidden, "system settings cannot be deleted")
	}
	if err := s.repo.Delete(ctx, key); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete setting")
	}
	return nil
}
