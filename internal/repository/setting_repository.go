package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-admin-api/internal/models"
)

// SettingRepository provides database access for runtime settings.
type SettingRepository struct {
	db *sqlx.DB
}

// NewSettingRepository creates a new instance of SettingRepository.
func NewSettingRepository(db *sqlx.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

const settingColumns = `id, key, value, value_type, description, group_name, is_public, is_system, sort_order, created_at, updated_at`

// FindByKey returns a setting by its unique key.
func (r *SettingRepository) FindByKey(ctx context.Context, key string) (*models.Setting, error) {
	query := fmt.Sprintf(`SELECT %s FROM settings WHERE key = $1 LIMIT 1`, settingColumns)
	var setting models.Setting
	if err := r.db.GetContext(ctx, &setting, query, key); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find setting by key: %w", err)
	}
	return &setting, nil
}

// ListAll returns every setting ordered by group and sort order.
func (r *SettingRepository) ListAll(ctx context.Context) ([]models.Setting, error) {
	query := fmt.Sprintf(`SELECT %s FROM settings ORDER BY group_name ASC NULLS LAST, sort_order ASC, key ASC`, settingColumns)
	var settings []models.Setting
	if err := r.db.SelectContext(ctx, &settings, query); err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return settings, nil
}

// ListPublic returns settings flagged visible without authentication.
func (r *SettingRepository) ListPublic(ctx context.Context) ([]models.Setting, error) {
	query := fmt.Sprintf(`SELECT %s FROM settings WHERE is_public = TRUE ORDER BY sort_order ASC, key ASC`, settingColumns)
	var settings []models.Setting
	if err := r.db.SelectContext(ctx, &settings, query); err != nil {
		return nil, fmt.Errorf("list public settings: %w", err)
	}
	return settings, nil
}

// ListByGroup returns the settings of one group.
func (r *SettingRepository) ListByGroup(ctx context.Context, group string) ([]models.Setting, error) {
	query := fmt.Sprintf(`SELECT %s FROM settings WHERE group_name = $1 ORDER BY sort_order ASC, key ASC`, settingColumns)
	var settings []models.Setting
	if err := r.db.SelectContext(ctx, &settings, query, group); err != nil {
		return nil, fmt.Errorf("list settings by group: %w", err)
	}
	return settings, nil
}

// Upsert creates or updates a setting by key.
func (r *SettingRepository) Upsert(ctx context.Context, setting *models.Setting) error {
	if setting.ID == "" {
		setting.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if setting.CreatedAt.IsZero() {
		setting.CreatedAt = now
	}
	setting.UpdatedAt = now

	const query = `
		INSERT INTO settings (id, key, value, value_type, description, group_name, is_public, is_system, sort_order, created_at, updated_at)
		VALUES (:id, :key, :value, :value_type, :description, :group_name, :is_public, :is_system, :sort_order, :created_at, :updated_at)
		ON CONFLICT (key)
		DO UPDATE SET value = EXCLUDED.value, value_type = EXCLUDED.value_type, description = EXCLUDED.description,
		              group_name = EXCLUDED.group_name, is_public = EXCLUDED.is_public, sort_order = EXCLUDED.sort_order,
		              updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, setting); err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}

// UpdateValue updates only the value of an existing setting.
func (r *SettingRepository) UpdateValue(ctx context.Context, key string, value *string) error {
	const query = `UPDATE settings SET value = $2, updated_at = $3 WHERE key = $1`
	result, err := r.db.ExecContext(ctx, query, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update setting value: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a non-system setting.
func (r *SettingRepository) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM settings WHERE key = $1 AND is_system = FALSE`
	if _, err := r.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("delete setting: %w", err)
	}
	return nil
}
