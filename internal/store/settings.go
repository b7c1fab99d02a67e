package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var settingsColumns = []string{
	"tenant_id", "user_id", "api_endpoint", "api_key", "api_secret",
	"is_active", "auto_create_contacts", "enable_notifications", "created_at", "updated_at",
}

// GetChatSettings returns the settings row for (tenantID, userID), or nil if
// none exists. An empty userID selects the tenant default.
func (db *DB) GetChatSettings(ctx context.Context, tenantID, userID string) (*ChatSettings, error) {
	query, args, err := db.sb.Select(settingsColumns...).
		From("chat_settings").
		Where(sq.Eq{"tenant_id": tenantID, "user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var (
		s                    ChatSettings
		createdAt, updatedAt int64
	)
	err = db.QueryRowContext(ctx, query, args...).Scan(
		&s.TenantID, &s.UserID, &s.APIEndpoint, &s.APIKey, &s.APISecret,
		&s.IsActive, &s.AutoCreateContacts, &s.EnableNotifications, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chat settings: %w", err)
	}
	s.CreatedAt = time.UnixMilli(createdAt)
	s.UpdatedAt = time.UnixMilli(updatedAt)
	return &s, nil
}

// UpsertChatSettings inserts the row for (TenantID, UserID) or updates it in place.
func (db *DB) UpsertChatSettings(ctx context.Context, s *ChatSettings) (*ChatSettings, error) {
	ts := now().UnixMilli()
	query, args, err := db.sb.Insert("chat_settings").
		Columns(settingsColumns...).
		Values(
			s.TenantID, s.UserID, s.APIEndpoint, s.APIKey, s.APISecret,
			s.IsActive, s.AutoCreateContacts, s.EnableNotifications, ts, ts,
		).
		Suffix(`ON CONFLICT (tenant_id, user_id) DO UPDATE SET
			api_endpoint = excluded.api_endpoint,
			api_key = excluded.api_key,
			api_secret = excluded.api_secret,
			is_active = excluded.is_active,
			auto_create_contacts = excluded.auto_create_contacts,
			enable_notifications = excluded.enable_notifications,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build upsert: %w", err)
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("upsert chat settings: %w", err)
	}
	return db.GetChatSettings(ctx, s.TenantID, s.UserID)
}
