package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var contactColumns = []string{"id", "tenant_id", "name", "phone", "created_at", "updated_at"}

func scanContact(row rowScanner) (*Contact, error) {
	var (
		c                    Contact
		createdAt, updatedAt int64
	)
	if err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Phone, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.CreatedAt = time.UnixMilli(createdAt)
	c.UpdatedAt = time.UnixMilli(updatedAt)
	return &c, nil
}

// UpsertContact inserts or updates a contact. A missing ID is generated.
func (db *DB) UpsertContact(ctx context.Context, c *Contact) (*Contact, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	ts := now().UnixMilli()
	query, args, err := db.sb.Insert("contacts").
		Columns(contactColumns...).
		Values(c.ID, c.TenantID, c.Name, c.Phone, ts, ts).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE contacts.name END,
			phone = excluded.phone,
			updated_at = excluded.updated_at
		WHERE contacts.tenant_id = excluded.tenant_id`).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build upsert: %w", err)
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("upsert contact: %w", err)
	}
	saved, err := db.GetContact(ctx, c.TenantID, c.ID)
	if err != nil {
		return nil, err
	}
	// The id exists under another tenant; the guarded update touched nothing.
	if saved == nil {
		return nil, fmt.Errorf("contact %s: %w", c.ID, ErrNotFound)
	}
	return saved, nil
}

// GetContact returns a tenant's contact by id, or nil if it does not exist.
func (db *DB) GetContact(ctx context.Context, tenantID, id string) (*Contact, error) {
	query, args, err := db.sb.Select(contactColumns...).
		From("contacts").
		Where(sq.Eq{"tenant_id": tenantID, "id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	c, err := scanContact(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return c, nil
}

// GetContactPhone returns the stored phone of a contact. A missing contact
// and a contact without a phone both yield "".
func (db *DB) GetContactPhone(ctx context.Context, tenantID, contactID string) (string, error) {
	c, err := db.GetContact(ctx, tenantID, contactID)
	if err != nil || c == nil {
		return "", err
	}
	return c.Phone, nil
}

// FindContactByPhone returns the oldest tenant contact whose stored phone is
// one of phones, or nil.
func (db *DB) FindContactByPhone(ctx context.Context, tenantID string, phones ...string) (*Contact, error) {
	if len(phones) == 0 {
		return nil, nil
	}
	query, args, err := db.sb.Select(contactColumns...).
		From("contacts").
		Where(sq.Eq{"tenant_id": tenantID, "phone": phones}).
		OrderBy("created_at ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	c, err := scanContact(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find contact by phone: %w", err)
	}
	return c, nil
}
