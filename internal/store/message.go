package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/matheus3301/flowchat/internal/status"
)

var messageColumns = []string{
	"id", "tenant_id", "contact_id", "sender_type", "sender_id", "content",
	"message_type", "media_url", "status", "external_id", "created_at", "updated_at", "read_at",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*Message, error) {
	var (
		m                    Message
		externalID           sql.NullString
		createdAt, updatedAt int64
		readAt               sql.NullInt64
	)
	if err := row.Scan(
		&m.ID, &m.TenantID, &m.ContactID, &m.SenderType, &m.SenderID, &m.Content,
		&m.MessageType, &m.MediaURL, &m.Status, &externalID, &createdAt, &updatedAt, &readAt,
	); err != nil {
		return nil, err
	}
	m.ExternalID = fromNullString(externalID)
	m.CreatedAt = time.UnixMilli(createdAt)
	m.UpdatedAt = time.UnixMilli(updatedAt)
	m.ReadAt = fromMillis(readAt)
	return &m, nil
}

// CreateMessage persists a new message and returns it with its id and timestamps.
// Status defaults to sent and message type to text.
func (db *DB) CreateMessage(ctx context.Context, in NewMessage) (*Message, error) {
	if in.MessageType == "" {
		in.MessageType = MessageText
	}
	if in.Status == "" {
		in.Status = status.Sent
	}
	if !in.Status.Valid() {
		return nil, fmt.Errorf("create message: unknown status %q", in.Status)
	}

	ts := now()
	m := &Message{
		ID:          uuid.NewString(),
		TenantID:    in.TenantID,
		ContactID:   in.ContactID,
		SenderType:  in.SenderType,
		SenderID:    in.SenderID,
		Content:     in.Content,
		MessageType: in.MessageType,
		MediaURL:    in.MediaURL,
		Status:      in.Status,
		ExternalID:  in.ExternalID,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if m.Status == status.Read {
		m.ReadAt = &ts
	}

	var readAt any
	if m.ReadAt != nil {
		readAt = m.ReadAt.UnixMilli()
	}
	query, args, err := db.sb.Insert("messages").
		Columns(messageColumns...).
		Values(
			m.ID, m.TenantID, m.ContactID, m.SenderType, m.SenderID, m.Content,
			m.MessageType, m.MediaURL, m.Status, m.ExternalID, ts.UnixMilli(), ts.UnixMilli(), readAt,
		).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

// GetMessage returns a tenant's message by id, or ErrNotFound. A message of
// another tenant is reported as not found.
func (db *DB) GetMessage(ctx context.Context, tenantID, id string) (*Message, error) {
	query, args, err := db.sb.Select(messageColumns...).
		From("messages").
		Where(sq.Eq{"tenant_id": tenantID, "id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	m, err := scanMessage(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

// FindMessageByExternalID returns the tenant's message carrying the given
// bridge id, or nil if there is none.
func (db *DB) FindMessageByExternalID(ctx context.Context, tenantID, externalID string) (*Message, error) {
	query, args, err := db.sb.Select(messageColumns...).
		From("messages").
		Where(sq.Eq{"tenant_id": tenantID, "external_id": externalID}).
		OrderBy("created_at ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}
	m, err := scanMessage(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find message by external id: %w", err)
	}
	return m, nil
}

// Cursor marks a position in a conversation listing. Messages sharing a
// millisecond are ordered by id, so a cursor needs both.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// IsZero reports whether c points at the start of the listing.
func (c Cursor) IsZero() bool {
	return c.CreatedAt.IsZero()
}

// CursorOf returns the cursor that lists the messages after m.
func CursorOf(m *Message) Cursor {
	return Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
}

// ListMessages returns a conversation newest first, using keyset pagination
// on (created_at, id). A zero cursor lists from the most recent message; a
// cursor without an id excludes its whole millisecond.
func (db *DB) ListMessages(ctx context.Context, tenantID, contactID string, before Cursor, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	q := db.sb.Select(messageColumns...).
		From("messages").
		Where(sq.Eq{"tenant_id": tenantID, "contact_id": contactID})
	switch {
	case before.IsZero():
	case before.ID == "":
		q = q.Where(sq.Lt{"created_at": before.CreatedAt.UnixMilli()})
	default:
		ms := before.CreatedAt.UnixMilli()
		q = q.Where(sq.Or{
			sq.Lt{"created_at": ms},
			sq.And{sq.Eq{"created_at": ms}, sq.Lt{"id": before.ID}},
		})
	}
	query, args, err := q.OrderBy("created_at DESC", "id DESC").Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// UpdateMessageStatus moves a tenant's message to a new status, bumping
// updated_at and setting read_at on the first transition into read.
func (db *DB) UpdateMessageStatus(ctx context.Context, tenantID, id string, to status.Status) (*Message, error) {
	// The status guard in the WHERE clause makes the update a compare-and-set;
	// a concurrent writer forces a re-read.
	for attempt := 0; attempt < 3; attempt++ {
		cur, err := db.GetMessage(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		if err := status.CheckTransition(cur.Status, to); err != nil {
			return nil, fmt.Errorf("message %s: %w", id, err)
		}

		ts := now()
		upd := db.sb.Update("messages").
			Set("status", to).
			Set("updated_at", ts.UnixMilli()).
			Where(sq.Eq{"tenant_id": tenantID, "id": id, "status": cur.Status})
		if to == status.Read && cur.ReadAt == nil {
			upd = upd.Set("read_at", ts.UnixMilli())
		}
		query, args, err := upd.ToSql()
		if err != nil {
			return nil, fmt.Errorf("build update: %w", err)
		}
		res, err := db.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("update message status: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		return db.GetMessage(ctx, tenantID, id)
	}
	return nil, fmt.Errorf("update message %s: concurrent status change", id)
}

// MarkFailed records that dispatching a message to the bridge failed.
func (db *DB) MarkFailed(ctx context.Context, tenantID, id string) (*Message, error) {
	return db.UpdateMessageStatus(ctx, tenantID, id, status.Failed)
}

// AttachExternalID stores the bridge's correlation id on a message.
// Re-attaching the same id leaves the row untouched.
func (db *DB) AttachExternalID(ctx context.Context, tenantID, id, externalID string) (*Message, error) {
	cur, err := db.GetMessage(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if cur.ExternalID != nil && *cur.ExternalID == externalID {
		return cur, nil
	}

	query, args, err := db.sb.Update("messages").
		Set("external_id", externalID).
		Set("updated_at", now().UnixMilli()).
		Where(sq.Eq{"tenant_id": tenantID, "id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update: %w", err)
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("attach external id: %w", err)
	}
	return db.GetMessage(ctx, tenantID, id)
}

func unreadWhere(tenantID string) sq.Sqlizer {
	return sq.And{
		sq.Eq{"tenant_id": tenantID, "sender_type": SenderContact},
		sq.NotEq{"status": status.Read},
	}
}

// CountUnread counts contact-authored messages from one contact that are not read.
func (db *DB) CountUnread(ctx context.Context, tenantID, contactID string) (int64, error) {
	query, args, err := db.sb.Select("COUNT(*)").
		From("messages").
		Where(unreadWhere(tenantID)).
		Where(sq.Eq{"contact_id": contactID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var count int64
	if err := db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

// UnreadByContact returns unread counts for every contact of a tenant that has any.
func (db *DB) UnreadByContact(ctx context.Context, tenantID string) (map[string]int64, error) {
	query, args, err := db.sb.Select("contact_id", "COUNT(*)").
		From("messages").
		Where(unreadWhere(tenantID)).
		GroupBy("contact_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count: %w", err)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("unread by contact: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			contactID string
			n         int64
		)
		if err := rows.Scan(&contactID, &n); err != nil {
			return nil, err
		}
		counts[contactID] = n
	}
	return counts, rows.Err()
}

// MarkContactMessagesRead moves every unread contact-authored message of a
// contact to read in a single statement. Returns the number of rows changed.
func (db *DB) MarkContactMessagesRead(ctx context.Context, tenantID, contactID string) (int64, error) {
	ts := now().UnixMilli()
	query, args, err := db.sb.Update("messages").
		Set("status", status.Read).
		Set("read_at", ts).
		Set("updated_at", ts).
		Where(unreadWhere(tenantID)).
		Where(sq.Eq{"contact_id": contactID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update: %w", err)
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("mark contact messages read: %w", err)
	}
	return res.RowsAffected()
}

// MessageCount returns the total number of messages.
func (db *DB) MessageCount(ctx context.Context) (int64, error) {
	var count int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}
