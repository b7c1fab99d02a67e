// Package unread counts and clears contact messages nobody has read yet.
package unread

import (
	"context"

	"github.com/matheus3301/flowchat/internal/bus"
	"github.com/matheus3301/flowchat/internal/status"
	"github.com/matheus3301/flowchat/internal/store"
	"go.uber.org/zap"
)

// Store is the persistence the tracker needs.
type Store interface {
	CountUnread(ctx context.Context, tenantID, contactID string) (int64, error)
	UnreadByContact(ctx context.Context, tenantID string) (map[string]int64, error)
	UpdateMessageStatus(ctx context.Context, tenantID, id string, to status.Status) (*store.Message, error)
	MarkContactMessagesRead(ctx context.Context, tenantID, contactID string) (int64, error)
}

// Tracker reads unread counts and reconciles read state.
type Tracker struct {
	store  Store
	bus    *bus.Bus
	logger *zap.Logger
}

// New creates a tracker. b may be nil.
func New(s Store, b *bus.Bus, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{store: s, bus: b, logger: logger}
}

// UnreadCount returns the number of unread contact-authored messages of one contact.
func (t *Tracker) UnreadCount(ctx context.Context, tenantID, contactID string) (int64, error) {
	return t.store.CountUnread(ctx, tenantID, contactID)
}

// UnreadByContact returns unread counts keyed by contact id. Contacts with
// nothing unread are absent.
func (t *Tracker) UnreadByContact(ctx context.Context, tenantID string) (map[string]int64, error) {
	return t.store.UnreadByContact(ctx, tenantID)
}

// MarkRead moves one of the tenant's messages to read. Failures, including a
// message owned by another tenant, are logged, never returned.
func (t *Tracker) MarkRead(ctx context.Context, tenantID, messageID string) {
	msg, err := t.store.UpdateMessageStatus(ctx, tenantID, messageID, status.Read)
	if err != nil {
		t.logger.Warn("failed to mark message read",
			zap.String("tenant_id", tenantID),
			zap.String("message_id", messageID),
			zap.Error(err),
		)
		return
	}
	t.bus.Emit(bus.KindMessageRead, bus.MessageRef{
		TenantID:  msg.TenantID,
		ContactID: msg.ContactID,
		MessageID: msg.ID,
		Status:    string(msg.Status),
	})
}

// MarkContactRead moves every unread message from a contact to read.
// Failures are logged, never returned.
func (t *Tracker) MarkContactRead(ctx context.Context, tenantID, contactID string) {
	n, err := t.store.MarkContactMessagesRead(ctx, tenantID, contactID)
	if err != nil {
		t.logger.Warn("failed to mark contact messages read",
			zap.String("tenant_id", tenantID),
			zap.String("contact_id", contactID),
			zap.Error(err),
		)
		return
	}
	if n == 0 {
		return
	}
	t.logger.Debug("contact messages read", zap.String("contact_id", contactID), zap.Int64("count", n))
	t.bus.Emit(bus.KindMessageRead, bus.MessageRef{
		TenantID:  tenantID,
		ContactID: contactID,
		Status:    string(status.Read),
	})
}
