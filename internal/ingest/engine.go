// Package ingest records messages that contacts send to the workspace.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/matheus3301/flowchat/internal/bus"
	"github.com/matheus3301/flowchat/internal/phone"
	"github.com/matheus3301/flowchat/internal/status"
	"github.com/matheus3301/flowchat/internal/store"
	"go.uber.org/zap"
)

var (
	// ErrUnknownContact is returned when no contact matches the sender's phone
	// and the tenant does not auto-create contacts.
	ErrUnknownContact = errors.New("unknown contact")
	// ErrInvalidInbound is returned for messages missing required fields.
	ErrInvalidInbound = errors.New("invalid inbound message")
)

// Inbound is a message received from the bridge.
type Inbound struct {
	TenantID    string            `json:"tenant_id"`
	Phone       string            `json:"phone"`
	Name        string            `json:"name,omitempty"`
	Content     string            `json:"content"`
	MessageType store.MessageType `json:"message_type,omitempty"`
	MediaURL    string            `json:"media_url,omitempty"`
	ExternalID  string            `json:"external_id,omitempty"`
}

// Tenant returns the tenant the message was sent to.
func (in Inbound) Tenant() string { return in.TenantID }

// Result is what IngestInbound stored. Duplicate is set when the external id
// was already known and nothing new was written.
type Result struct {
	Message        *store.Message
	Contact        *store.Contact
	Duplicate      bool
	ContactCreated bool
}

// Engine handles idempotent ingestion of inbound messages into the store.
// It subscribes to "inbound." events on the bus and processes them.
type Engine struct {
	db     *store.DB
	phones *phone.Normalizer
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates a new ingest engine. phones may be nil for the default rules.
func NewEngine(db *store.DB, phones *phone.Normalizer, b *bus.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if phones == nil {
		phones = phone.Default(logger)
	}
	return &Engine{
		db:     db,
		phones: phones,
		bus:    b,
		logger: logger,
	}
}

// Start subscribes to inbound events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("inbound.", 256)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-ch:
				// An event already taken off the bus is stored even if Stop
				// is called meanwhile.
				e.handleEvent(context.WithoutCancel(ctx), evt)
			}
		}
	}()
}

// Stop stops consuming events and waits for the one in progress, so the
// store can be closed right after.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

func (e *Engine) handleEvent(ctx context.Context, evt bus.Event) {
	if evt.Kind != bus.KindInboundMessage {
		return
	}
	var in Inbound
	switch p := evt.Payload.(type) {
	case Inbound:
		in = p
	case *Inbound:
		if p == nil {
			return
		}
		in = *p
	default:
		e.logger.Warn("unexpected inbound payload", zap.String("event_id", evt.ID))
		return
	}
	if _, err := e.IngestInbound(ctx, in); err != nil {
		e.logger.Error("failed to ingest inbound message",
			zap.Error(err),
			zap.String("tenant_id", in.TenantID),
			zap.String("external_id", in.ExternalID),
		)
	}
}

// IngestInbound stores a contact-authored message. Replaying the same
// external id returns the stored message without writing.
func (e *Engine) IngestInbound(ctx context.Context, in Inbound) (*Result, error) {
	if in.TenantID == "" || strings.TrimSpace(in.Phone) == "" {
		return nil, fmt.Errorf("%w: tenant id and phone are required", ErrInvalidInbound)
	}
	if strings.TrimSpace(in.Content) == "" && in.MediaURL == "" {
		return nil, fmt.Errorf("%w: content or media url is required", ErrInvalidInbound)
	}
	if in.MessageType == "" {
		in.MessageType = store.MessageText
	}
	if !in.MessageType.Valid() {
		return nil, fmt.Errorf("%w: unknown message type %q", ErrInvalidInbound, in.MessageType)
	}

	if in.ExternalID != "" {
		existing, err := e.db.FindMessageByExternalID(ctx, in.TenantID, in.ExternalID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			contact, err := e.db.GetContact(ctx, in.TenantID, existing.ContactID)
			if err != nil {
				return nil, err
			}
			return &Result{Message: existing, Contact: contact, Duplicate: true}, nil
		}
	}

	contact, created, err := e.resolveContact(ctx, in)
	if err != nil {
		return nil, err
	}

	var externalID *string
	if in.ExternalID != "" {
		externalID = &in.ExternalID
	}
	msg, err := e.db.CreateMessage(ctx, store.NewMessage{
		TenantID:    in.TenantID,
		ContactID:   contact.ID,
		SenderType:  store.SenderContact,
		Content:     in.Content,
		MessageType: in.MessageType,
		MediaURL:    in.MediaURL,
		Status:      status.Delivered,
		ExternalID:  externalID,
	})
	if err != nil {
		return nil, fmt.Errorf("store inbound message: %w", err)
	}

	e.bus.Emit(bus.KindMessageReceived, bus.MessageRef{
		TenantID:  msg.TenantID,
		ContactID: msg.ContactID,
		MessageID: msg.ID,
		Status:    string(msg.Status),
	})
	return &Result{Message: msg, Contact: contact, ContactCreated: created}, nil
}

func (e *Engine) resolveContact(ctx context.Context, in Inbound) (*store.Contact, bool, error) {
	candidates := phoneCandidates(e.phones, in.Phone)
	contact, err := e.db.FindContactByPhone(ctx, in.TenantID, candidates...)
	if err != nil {
		return nil, false, err
	}
	if contact != nil {
		return contact, false, nil
	}

	defaults, err := e.db.GetChatSettings(ctx, in.TenantID, "")
	if err != nil {
		return nil, false, fmt.Errorf("tenant settings: %w", err)
	}
	if defaults == nil || !defaults.AutoCreateContacts {
		return nil, false, fmt.Errorf("%w: %s", ErrUnknownContact, in.Phone)
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = candidates[0]
	}
	contact, err = e.db.UpsertContact(ctx, &store.Contact{
		TenantID: in.TenantID,
		Name:     name,
		Phone:    candidates[0],
	})
	if err != nil {
		return nil, false, fmt.Errorf("create contact: %w", err)
	}
	e.logger.Info("contact created from inbound message",
		zap.String("tenant_id", in.TenantID),
		zap.String("contact_id", contact.ID),
	)
	return contact, true, nil
}

// phoneCandidates lists the forms a stored phone may take for an inbound
// number: as received, then every variant that normalizes to the same number,
// each with and without a leading "+".
func phoneCandidates(n *phone.Normalizer, raw string) []string {
	raw = strings.TrimSpace(raw)
	out := []string{raw}
	add := func(s string) {
		for _, have := range out {
			if have == s {
				return
			}
		}
		out = append(out, s)
	}
	for _, v := range n.Variants(raw) {
		add(v)
		add("+" + v)
	}
	return out
}
