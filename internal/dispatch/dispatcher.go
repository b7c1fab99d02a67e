// Package dispatch persists outbound messages and hands them to the bridge.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/flowchat/internal/bus"
	"github.com/matheus3301/flowchat/internal/mind2flow"
	"github.com/matheus3301/flowchat/internal/phone"
	"github.com/matheus3301/flowchat/internal/settings"
	"github.com/matheus3301/flowchat/internal/status"
	"github.com/matheus3301/flowchat/internal/store"
	"go.uber.org/zap"
)

// ErrInvalidInput is returned before anything is persisted.
var ErrInvalidInput = errors.New("invalid send input")

// MessageStore is the persistence the dispatcher writes to.
type MessageStore interface {
	CreateMessage(ctx context.Context, in store.NewMessage) (*store.Message, error)
	AttachExternalID(ctx context.Context, tenantID, id, externalID string) (*store.Message, error)
	MarkFailed(ctx context.Context, tenantID, id string) (*store.Message, error)
}

// ContactDirectory looks up the phone number of a contact.
type ContactDirectory interface {
	GetContactPhone(ctx context.Context, tenantID, contactID string) (string, error)
}

// SettingsResolver picks the bridge settings for a sender.
type SettingsResolver interface {
	ResolveForSending(ctx context.Context, tenantID, userID string) (*store.ChatSettings, error)
}

// Gateway delivers a message to the bridge.
type Gateway interface {
	Send(ctx context.Context, creds mind2flow.Credentials, req mind2flow.SendRequest) (mind2flow.SendResult, error)
}

// Normalizer rewrites a stored phone into the format the bridge expects.
type Normalizer interface {
	Normalize(raw string) string
}

// Outcome describes how far a send got.
type Outcome string

const (
	OutcomeDelivered         Outcome = "delivered"
	OutcomeSavedNotDelivered Outcome = "saved_not_delivered"
	OutcomeNotAttempted      Outcome = "not_attempted"
)

// SendInput is a message a user (or an integration acting as a contact) wants to send.
type SendInput struct {
	TenantID    string
	ContactID   string
	SenderType  store.SenderType
	SenderID    string
	Content     string
	MessageType store.MessageType
	MediaURL    string
	Status      status.Status // sent (default) or delivered
}

// Result is the outcome of a send. Message is always the latest durable state.
type Result struct {
	Message     *store.Message
	Outcome     Outcome
	Reason      string
	DispatchErr error
}

// Deps are the collaborators of a Dispatcher. Phones, Bus and Logger are optional.
type Deps struct {
	Messages MessageStore
	Contacts ContactDirectory
	Settings SettingsResolver
	Gateway  Gateway
	Phones   Normalizer
	Bus      *bus.Bus
	Logger   *zap.Logger

	// Timeout bounds the bridge call. Zero leaves it unbounded.
	Timeout time.Duration
}

// Dispatcher runs the persist, resolve, send, reconcile pipeline.
type Dispatcher struct {
	messages MessageStore
	contacts ContactDirectory
	settings SettingsResolver
	gateway  Gateway
	phones   Normalizer
	bus      *bus.Bus
	logger   *zap.Logger
	timeout  time.Duration
}

// New creates a dispatcher.
func New(d Deps) *Dispatcher {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Phones == nil {
		d.Phones = phone.Default(d.Logger)
	}
	return &Dispatcher{
		messages: d.Messages,
		contacts: d.Contacts,
		settings: d.Settings,
		gateway:  d.Gateway,
		phones:   d.Phones,
		bus:      d.Bus,
		logger:   d.Logger,
		timeout:  d.Timeout,
	}
}

func (in *SendInput) validate() error {
	if strings.TrimSpace(in.TenantID) == "" {
		return fmt.Errorf("%w: tenant id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.ContactID) == "" {
		return fmt.Errorf("%w: contact id is required", ErrInvalidInput)
	}
	if in.SenderType == "" {
		in.SenderType = store.SenderUser
	}
	if !in.SenderType.Valid() {
		return fmt.Errorf("%w: unknown sender type %q", ErrInvalidInput, in.SenderType)
	}
	if in.MessageType == "" {
		in.MessageType = store.MessageText
	}
	if !in.MessageType.Valid() {
		return fmt.Errorf("%w: unknown message type %q", ErrInvalidInput, in.MessageType)
	}
	if in.Status == "" {
		in.Status = status.Sent
	}
	// A new message must still be able to move to failed.
	if in.Status != status.Sent && in.Status != status.Delivered {
		return fmt.Errorf("%w: initial status must be sent or delivered, got %q", ErrInvalidInput, in.Status)
	}
	if strings.TrimSpace(in.Content) == "" && in.MediaURL == "" {
		return fmt.Errorf("%w: content or media url is required", ErrInvalidInput)
	}
	return nil
}

// Send persists the message and then tries to deliver it. The only errors
// returned are invalid input and a failed initial persist; every later failure
// is reported through the Result.
func (d *Dispatcher) Send(ctx context.Context, in SendInput) (*Result, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if in.SenderType != store.SenderUser {
		in.SenderID = ""
	}

	msg, err := d.messages.CreateMessage(ctx, store.NewMessage{
		TenantID:    in.TenantID,
		ContactID:   in.ContactID,
		SenderType:  in.SenderType,
		SenderID:    in.SenderID,
		Content:     in.Content,
		MessageType: in.MessageType,
		MediaURL:    in.MediaURL,
		Status:      in.Status,
	})
	if err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}
	d.publish(bus.KindMessageCreated, msg, "")

	// The row exists; finish reconciling it even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	log := d.logger.With(
		zap.String("message_id", msg.ID),
		zap.String("tenant_id", msg.TenantID),
		zap.String("contact_id", msg.ContactID),
	)

	rawPhone, err := d.contacts.GetContactPhone(ctx, msg.TenantID, msg.ContactID)
	if err != nil {
		log.Warn("contact lookup failed, not dispatching", zap.Error(err))
		return d.skipped(msg, "contact lookup failed"), nil
	}
	if strings.TrimSpace(rawPhone) == "" {
		log.Info("contact has no phone, not dispatching")
		return d.skipped(msg, "contact has no phone"), nil
	}

	cfg, err := d.settings.ResolveForSending(ctx, msg.TenantID, in.SenderID)
	if err != nil {
		log.Warn("settings lookup failed, not dispatching", zap.Error(err))
		return d.skipped(msg, "settings lookup failed"), nil
	}
	if cfg == nil {
		log.Info("chat settings not configured, not dispatching")
		return d.skipped(msg, "chat settings not configured"), nil
	}

	req := mind2flow.SendRequest{
		PhoneNumber: d.phones.Normalize(rawPhone),
		Message:     msg.Content,
	}
	res, err := d.deliver(ctx, settings.Credentials(cfg), req)
	if err != nil {
		return d.failed(ctx, log, msg, err), nil
	}

	log.Info("message dispatched", zap.String("external_id", res.ExternalID))
	if res.HasExternalID() {
		attached, err := d.messages.AttachExternalID(ctx, msg.TenantID, msg.ID, res.ExternalID)
		if err != nil {
			log.Error("failed to attach external id", zap.Error(err), zap.String("external_id", res.ExternalID))
		} else {
			msg = attached
		}
	}
	d.publish(bus.KindMessageDispatched, msg, "")
	return &Result{Message: msg, Outcome: OutcomeDelivered}, nil
}

func (d *Dispatcher) deliver(ctx context.Context, creds mind2flow.Credentials, req mind2flow.SendRequest) (mind2flow.SendResult, error) {
	if _, err := mind2flow.ValidateEndpoint(creds.Endpoint); err != nil {
		return mind2flow.SendResult{}, err
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return d.gateway.Send(ctx, creds, req)
}

func (d *Dispatcher) failed(ctx context.Context, log *zap.Logger, msg *store.Message, sendErr error) *Result {
	reason := mind2flow.Reason(sendErr)
	log.Error("failed to dispatch message", zap.Error(sendErr), zap.String("reason", reason))

	marked, err := d.messages.MarkFailed(ctx, msg.TenantID, msg.ID)
	if err != nil {
		log.Error("failed to mark message failed", zap.Error(err))
	} else {
		msg = marked
	}
	d.publish(bus.KindMessageSendFailed, msg, reason)
	return &Result{Message: msg, Outcome: OutcomeSavedNotDelivered, Reason: reason, DispatchErr: sendErr}
}

func (d *Dispatcher) skipped(msg *store.Message, reason string) *Result {
	d.publish(bus.KindMessageSkipped, msg, reason)
	return &Result{Message: msg, Outcome: OutcomeNotAttempted, Reason: reason}
}

func (d *Dispatcher) publish(kind string, msg *store.Message, reason string) {
	d.bus.Emit(kind, bus.MessageRef{
		TenantID:  msg.TenantID,
		ContactID: msg.ContactID,
		MessageID: msg.ID,
		Status:    string(msg.Status),
		Reason:    reason,
	})
}
