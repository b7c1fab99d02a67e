package bus

import "time"

// Event kinds published by the message pipeline.
const (
	KindMessageCreated    = "message.created"
	KindMessageDispatched = "message.dispatched"
	KindMessageSendFailed = "message.send_failed"
	KindMessageSkipped    = "message.skipped"
	KindMessageReceived   = "message.received"
	KindMessageRead       = "message.read"

	// KindInboundMessage carries raw inbound payloads to the ingest engine.
	KindInboundMessage = "inbound.message"
)

// Event represents a domain event published on the bus.
type Event struct {
	ID        string
	Kind      string
	Timestamp time.Time
	Payload   any
}

// MessageRef identifies the message an event is about.
type MessageRef struct {
	TenantID  string `json:"tenant_id"`
	ContactID string `json:"contact_id"`
	MessageID string `json:"message_id"`
	Status    string `json:"status,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Tenant returns the tenant the message belongs to.
func (r MessageRef) Tenant() string { return r.TenantID }

// TenantOf returns the tenant an event belongs to, or "" when its payload
// carries none.
func TenantOf(evt Event) string {
	if p, ok := evt.Payload.(interface{ Tenant() string }); ok {
		return p.Tenant()
	}
	return ""
}
