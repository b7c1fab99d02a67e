package rpc

import "encoding/json"

// Message is a chat message on the wire.
type Message struct {
	ID              string `json:"id"`
	TenantID        string `json:"tenant_id"`
	ContactID       string `json:"contact_id"`
	SenderType      string `json:"sender_type"`
	SenderID        string `json:"sender_id,omitempty"`
	Content         string `json:"content"`
	MessageType     string `json:"message_type"`
	MediaURL        string `json:"media_url,omitempty"`
	Status          string `json:"status"`
	ExternalID      string `json:"external_id,omitempty"`
	CreatedAtUnixMs int64  `json:"created_at_unix_ms"`
	UpdatedAtUnixMs int64  `json:"updated_at_unix_ms"`
	ReadAtUnixMs    int64  `json:"read_at_unix_ms,omitempty"`
}

// ChatSettings is a settings row on the wire. Secrets are write-only: responses
// carry APISecretSet instead of the secret.
type ChatSettings struct {
	TenantID            string `json:"tenant_id"`
	UserID              string `json:"user_id,omitempty"`
	APIEndpoint         string `json:"api_endpoint"`
	APIKey              string `json:"api_key,omitempty"`
	APISecret           string `json:"api_secret,omitempty"`
	APISecretSet        bool   `json:"api_secret_set,omitempty"`
	IsActive            bool   `json:"is_active"`
	AutoCreateContacts  bool   `json:"auto_create_contacts"`
	EnableNotifications bool   `json:"enable_notifications"`
	CreatedAtUnixMs     int64  `json:"created_at_unix_ms,omitempty"`
	UpdatedAtUnixMs     int64  `json:"updated_at_unix_ms,omitempty"`
}

// Contact is a contact on the wire.
type Contact struct {
	ID              string `json:"id"`
	TenantID        string `json:"tenant_id"`
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	CreatedAtUnixMs int64  `json:"created_at_unix_ms,omitempty"`
	UpdatedAtUnixMs int64  `json:"updated_at_unix_ms,omitempty"`
}

// Event is a bus event streamed to watchers.
type Event struct {
	ID               string          `json:"id"`
	Kind             string          `json:"kind"`
	OccurredAtUnixMs int64           `json:"occurred_at_unix_ms"`
	Payload          json.RawMessage `json:"payload,omitempty"`
}

type SendMessageRequest struct {
	TenantID    string `json:"tenant_id"`
	ContactID   string `json:"contact_id"`
	UserID      string `json:"user_id,omitempty"`
	SenderType  string `json:"sender_type,omitempty"`
	Content     string `json:"content"`
	MessageType string `json:"message_type,omitempty"`
	MediaURL    string `json:"media_url,omitempty"`
}

type SendMessageResponse struct {
	Message *Message `json:"message"`
	Outcome string   `json:"outcome"`
	Reason  string   `json:"reason,omitempty"`
}

// ListMessagesRequest pages a conversation newest first. The cursor is the
// (created_at, id) pair of the last message of the previous page.
type ListMessagesRequest struct {
	TenantID     string `json:"tenant_id"`
	ContactID    string `json:"contact_id"`
	BeforeUnixMs int64  `json:"before_unix_ms,omitempty"`
	BeforeID     string `json:"before_id,omitempty"`
	Limit        int32  `json:"limit,omitempty"`
}

// ListMessagesResponse carries the cursor for the next page when HasMore is set.
type ListMessagesResponse struct {
	Messages         []*Message `json:"messages"`
	HasMore          bool       `json:"has_more"`
	NextBeforeUnixMs int64      `json:"next_before_unix_ms,omitempty"`
	NextBeforeID     string     `json:"next_before_id,omitempty"`
}

type GetUnreadCountRequest struct {
	TenantID  string `json:"tenant_id"`
	ContactID string `json:"contact_id"`
}

type GetUnreadCountResponse struct {
	Count int64 `json:"count"`
}

type ListUnreadRequest struct {
	TenantID string `json:"tenant_id"`
}

type ListUnreadResponse struct {
	Counts map[string]int64 `json:"counts"`
}

type MarkReadRequest struct {
	TenantID  string `json:"tenant_id"`
	MessageID string `json:"message_id"`
}

type MarkContactReadRequest struct {
	TenantID  string `json:"tenant_id"`
	ContactID string `json:"contact_id"`
}

// MarkReadResponse acknowledges a read request. Marking is best effort, so
// Accepted says nothing about whether rows changed.
type MarkReadResponse struct {
	Accepted bool `json:"accepted"`
}

type RecordInboundRequest struct {
	TenantID    string `json:"tenant_id"`
	Phone       string `json:"phone"`
	Name        string `json:"name,omitempty"`
	Content     string `json:"content"`
	MessageType string `json:"message_type,omitempty"`
	MediaURL    string `json:"media_url,omitempty"`
	ExternalID  string `json:"external_id,omitempty"`
}

type RecordInboundResponse struct {
	Message        *Message `json:"message"`
	Contact        *Contact `json:"contact"`
	Duplicate      bool     `json:"duplicate"`
	ContactCreated bool     `json:"contact_created"`
}

type WatchEventsRequest struct {
	// TenantID limits the stream to one tenant's events.
	TenantID string `json:"tenant_id"`
	// Prefix filters event kinds; empty means "message.".
	Prefix string `json:"prefix,omitempty"`
}

type GetSettingsRequest struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id,omitempty"`
}

type SettingsResponse struct {
	// Settings is nil when no row exists.
	Settings *ChatSettings `json:"settings"`
}

// SaveSettingsRequest upserts a row. An empty secret keeps the stored one
// unless ClearSecret is set.
type SaveSettingsRequest struct {
	Settings    *ChatSettings `json:"settings"`
	ClearSecret bool          `json:"clear_secret,omitempty"`
}

type ResolveSettingsRequest struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id,omitempty"`
}

type ResolveSettingsResponse struct {
	Settings *ChatSettings `json:"settings"`
	// Source is "personal", "tenant", or empty when nothing is usable.
	Source string `json:"source"`
}

type TestConnectionRequest struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id,omitempty"`
}

type TestConnectionResponse struct {
	OK     bool   `json:"ok"`
	Source string `json:"source,omitempty"`
	Error  string `json:"error,omitempty"`
}

type UpsertContactRequest struct {
	Contact *Contact `json:"contact"`
}

type GetContactRequest struct {
	TenantID string `json:"tenant_id"`
	ID       string `json:"id"`
}

type ContactResponse struct {
	Contact *Contact `json:"contact"`
}
