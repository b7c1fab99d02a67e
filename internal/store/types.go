package store

import (
	"strings"
	"time"

	"github.com/matheus3301/flowchat/internal/status"
)

// SenderType says who authored a message.
type SenderType string

const (
	SenderUser    SenderType = "user"
	SenderContact SenderType = "contact"
)

// Valid reports whether t is a known sender type.
func (t SenderType) Valid() bool {
	return t == SenderUser || t == SenderContact
}

// MessageType is the payload kind of a message.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageFile  MessageType = "file"
	MessageAudio MessageType = "audio"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageFile, MessageAudio:
		return true
	}
	return false
}

// Message is a single chat message exchanged with a contact.
type Message struct {
	ID          string
	TenantID    string
	ContactID   string
	SenderType  SenderType
	SenderID    string // user id when SenderType is user
	Content     string
	MessageType MessageType
	MediaURL    string
	Status      status.Status
	ExternalID  *string // bridge correlation id, nil until known
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ReadAt      *time.Time
}

// NewMessage holds the fields a caller supplies when recording a message.
type NewMessage struct {
	TenantID    string
	ContactID   string
	SenderType  SenderType
	SenderID    string
	Content     string
	MessageType MessageType   // defaults to text
	MediaURL    string
	Status      status.Status // defaults to sent
	ExternalID  *string
}

// ChatSettings configures the messaging bridge for a tenant (UserID empty)
// or for one user of the tenant.
type ChatSettings struct {
	TenantID            string
	UserID              string
	APIEndpoint         string
	APIKey              string
	APISecret           string
	IsActive            bool
	AutoCreateContacts  bool
	EnableNotifications bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsTenantDefault reports whether the row is the tenant-wide default.
func (s *ChatSettings) IsTenantDefault() bool {
	return s.UserID == ""
}

// Usable reports whether the row can be used to send: active with an endpoint.
func (s *ChatSettings) Usable() bool {
	return s != nil && s.IsActive && strings.TrimSpace(s.APIEndpoint) != ""
}

// Contact is the messaging counterparty. Phone is kept as captured.
type Contact struct {
	ID        string
	TenantID  string
	Name      string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
