package api

import (
	"github.com/matheus3301/flowchat/internal/rpc"
	"github.com/matheus3301/flowchat/internal/store"
)

func messageToRPC(m *store.Message) *rpc.Message {
	if m == nil {
		return nil
	}
	out := &rpc.Message{
		ID:              m.ID,
		TenantID:        m.TenantID,
		ContactID:       m.ContactID,
		SenderType:      string(m.SenderType),
		SenderID:        m.SenderID,
		Content:         m.Content,
		MessageType:     string(m.MessageType),
		MediaURL:        m.MediaURL,
		Status:          string(m.Status),
		CreatedAtUnixMs: m.CreatedAt.UnixMilli(),
		UpdatedAtUnixMs: m.UpdatedAt.UnixMilli(),
	}
	if m.ExternalID != nil {
		out.ExternalID = *m.ExternalID
	}
	if m.ReadAt != nil {
		out.ReadAtUnixMs = m.ReadAt.UnixMilli()
	}
	return out
}

// settingsToRPC never copies the secret back out.
func settingsToRPC(s *store.ChatSettings) *rpc.ChatSettings {
	if s == nil {
		return nil
	}
	return &rpc.ChatSettings{
		TenantID:            s.TenantID,
		UserID:              s.UserID,
		APIEndpoint:         s.APIEndpoint,
		APIKey:              s.APIKey,
		APISecretSet:        s.APISecret != "",
		IsActive:            s.IsActive,
		AutoCreateContacts:  s.AutoCreateContacts,
		EnableNotifications: s.EnableNotifications,
		CreatedAtUnixMs:     s.CreatedAt.UnixMilli(),
		UpdatedAtUnixMs:     s.UpdatedAt.UnixMilli(),
	}
}

func settingsFromRPC(s *rpc.ChatSettings) *store.ChatSettings {
	return &store.ChatSettings{
		TenantID:            s.TenantID,
		UserID:              s.UserID,
		APIEndpoint:         s.APIEndpoint,
		APIKey:              s.APIKey,
		APISecret:           s.APISecret,
		IsActive:            s.IsActive,
		AutoCreateContacts:  s.AutoCreateContacts,
		EnableNotifications: s.EnableNotifications,
	}
}

func contactToRPC(c *store.Contact) *rpc.Contact {
	if c == nil {
		return nil
	}
	return &rpc.Contact{
		ID:              c.ID,
		TenantID:        c.TenantID,
		Name:            c.Name,
		Phone:           c.Phone,
		CreatedAtUnixMs: c.CreatedAt.UnixMilli(),
		UpdatedAtUnixMs: c.UpdatedAt.UnixMilli(),
	}
}
