package api

import (
	"context"
	"fmt"

	"github.com/matheus3301/flowchat/internal/rpc"
	"github.com/matheus3301/flowchat/internal/store"
)

// ContactService implements the ContactService gRPC service.
type ContactService struct {
	db *store.DB
}

// NewContactService creates a new contact service backed by the store.
func NewContactService(db *store.DB) *ContactService {
	return &ContactService{db: db}
}

func (s *ContactService) UpsertContact(ctx context.Context, req *rpc.UpsertContactRequest) (*rpc.ContactResponse, error) {
	if req.Contact == nil || req.Contact.TenantID == "" {
		return nil, invalidArgument("contact.tenant_id is required")
	}
	c, err := s.db.UpsertContact(ctx, &store.Contact{
		ID:       req.Contact.ID,
		TenantID: req.Contact.TenantID,
		Name:     req.Contact.Name,
		Phone:    req.Contact.Phone,
	})
	if err != nil {
		return nil, toStatus("upsert contact", err)
	}
	return &rpc.ContactResponse{Contact: contactToRPC(c)}, nil
}

func (s *ContactService) GetContact(ctx context.Context, req *rpc.GetContactRequest) (*rpc.ContactResponse, error) {
	if req.TenantID == "" || req.ID == "" {
		return nil, invalidArgument("tenant_id and id are required")
	}
	c, err := s.db.GetContact(ctx, req.TenantID, req.ID)
	if err != nil {
		return nil, toStatus("get contact", err)
	}
	if c == nil {
		return nil, toStatus("get contact", fmt.Errorf("contact %s: %w", req.ID, store.ErrNotFound))
	}
	return &rpc.ContactResponse{Contact: contactToRPC(c)}, nil
}
