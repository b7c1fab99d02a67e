// Package settings decides which bridge credentials apply to a sender.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/matheus3301/flowchat/internal/mind2flow"
	"github.com/matheus3301/flowchat/internal/store"
	"go.uber.org/zap"
)

// ErrNotConfigured is returned by TestConnection when no usable settings exist.
var ErrNotConfigured = errors.New("chat settings not configured")

// Store is the persistence the resolver reads and writes.
type Store interface {
	GetChatSettings(ctx context.Context, tenantID, userID string) (*store.ChatSettings, error)
	UpsertChatSettings(ctx context.Context, s *store.ChatSettings) (*store.ChatSettings, error)
}

// Tester checks connectivity to the bridge.
type Tester interface {
	TestConnection(ctx context.Context, creds mind2flow.Credentials) error
}

// Resolver implements the personal-then-tenant-default lookup.
type Resolver struct {
	store  Store
	tester Tester
	logger *zap.Logger
}

// NewResolver creates a resolver. tester may be nil if TestConnection is unused.
func NewResolver(s Store, tester Tester, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: s, tester: tester, logger: logger}
}

// ResolveForSending returns the settings a sender should use, or nil when
// neither tier is active with an endpoint. A usable personal row always wins;
// tiers are never merged field by field.
func (r *Resolver) ResolveForSending(ctx context.Context, tenantID, userID string) (*store.ChatSettings, error) {
	if userID != "" {
		personal, err := r.store.GetChatSettings(ctx, tenantID, userID)
		if err != nil {
			return nil, fmt.Errorf("personal settings: %w", err)
		}
		if personal.Usable() {
			return personal, nil
		}
	}

	tenant, err := r.store.GetChatSettings(ctx, tenantID, "")
	if err != nil {
		return nil, fmt.Errorf("tenant settings: %w", err)
	}
	if tenant.Usable() {
		return tenant, nil
	}
	return nil, nil
}

// Get returns the raw row for (tenantID, userID) without any fallback.
func (r *Resolver) Get(ctx context.Context, tenantID, userID string) (*store.ChatSettings, error) {
	return r.store.GetChatSettings(ctx, tenantID, userID)
}

// Save creates or updates the row keyed by (TenantID, UserID).
func (r *Resolver) Save(ctx context.Context, s *store.ChatSettings) (*store.ChatSettings, error) {
	if s.TenantID == "" {
		return nil, errors.New("save settings: tenant id is required")
	}
	s.APIEndpoint = strings.TrimSpace(s.APIEndpoint)
	if s.APIEndpoint != "" {
		if _, err := mind2flow.ValidateEndpoint(s.APIEndpoint); err != nil {
			return nil, fmt.Errorf("save settings: %w", err)
		}
	}
	saved, err := r.store.UpsertChatSettings(ctx, s)
	if err != nil {
		return nil, err
	}
	r.logger.Info("chat settings saved",
		zap.String("tenant_id", saved.TenantID),
		zap.String("user_id", saved.UserID),
		zap.Bool("active", saved.IsActive),
	)
	return saved, nil
}

// TestConnection resolves the sender's settings and checks the bridge answers.
func (r *Resolver) TestConnection(ctx context.Context, tenantID, userID string) (*store.ChatSettings, error) {
	s, err := r.ResolveForSending(ctx, tenantID, userID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNotConfigured
	}
	if r.tester == nil {
		return s, errors.New("connection tester not configured")
	}
	if err := r.tester.TestConnection(ctx, Credentials(s)); err != nil {
		return s, err
	}
	return s, nil
}

// Credentials extracts the bridge credentials of a settings row.
func Credentials(s *store.ChatSettings) mind2flow.Credentials {
	return mind2flow.Credentials{
		Endpoint:  strings.TrimSpace(s.APIEndpoint),
		APIKey:    s.APIKey,
		APISecret: s.APISecret,
	}
}
