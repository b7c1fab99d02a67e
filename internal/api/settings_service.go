package api

import (
	"context"
	"errors"

	"github.com/matheus3301/flowchat/internal/mind2flow"
	"github.com/matheus3301/flowchat/internal/rpc"
	"github.com/matheus3301/flowchat/internal/settings"
	"github.com/matheus3301/flowchat/internal/store"
	"go.uber.org/zap"
)

// SettingsService implements the SettingsService gRPC service.
type SettingsService struct {
	resolver *settings.Resolver
	logger   *zap.Logger
}

// NewSettingsService creates a new settings service.
func NewSettingsService(r *settings.Resolver, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{resolver: r, logger: logger}
}

func (s *SettingsService) GetSettings(ctx context.Context, req *rpc.GetSettingsRequest) (*rpc.SettingsResponse, error) {
	if req.TenantID == "" {
		return nil, invalidArgument("tenant_id is required")
	}
	row, err := s.resolver.Get(ctx, req.TenantID, req.UserID)
	if err != nil {
		return nil, toStatus("get settings", err)
	}
	return &rpc.SettingsResponse{Settings: settingsToRPC(row)}, nil
}

// SaveSettings upserts a row. An omitted secret keeps the stored one, since
// responses never reveal it; ClearSecret removes it.
func (s *SettingsService) SaveSettings(ctx context.Context, req *rpc.SaveSettingsRequest) (*rpc.SettingsResponse, error) {
	if req.Settings == nil || req.Settings.TenantID == "" {
		return nil, invalidArgument("settings.tenant_id is required")
	}
	if req.ClearSecret && req.Settings.APISecret != "" {
		return nil, invalidArgument("clear_secret conflicts with api_secret")
	}
	row := settingsFromRPC(req.Settings)
	if row.APISecret == "" && !req.ClearSecret {
		existing, err := s.resolver.Get(ctx, row.TenantID, row.UserID)
		if err != nil {
			return nil, toStatus("save settings", err)
		}
		if existing != nil {
			row.APISecret = existing.APISecret
		}
	}
	saved, err := s.resolver.Save(ctx, row)
	if err != nil {
		return nil, toStatus("save settings", err)
	}
	return &rpc.SettingsResponse{Settings: settingsToRPC(saved)}, nil
}

func (s *SettingsService) ResolveSettings(ctx context.Context, req *rpc.ResolveSettingsRequest) (*rpc.ResolveSettingsResponse, error) {
	if req.TenantID == "" {
		return nil, invalidArgument("tenant_id is required")
	}
	row, err := s.resolver.ResolveForSending(ctx, req.TenantID, req.UserID)
	if err != nil {
		return nil, toStatus("resolve settings", err)
	}
	return &rpc.ResolveSettingsResponse{Settings: settingsToRPC(row), Source: source(row)}, nil
}

// TestConnection reports bridge failures in the response; only a missing
// configuration or a storage problem is an RPC error.
func (s *SettingsService) TestConnection(ctx context.Context, req *rpc.TestConnectionRequest) (*rpc.TestConnectionResponse, error) {
	if req.TenantID == "" {
		return nil, invalidArgument("tenant_id is required")
	}
	row, err := s.resolver.TestConnection(ctx, req.TenantID, req.UserID)
	if row == nil {
		return nil, toStatus("test connection", err)
	}
	resp := &rpc.TestConnectionResponse{OK: err == nil, Source: source(row)}
	if err != nil {
		resp.Error = describeBridgeError(err)
		s.logger.Info("connection test failed",
			zap.String("tenant_id", req.TenantID),
			zap.String("user_id", req.UserID),
			zap.Error(err),
		)
	}
	return resp, nil
}

func describeBridgeError(err error) string {
	var apiErr *mind2flow.APIError
	if errors.As(err, &apiErr) && apiErr.Body != "" {
		return mind2flow.Reason(err) + ": " + apiErr.Body
	}
	return mind2flow.Reason(err)
}

func source(row *store.ChatSettings) string {
	switch {
	case row == nil:
		return ""
	case row.IsTenantDefault():
		return "tenant"
	default:
		return "personal"
	}
}
