package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// SettingsServiceServer is the server API for SettingsService.
type SettingsServiceServer interface {
	GetSettings(context.Context, *GetSettingsRequest) (*SettingsResponse, error)
	SaveSettings(context.Context, *SaveSettingsRequest) (*SettingsResponse, error)
	ResolveSettings(context.Context, *ResolveSettingsRequest) (*ResolveSettingsResponse, error)
	TestConnection(context.Context, *TestConnectionRequest) (*TestConnectionResponse, error)
}

// SettingsServiceDesc is the grpc.ServiceDesc for SettingsService.
var SettingsServiceDesc = grpc.ServiceDesc{
	ServiceName: SettingsServiceName,
	HandlerType: (*SettingsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(SettingsServiceName, "GetSettings", SettingsServiceServer.GetSettings),
		unary(SettingsServiceName, "SaveSettings", SettingsServiceServer.SaveSettings),
		unary(SettingsServiceName, "ResolveSettings", SettingsServiceServer.ResolveSettings),
		unary(SettingsServiceName, "TestConnection", SettingsServiceServer.TestConnection),
	},
}

func RegisterSettingsServiceServer(s grpc.ServiceRegistrar, srv SettingsServiceServer) {
	s.RegisterService(&SettingsServiceDesc, srv)
}

// SettingsServiceClient is the client API for SettingsService.
type SettingsServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSettingsServiceClient(cc grpc.ClientConnInterface) *SettingsServiceClient {
	return &SettingsServiceClient{cc: cc}
}

func (c *SettingsServiceClient) GetSettings(ctx context.Context, in *GetSettingsRequest, opts ...grpc.CallOption) (*SettingsResponse, error) {
	return invoke[SettingsResponse](ctx, c.cc, SettingsServiceName, "GetSettings", in, opts)
}

func (c *SettingsServiceClient) SaveSettings(ctx context.Context, in *SaveSettingsRequest, opts ...grpc.CallOption) (*SettingsResponse, error) {
	return invoke[SettingsResponse](ctx, c.cc, SettingsServiceName, "SaveSettings", in, opts)
}

func (c *SettingsServiceClient) ResolveSettings(ctx context.Context, in *ResolveSettingsRequest, opts ...grpc.CallOption) (*ResolveSettingsResponse, error) {
	return invoke[ResolveSettingsResponse](ctx, c.cc, SettingsServiceName, "ResolveSettings", in, opts)
}

func (c *SettingsServiceClient) TestConnection(ctx context.Context, in *TestConnectionRequest, opts ...grpc.CallOption) (*TestConnectionResponse, error) {
	return invoke[TestConnectionResponse](ctx, c.cc, SettingsServiceName, "TestConnection", in, opts)
}
