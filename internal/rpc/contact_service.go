package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// ContactServiceServer is the server API for ContactService.
type ContactServiceServer interface {
	UpsertContact(context.Context, *UpsertContactRequest) (*ContactResponse, error)
	GetContact(context.Context, *GetContactRequest) (*ContactResponse, error)
}

// ContactServiceDesc is the grpc.ServiceDesc for ContactService.
var ContactServiceDesc = grpc.ServiceDesc{
	ServiceName: ContactServiceName,
	HandlerType: (*ContactServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(ContactServiceName, "UpsertContact", ContactServiceServer.UpsertContact),
		unary(ContactServiceName, "GetContact", ContactServiceServer.GetContact),
	},
}

func RegisterContactServiceServer(s grpc.ServiceRegistrar, srv ContactServiceServer) {
	s.RegisterService(&ContactServiceDesc, srv)
}

// ContactServiceClient is the client API for ContactService.
type ContactServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewContactServiceClient(cc grpc.ClientConnInterface) *ContactServiceClient {
	return &ContactServiceClient{cc: cc}
}

func (c *ContactServiceClient) UpsertContact(ctx context.Context, in *UpsertContactRequest, opts ...grpc.CallOption) (*ContactResponse, error) {
	return invoke[ContactResponse](ctx, c.cc, ContactServiceName, "UpsertContact", in, opts)
}

func (c *ContactServiceClient) GetContact(ctx context.Context, in *GetContactRequest, opts ...grpc.CallOption) (*ContactResponse, error) {
	return invoke[ContactResponse](ctx, c.cc, ContactServiceName, "GetContact", in, opts)
}
