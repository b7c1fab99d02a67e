package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// MessageServiceServer is the server API for MessageService.
type MessageServiceServer interface {
	SendMessage(context.Context, *SendMessageRequest) (*SendMessageResponse, error)
	ListMessages(context.Context, *ListMessagesRequest) (*ListMessagesResponse, error)
	GetUnreadCount(context.Context, *GetUnreadCountRequest) (*GetUnreadCountResponse, error)
	ListUnread(context.Context, *ListUnreadRequest) (*ListUnreadResponse, error)
	MarkRead(context.Context, *MarkReadRequest) (*MarkReadResponse, error)
	MarkContactRead(context.Context, *MarkContactReadRequest) (*MarkReadResponse, error)
	RecordInbound(context.Context, *RecordInboundRequest) (*RecordInboundResponse, error)
	WatchEvents(*WatchEventsRequest, grpc.ServerStreamingServer[Event]) error
}

// MessageServiceDesc is the grpc.ServiceDesc for MessageService.
var MessageServiceDesc = grpc.ServiceDesc{
	ServiceName: MessageServiceName,
	HandlerType: (*MessageServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MessageServiceName, "SendMessage", MessageServiceServer.SendMessage),
		unary(MessageServiceName, "ListMessages", MessageServiceServer.ListMessages),
		unary(MessageServiceName, "GetUnreadCount", MessageServiceServer.GetUnreadCount),
		unary(MessageServiceName, "ListUnread", MessageServiceServer.ListUnread),
		unary(MessageServiceName, "MarkRead", MessageServiceServer.MarkRead),
		unary(MessageServiceName, "MarkContactRead", MessageServiceServer.MarkContactRead),
		unary(MessageServiceName, "RecordInbound", MessageServiceServer.RecordInbound),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchEvents",
			Handler:       watchEventsHandler,
			ServerStreams: true,
		},
	},
}

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchEventsRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(MessageServiceServer).WatchEvents(in, &grpc.GenericServerStream[WatchEventsRequest, Event]{ServerStream: stream})
}

// RegisterMessageServiceServer registers srv on s.
func RegisterMessageServiceServer(s grpc.ServiceRegistrar, srv MessageServiceServer) {
	s.RegisterService(&MessageServiceDesc, srv)
}

// MessageServiceClient is the client API for MessageService.
type MessageServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewMessageServiceClient(cc grpc.ClientConnInterface) *MessageServiceClient {
	return &MessageServiceClient{cc: cc}
}

func (c *MessageServiceClient) SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*SendMessageResponse, error) {
	return invoke[SendMessageResponse](ctx, c.cc, MessageServiceName, "SendMessage", in, opts)
}

func (c *MessageServiceClient) ListMessages(ctx context.Context, in *ListMessagesRequest, opts ...grpc.CallOption) (*ListMessagesResponse, error) {
	return invoke[ListMessagesResponse](ctx, c.cc, MessageServiceName, "ListMessages", in, opts)
}

func (c *MessageServiceClient) GetUnreadCount(ctx context.Context, in *GetUnreadCountRequest, opts ...grpc.CallOption) (*GetUnreadCountResponse, error) {
	return invoke[GetUnreadCountResponse](ctx, c.cc, MessageServiceName, "GetUnreadCount", in, opts)
}

func (c *MessageServiceClient) ListUnread(ctx context.Context, in *ListUnreadRequest, opts ...grpc.CallOption) (*ListUnreadResponse, error) {
	return invoke[ListUnreadResponse](ctx, c.cc, MessageServiceName, "ListUnread", in, opts)
}

func (c *MessageServiceClient) MarkRead(ctx context.Context, in *MarkReadRequest, opts ...grpc.CallOption) (*MarkReadResponse, error) {
	return invoke[MarkReadResponse](ctx, c.cc, MessageServiceName, "MarkRead", in, opts)
}

func (c *MessageServiceClient) MarkContactRead(ctx context.Context, in *MarkContactReadRequest, opts ...grpc.CallOption) (*MarkReadResponse, error) {
	return invoke[MarkReadResponse](ctx, c.cc, MessageServiceName, "MarkContactRead", in, opts)
}

func (c *MessageServiceClient) RecordInbound(ctx context.Context, in *RecordInboundRequest, opts ...grpc.CallOption) (*RecordInboundResponse, error) {
	return invoke[RecordInboundResponse](ctx, c.cc, MessageServiceName, "RecordInbound", in, opts)
}

// WatchEvents opens a server stream of bus events.
func (c *MessageServiceClient) WatchEvents(ctx context.Context, in *WatchEventsRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[Event], error) {
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	stream, err := c.cc.NewStream(ctx, &MessageServiceDesc.Streams[0], fullMethod(MessageServiceName, "WatchEvents"), opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[WatchEventsRequest, Event]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
