package api

import (
	"context"
	"encoding/json"
	"time"

	"github.com/matheus3301/flowchat/internal/bus"
	"github.com/matheus3301/flowchat/internal/dispatch"
	"github.com/matheus3301/flowchat/internal/ingest"
	"github.com/matheus3301/flowchat/internal/rpc"
	"github.com/matheus3301/flowchat/internal/store"
	"github.com/matheus3301/flowchat/internal/unread"
	"google.golang.org/grpc"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// MessageService implements the MessageService gRPC service.
type MessageService struct {
	db         *store.DB
	dispatcher *dispatch.Dispatcher
	tracker    *unread.Tracker
	ingest     *ingest.Engine
	bus        *bus.Bus
}

// NewMessageService creates a new message service.
func NewMessageService(db *store.DB, d *dispatch.Dispatcher, t *unread.Tracker, e *ingest.Engine, b *bus.Bus) *MessageService {
	return &MessageService{db: db, dispatcher: d, tracker: t, ingest: e, bus: b}
}

func (s *MessageService) SendMessage(ctx context.Context, req *rpc.SendMessageRequest) (*rpc.SendMessageResponse, error) {
	res, err := s.dispatcher.Send(ctx, dispatch.SendInput{
		TenantID:    req.TenantID,
		ContactID:   req.ContactID,
		SenderType:  store.SenderType(req.SenderType),
		SenderID:    req.UserID,
		Content:     req.Content,
		MessageType: store.MessageType(req.MessageType),
		MediaURL:    req.MediaURL,
	})
	if err != nil {
		return nil, toStatus("send message", err)
	}
	return &rpc.SendMessageResponse{
		Message: messageToRPC(res.Message),
		Outcome: string(res.Outcome),
		Reason:  res.Reason,
	}, nil
}

func (s *MessageService) ListMessages(ctx context.Context, req *rpc.ListMessagesRequest) (*rpc.ListMessagesResponse, error) {
	if req.TenantID == "" || req.ContactID == "" {
		return nil, invalidArgument("tenant_id and contact_id are required")
	}
	limit := int(req.Limit)
	if limit <= 0 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)

	var before store.Cursor
	if req.BeforeUnixMs > 0 {
		before = store.Cursor{CreatedAt: time.UnixMilli(req.BeforeUnixMs), ID: req.BeforeID}
	}
	// One extra row tells whether another page exists.
	msgs, err := s.db.ListMessages(ctx, req.TenantID, req.ContactID, before, limit+1)
	if err != nil {
		return nil, toStatus("list messages", err)
	}
	resp := &rpc.ListMessagesResponse{HasMore: len(msgs) > limit}
	if resp.HasMore {
		msgs = msgs[:limit]
		next := store.CursorOf(&msgs[len(msgs)-1])
		resp.NextBeforeUnixMs = next.CreatedAt.UnixMilli()
		resp.NextBeforeID = next.ID
	}
	resp.Messages = make([]*rpc.Message, 0, len(msgs))
	for i := range msgs {
		resp.Messages = append(resp.Messages, messageToRPC(&msgs[i]))
	}
	return resp, nil
}

func (s *MessageService) GetUnreadCount(ctx context.Context, req *rpc.GetUnreadCountRequest) (*rpc.GetUnreadCountResponse, error) {
	if req.TenantID == "" || req.ContactID == "" {
		return nil, invalidArgument("tenant_id and contact_id are required")
	}
	n, err := s.tracker.UnreadCount(ctx, req.TenantID, req.ContactID)
	if err != nil {
		return nil, toStatus("unread count", err)
	}
	return &rpc.GetUnreadCountResponse{Count: n}, nil
}

func (s *MessageService) ListUnread(ctx context.Context, req *rpc.ListUnreadRequest) (*rpc.ListUnreadResponse, error) {
	if req.TenantID == "" {
		return nil, invalidArgument("tenant_id is required")
	}
	counts, err := s.tracker.UnreadByContact(ctx, req.TenantID)
	if err != nil {
		return nil, toStatus("list unread", err)
	}
	return &rpc.ListUnreadResponse{Counts: counts}, nil
}

func (s *MessageService) MarkRead(ctx context.Context, req *rpc.MarkReadRequest) (*rpc.MarkReadResponse, error) {
	if req.TenantID == "" || req.MessageID == "" {
		return nil, invalidArgument("tenant_id and message_id are required")
	}
	s.tracker.MarkRead(ctx, req.TenantID, req.MessageID)
	return &rpc.MarkReadResponse{Accepted: true}, nil
}

func (s *MessageService) MarkContactRead(ctx context.Context, req *rpc.MarkContactReadRequest) (*rpc.MarkReadResponse, error) {
	if req.TenantID == "" || req.ContactID == "" {
		return nil, invalidArgument("tenant_id and contact_id are required")
	}
	s.tracker.MarkContactRead(ctx, req.TenantID, req.ContactID)
	return &rpc.MarkReadResponse{Accepted: true}, nil
}

func (s *MessageService) RecordInbound(ctx context.Context, req *rpc.RecordInboundRequest) (*rpc.RecordInboundResponse, error) {
	res, err := s.ingest.IngestInbound(ctx, ingest.Inbound{
		TenantID:    req.TenantID,
		Phone:       req.Phone,
		Name:        req.Name,
		Content:     req.Content,
		MessageType: store.MessageType(req.MessageType),
		MediaURL:    req.MediaURL,
		ExternalID:  req.ExternalID,
	})
	if err != nil {
		return nil, toStatus("record inbound", err)
	}
	return &rpc.RecordInboundResponse{
		Message:        messageToRPC(res.Message),
		Contact:        contactToRPC(res.Contact),
		Duplicate:      res.Duplicate,
		ContactCreated: res.ContactCreated,
	}, nil
}

// WatchEvents streams one tenant's events until the client goes away.
func (s *MessageService) WatchEvents(req *rpc.WatchEventsRequest, stream grpc.ServerStreamingServer[rpc.Event]) error {
	if req.TenantID == "" {
		return invalidArgument("tenant_id is required")
	}
	prefix := req.Prefix
	if prefix == "" {
		prefix = "message."
	}
	ch, unsub := s.bus.Subscribe(prefix, 64)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			if bus.TenantOf(evt) != req.TenantID {
				continue
			}
			out, err := EventToRPC(evt)
			if err != nil {
				continue
			}
			if err := stream.Send(out); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

// EventToRPC renders a bus event for watchers.
func EventToRPC(evt bus.Event) (*rpc.Event, error) {
	out := &rpc.Event{
		ID:               evt.ID,
		Kind:             evt.Kind,
		OccurredAtUnixMs: evt.Timestamp.UnixMilli(),
	}
	if evt.Payload != nil {
		payload, err := json.Marshal(evt.Payload)
		if err != nil {
			return nil, err
		}
		out.Payload = payload
	}
	return out, nil
}
