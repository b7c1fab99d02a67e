package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/flowchat/internal/bus"
	"github.com/matheus3301/flowchat/internal/mind2flow"
	"github.com/matheus3301/flowchat/internal/status"
	"github.com/matheus3301/flowchat/internal/store"
)

// memStore is an in-memory MessageStore that records calls.
type memStore struct {
	msgs      map[string]*store.Message
	createErr error
	markErr   error
	attachErr error
	attached  []string
	n         int
}

func newMemStore() *memStore {
	return &memStore{msgs: make(map[string]*store.Message)}
}

func (m *memStore) CreateMessage(_ context.Context, in store.NewMessage) (*store.Message, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.n++
	now := time.Now()
	msg := &store.Message{
		ID:          "msg-" + string(rune('0'+m.n)),
		TenantID:    in.TenantID,
		ContactID:   in.ContactID,
		SenderType:  in.SenderType,
		SenderID:    in.SenderID,
		Content:     in.Content,
		MessageType: in.MessageType,
		MediaURL:    in.MediaURL,
		Status:      in.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.msgs[msg.ID] = msg
	cp := *msg
	return &cp, nil
}

func (m *memStore) AttachExternalID(_ context.Context, _, id, externalID string) (*store.Message, error) {
	m.attached = append(m.attached, externalID)
	if m.attachErr != nil {
		return nil, m.attachErr
	}
	msg := m.msgs[id]
	msg.ExternalID = &externalID
	cp := *msg
	return &cp, nil
}

func (m *memStore) MarkFailed(_ context.Context, _, id string) (*store.Message, error) {
	if m.markErr != nil {
		return nil, m.markErr
	}
	msg := m.msgs[id]
	msg.Status = status.Failed
	cp := *msg
	return &cp, nil
}

type fakeContacts struct {
	phone string
	err   error
}

func (f fakeContacts) GetContactPhone(context.Context, string, string) (string, error) {
	return f.phone, f.err
}

type fakeSettings struct {
	s       *store.ChatSettings
	err     error
	gotUser string
}

func (f *fakeSettings) ResolveForSending(_ context.Context, _, userID string) (*store.ChatSettings, error) {
	f.gotUser = userID
	return f.s, f.err
}

type gatewayCall struct {
	creds mind2flow.Credentials
	req   mind2flow.SendRequest
}

type fakeGateway struct {
	calls  []gatewayCall
	result mind2flow.SendResult
	err    error
	block  bool
}

func (f *fakeGateway) Send(ctx context.Context, creds mind2flow.Credentials, req mind2flow.SendRequest) (mind2flow.SendResult, error) {
	f.calls = append(f.calls, gatewayCall{creds: creds, req: req})
	if f.block {
		<-ctx.Done()
		return mind2flow.SendResult{}, ctx.Err()
	}
	return f.result, f.err
}

var activeSettings = &store.ChatSettings{
	TenantID:    "t1",
	APIEndpoint: "https://bridge.example/send",
	APIKey:      "key",
	APISecret:   "secret",
	IsActive:    true,
}

func input() SendInput {
	return SendInput{TenantID: "t1", ContactID: "c1", SenderID: "u1", Content: "hola"}
}

func TestSendDelivered(t *testing.T) {
	ms := newMemStore()
	gw := &fakeGateway{result: mind2flow.SendResult{ExternalID: "ext-1"}}
	rs := &fakeSettings{s: activeSettings}
	b := bus.New()
	ch, unsub := b.Subscribe("message.", 10)
	defer unsub()

	d := New(Deps{Messages: ms, Contacts: fakeContacts{phone: "5214427817483"}, Settings: rs, Gateway: gw, Bus: b})
	res, err := d.Send(context.Background(), input())
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeDelivered {
		t.Errorf("outcome = %q, want delivered", res.Outcome)
	}
	if res.Message.ExternalID == nil || *res.Message.ExternalID != "ext-1" {
		t.Errorf("external id = %v, want ext-1", res.Message.ExternalID)
	}
	if res.Message.Status != status.Sent {
		t.Errorf("status = %q, want sent", res.Message.Status)
	}
	if rs.gotUser != "u1" {
		t.Errorf("resolved for user %q, want u1", rs.gotUser)
	}

	if len(gw.calls) != 1 {
		t.Fatalf("got %d gateway calls, want 1", len(gw.calls))
	}
	call := gw.calls[0]
	if call.req.PhoneNumber != "524427817483" {
		t.Errorf("phone = %q, want normalized 524427817483", call.req.PhoneNumber)
	}
	if call.req.Message != "hola" || call.creds.APIKey != "key" || call.creds.APISecret != "secret" {
		t.Errorf("call = %+v", call)
	}

	var kinds []string
	for len(ch) > 0 {
		kinds = append(kinds, (<-ch).Kind)
	}
	want := []string{bus.KindMessageCreated, bus.KindMessageDispatched}
	if len(kinds) != len(want) || kinds[0] != want[0] || kinds[1] != want[1] {
		t.Errorf("events = %v, want %v", kinds, want)
	}
}

func TestSendWithoutExternalID(t *testing.T) {
	ms := newMemStore()
	d := New(Deps{Messages: ms, Contacts: fakeContacts{phone: "123"}, Settings: &fakeSettings{s: activeSettings}, Gateway: &fakeGateway{}})
	res, err := d.Send(context.Background(), input())
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeDelivered || res.Message.ExternalID != nil {
		t.Errorf("got %+v, want delivered without external id", res)
	}
	if len(ms.attached) != 0 {
		t.Errorf("attach called %d times, want 0", len(ms.attached))
	}
}

func TestSendAttachFailureStillDelivered(t *testing.T) {
	ms := newMemStore()
	ms.attachErr = errors.New("db locked")
	gw := &fakeGateway{result: mind2flow.SendResult{ExternalID: "ext-9"}}
	d := New(Deps{Messages: ms, Contacts: fakeContacts{phone: "123"}, Settings: &fakeSettings{s: activeSettings}, Gateway: gw})

	res, err := d.Send(context.Background(), input())
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeDelivered {
		t.Errorf("outcome = %q, want delivered", res.Outcome)
	}
	if res.Message.Status != status.Sent || res.Message.ExternalID != nil {
		t.Errorf("message = %+v, want sent without external id", res.Message)
	}
}

// TestSendDispatchFailure covers every way the bridge call can fail. The
// message must come back persisted and failed, with no error returned.
func TestSendDispatchFailure(t *testing.T) {
	badEndpoint := *activeSettings
	badEndpoint.APIEndpoint = "not a url"

	tests := []struct {
		name       string
		settings   *store.ChatSettings
		gw         *fakeGateway
		wantReason string
		wantCalls  int
	}{
		{"non-2xx", activeSettings, &fakeGateway{err: &mind2flow.APIError{StatusCode: 502, Body: "bad gateway"}}, "bridge returned http 502", 1},
		{"network error", activeSettings, &fakeGateway{err: errors.New("connection refused")}, "bridge unreachable", 1},
		{"invalid endpoint", &badEndpoint, &fakeGateway{}, "invalid api endpoint", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := newMemStore()
			d := New(Deps{Messages: ms, Contacts: fakeContacts{phone: "123"}, Settings: &fakeSettings{s: tt.settings}, Gateway: tt.gw})

			res, err := d.Send(context.Background(), input())
			if err != nil {
				t.Fatalf("Send() error = %v, want nil", err)
			}
			if res.Message.ID == "" || res.Message.CreatedAt.IsZero() {
				t.Errorf("message not persisted: %+v", res.Message)
			}
			if res.Message.Status != status.Failed {
				t.Errorf("status = %q, want failed", res.Message.Status)
			}
			if res.Outcome != OutcomeSavedNotDelivered {
				t.Errorf("outcome = %q, want saved_not_delivered", res.Outcome)
			}
			if res.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", res.Reason, tt.wantReason)
			}
			if res.DispatchErr == nil {
				t.Error("DispatchErr = nil, want error")
			}
			if len(tt.gw.calls) != tt.wantCalls {
				t.Errorf("gateway calls = %d, want %d", len(tt.gw.calls), tt.wantCalls)
			}
		})
	}
}

func TestSendMarkFailedErrorReturnsLatestMessage(t *testing.T) {
	ms := newMemStore()
	ms.markErr = errors.New("db gone")
	d := New(Deps{Messages: ms, Contacts: fakeContacts{phone: "123"}, Settings: &fakeSettings{s: activeSettings}, Gateway: &fakeGateway{err: errors.New("boom")}})

	res, err := d.Send(context.Background(), input())
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeSavedNotDelivered || res.Message.Status != status.Sent {
		t.Errorf("got outcome %q status %q, want saved_not_delivered with sent", res.Outcome, res.Message.Status)
	}
}

func TestSendNotAttempted(t *testing.T) {
	tests := []struct {
		name     string
		contacts fakeContacts
		settings *fakeSettings
	}{
		{"no settings", fakeContacts{phone: "123"}, &fakeSettings{}},
		{"settings error", fakeContacts{phone: "123"}, &fakeSettings{err: errors.New("db down")}},
		{"no phone", fakeContacts{}, &fakeSettings{s: activeSettings}},
		{"blank phone", fakeContacts{phone: "  "}, &fakeSettings{s: activeSettings}},
		{"contact lookup error", fakeContacts{err: errors.New("db down")}, &fakeSettings{s: activeSettings}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{}
			d := New(Deps{Messages: newMemStore(), Contacts: tt.contacts, Settings: tt.settings, Gateway: gw})
			res, err := d.Send(context.Background(), input())
			if err != nil {
				t.Fatal(err)
			}
			if res.Outcome != OutcomeNotAttempted {
				t.Errorf("outcome = %q, want not_attempted", res.Outcome)
			}
			if res.Message.Status != status.Sent {
				t.Errorf("status = %q, want sent", res.Message.Status)
			}
			if len(gw.calls) != 0 {
				t.Errorf("gateway called %d times, want 0", len(gw.calls))
			}
		})
	}
}

func TestSendPersistFailure(t *testing.T) {
	ms := newMemStore()
	ms.createErr = errors.New("disk full")
	gw := &fakeGateway{}
	d := New(Deps{Messages: ms, Contacts: fakeContacts{phone: "123"}, Settings: &fakeSettings{s: activeSettings}, Gateway: gw})

	res, err := d.Send(context.Background(), input())
	if err == nil {
		t.Fatal("Send() expected error")
	}
	if res != nil {
		t.Errorf("result = %+v, want nil", res)
	}
	if len(gw.calls) != 0 {
		t.Error("gateway called after failed persist")
	}
}

func TestSendInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*SendInput)
	}{
		{"no tenant", func(in *SendInput) { in.TenantID = "" }},
		{"no contact", func(in *SendInput) { in.ContactID = " " }},
		{"no content", func(in *SendInput) { in.Content = "" }},
		{"bad sender", func(in *SendInput) { in.SenderType = "bot" }},
		{"bad type", func(in *SendInput) { in.MessageType = "sticker" }},
		{"bad status", func(in *SendInput) { in.Status = "queued" }},
		{"read status", func(in *SendInput) { in.Status = status.Read }},
		{"failed status", func(in *SendInput) { in.Status = status.Failed }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms := newMemStore()
			d := New(Deps{Messages: ms, Contacts: fakeContacts{}, Settings: &fakeSettings{}, Gateway: &fakeGateway{}})
			in := input()
			tt.mod(&in)
			if _, err := d.Send(context.Background(), in); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Send() error = %v, want ErrInvalidInput", err)
			}
			if len(ms.msgs) != 0 {
				t.Error("message persisted for invalid input")
			}
		})
	}
}

func TestSendDeliveredStatusCanStillFail(t *testing.T) {
	ms := newMemStore()
	gw := &fakeGateway{err: errors.New("connection refused")}
	d := New(Deps{Messages: ms, Contacts: fakeContacts{phone: "123"}, Settings: &fakeSettings{s: activeSettings}, Gateway: gw})

	in := input()
	in.Status = status.Delivered
	res, err := d.Send(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeSavedNotDelivered || res.Message.Status != status.Failed {
		t.Errorf("outcome = %q status = %q, want saved_not_delivered and failed", res.Outcome, res.Message.Status)
	}
}

func TestSendTimeout(t *testing.T) {
	gw := &fakeGateway{block: true}
	d := New(Deps{
		Messages: newMemStore(),
		Contacts: fakeContacts{phone: "123"},
		Settings: &fakeSettings{s: activeSettings},
		Gateway:  gw,
		Timeout:  20 * time.Millisecond,
	})
	res, err := d.Send(context.Background(), input())
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomeSavedNotDelivered || res.Reason != "bridge request timed out" {
		t.Errorf("got outcome %q reason %q, want timeout failure", res.Outcome, res.Reason)
	}
}

// TestSendSurvivesCallerCancel checks that a caller abandoning the request
// after the persist does not stop reconciliation.
func TestSendSurvivesCallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ms := newMemStore()
	gw := &cancelingGateway{cancel: cancel}
	d := New(Deps{Messages: ms, Contacts: fakeContacts{phone: "123"}, Settings: &fakeSettings{s: activeSettings}, Gateway: gw})

	res, err := d.Send(ctx, input())
	if err != nil {
		t.Fatal(err)
	}
	if gw.sawCancel {
		t.Error("gateway context was canceled by the caller")
	}
	if res.Outcome != OutcomeDelivered {
		t.Errorf("outcome = %q, want delivered", res.Outcome)
	}
}

type cancelingGateway struct {
	cancel    context.CancelFunc
	sawCancel bool
}

func (g *cancelingGateway) Send(ctx context.Context, _ mind2flow.Credentials, _ mind2flow.SendRequest) (mind2flow.SendResult, error) {
	g.cancel()
	g.sawCancel = ctx.Err() != nil
	return mind2flow.SendResult{ExternalID: "x"}, nil
}

func TestSendContactSenderDropsSenderID(t *testing.T) {
	rs := &fakeSettings{s: activeSettings}
	d := New(Deps{Messages: newMemStore(), Contacts: fakeContacts{phone: "123"}, Settings: rs, Gateway: &fakeGateway{}})
	in := input()
	in.SenderType = store.SenderContact
	res, err := d.Send(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if res.Message.SenderID != "" || rs.gotUser != "" {
		t.Errorf("sender id = %q, resolved user = %q, want both empty", res.Message.SenderID, rs.gotUser)
	}
}
