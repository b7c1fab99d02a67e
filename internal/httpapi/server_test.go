package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/matheus3301/flowchat/internal/api"
	"github.com/matheus3301/flowchat/internal/bus"
	"github.com/matheus3301/flowchat/internal/dispatch"
	"github.com/matheus3301/flowchat/internal/ingest"
	"github.com/matheus3301/flowchat/internal/mind2flow"
	"github.com/matheus3301/flowchat/internal/rpc"
	"github.com/matheus3301/flowchat/internal/settings"
	"github.com/matheus3301/flowchat/internal/store"
	"github.com/matheus3301/flowchat/internal/unread"
)

type fixture struct {
	handler http.Handler
	bridge  *httptest.Server

	mu   sync.Mutex
	sent []map[string]string
}

func (f *fixture) bridgeCalls() []map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]string(nil), f.sent...)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{}
	f.bridge = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/test") {
			if r.Header.Get("X-API-Key") != "k" {
				http.Error(w, "bad key", http.StatusUnauthorized)
			}
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.sent = append(f.sent, body)
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"id":"ext-1"}`))
	}))
	t.Cleanup(f.bridge.Close)

	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	b := bus.New()
	client := mind2flow.New(nil, 0)
	resolver := settings.NewResolver(db, client, nil)
	d := dispatch.New(dispatch.Deps{Messages: db, Contacts: db, Settings: resolver, Gateway: client, Bus: b})
	srv := New(Services{
		Messages: api.NewMessageService(db, d, unread.New(db, b, nil), ingest.NewEngine(db, nil, b, nil), b),
		Settings: api.NewSettingsService(resolver, nil),
		Contacts: api.NewContactService(db),
		Bus:      b,
	}, nil)
	f.handler = srv.Handler()
	return f
}

func (f *fixture) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestSendFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/tenants/t1/contacts", "", contactBody{Name: "Ana", Phone: "5214427817483"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create contact status = %d: %s", rec.Code, rec.Body)
	}
	contact := decode[rpc.ContactResponse](t, rec).Contact

	// Without settings the message is stored but not attempted.
	rec = f.do(t, http.MethodPost, "/v1/tenants/t1/contacts/"+contact.ID+"/messages", "u1", sendBody{Content: "hola"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("send status = %d: %s", rec.Code, rec.Body)
	}
	sent := decode[rpc.SendMessageResponse](t, rec)
	if sent.Outcome != string(dispatch.OutcomeNotAttempted) || sent.Message.Status != "sent" {
		t.Errorf("send without settings = %+v", sent)
	}

	rec = f.do(t, http.MethodPut, "/v1/tenants/t1/settings", "", rpc.ChatSettings{APIEndpoint: f.bridge.URL, APIKey: "k", APISecret: "s", IsActive: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("save settings status = %d: %s", rec.Code, rec.Body)
	}
	saved := decode[rpc.SettingsResponse](t, rec).Settings
	if saved.APISecret != "" || !saved.APISecretSet {
		t.Errorf("settings response leaked or lost the secret: %+v", saved)
	}

	rec = f.do(t, http.MethodPost, "/v1/tenants/t1/contacts/"+contact.ID+"/messages", "u1", sendBody{Content: "de nuevo"})
	sent = decode[rpc.SendMessageResponse](t, rec)
	if sent.Outcome != string(dispatch.OutcomeDelivered) || sent.Message.ExternalID != "ext-1" {
		t.Errorf("send with settings = %+v", sent)
	}
	if calls := f.bridgeCalls(); len(calls) != 1 || calls[0]["phoneNumber"] != "524427817483" || calls[0]["apiSecret"] != "s" {
		t.Errorf("bridge received %v", calls)
	}

	rec = f.do(t, http.MethodGet, "/v1/tenants/t1/contacts/"+contact.ID+"/messages?limit=1", "", nil)
	page := decode[rpc.ListMessagesResponse](t, rec)
	if len(page.Messages) != 1 || !page.HasMore || page.NextBeforeID != page.Messages[0].ID {
		t.Fatalf("page = %+v, want one message, more, and a cursor", page)
	}
	next := fmt.Sprintf("/v1/tenants/t1/contacts/%s/messages?limit=1&before=%d&before_id=%s",
		contact.ID, page.NextBeforeUnixMs, page.NextBeforeID)
	rec = f.do(t, http.MethodGet, next, "", nil)
	page2 := decode[rpc.ListMessagesResponse](t, rec)
	if len(page2.Messages) != 1 || page2.HasMore || page2.Messages[0].ID == page.Messages[0].ID {
		t.Errorf("second page = %+v, want the other message and no more", page2)
	}
}

func TestUnreadFlow(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPut, "/v1/tenants/t1/contacts/c1", "", contactBody{Name: "Ana", Phone: "5511999990000"})

	for _, ext := range []string{"w1", "w2", "w2"} {
		rec := f.do(t, http.MethodPost, "/v1/tenants/t1/inbound", "", rpc.RecordInboundRequest{Phone: "5511999990000", Content: "oi", ExternalID: ext})
		if rec.Code != http.StatusCreated && rec.Code != http.StatusOK {
			t.Fatalf("inbound status = %d: %s", rec.Code, rec.Body)
		}
	}

	rec := f.do(t, http.MethodGet, "/v1/tenants/t1/contacts/c1/unread", "", nil)
	if got := decode[rpc.GetUnreadCountResponse](t, rec).Count; got != 2 {
		t.Errorf("unread = %d, want 2", got)
	}
	rec = f.do(t, http.MethodGet, "/v1/tenants/t1/unread", "", nil)
	if got := decode[rpc.ListUnreadResponse](t, rec).Counts; got["c1"] != 2 {
		t.Errorf("unread by contact = %v, want c1:2", got)
	}

	rec = f.do(t, http.MethodPost, "/v1/tenants/t1/contacts/c1/read", "", nil)
	if rec.Code != http.StatusAccepted {
		t.Errorf("mark read status = %d, want 202", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/v1/tenants/t1/contacts/c1/unread", "", nil)
	if got := decode[rpc.GetUnreadCountResponse](t, rec).Count; got != 0 {
		t.Errorf("unread after mark = %d, want 0", got)
	}
}

func TestMarkReadIsTenantScoped(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPut, "/v1/tenants/t1/contacts/c1", "", contactBody{Name: "Ana", Phone: "5511999990000"})
	rec := f.do(t, http.MethodPost, "/v1/tenants/t1/inbound", "", rpc.RecordInboundRequest{Phone: "5511999990000", Content: "oi"})
	msg := decode[rpc.RecordInboundResponse](t, rec).Message

	rec = f.do(t, http.MethodPost, "/v1/tenants/t2/messages/"+msg.ID+"/read", "", nil)
	if rec.Code != http.StatusAccepted {
		t.Errorf("mark read status = %d, want 202", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/v1/tenants/t1/contacts/c1/unread", "", nil)
	if got := decode[rpc.GetUnreadCountResponse](t, rec).Count; got != 1 {
		t.Errorf("unread after other tenant's mark = %d, want 1", got)
	}

	f.do(t, http.MethodPost, "/v1/tenants/t1/messages/"+msg.ID+"/read", "", nil)
	rec = f.do(t, http.MethodGet, "/v1/tenants/t1/contacts/c1/unread", "", nil)
	if got := decode[rpc.GetUnreadCountResponse](t, rec).Count; got != 0 {
		t.Errorf("unread after own mark = %d, want 0", got)
	}
}

func TestSaveSettingsSecret(t *testing.T) {
	f := newFixture(t)
	put := func(body settingsBody) *rpc.ChatSettings {
		t.Helper()
		rec := f.do(t, http.MethodPut, "/v1/tenants/t1/settings", "", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("save settings status = %d: %s", rec.Code, rec.Body)
		}
		return decode[rpc.SettingsResponse](t, rec).Settings
	}
	base := rpc.ChatSettings{APIEndpoint: f.bridge.URL, APIKey: "k", IsActive: true}

	withSecret := base
	withSecret.APISecret = "s"
	if got := put(settingsBody{ChatSettings: withSecret}); !got.APISecretSet {
		t.Fatalf("secret not stored: %+v", got)
	}
	if got := put(settingsBody{ChatSettings: base}); !got.APISecretSet {
		t.Errorf("omitted secret dropped the stored one: %+v", got)
	}
	if got := put(settingsBody{ChatSettings: base, ClearSecret: true}); got.APISecretSet {
		t.Errorf("clear_secret kept the secret: %+v", got)
	}

	rec := f.do(t, http.MethodPut, "/v1/tenants/t1/settings", "", settingsBody{ChatSettings: withSecret, ClearSecret: true})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("secret with clear_secret status = %d, want 400", rec.Code)
	}
}

func TestSettingsResolutionAndTest(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/v1/tenants/t1/settings/resolved", "u1", nil)
	if got := decode[rpc.ResolveSettingsResponse](t, rec); got.Settings != nil || got.Source != "" {
		t.Errorf("resolved without rows = %+v", got)
	}

	f.do(t, http.MethodPut, "/v1/tenants/t1/settings", "", rpc.ChatSettings{APIEndpoint: f.bridge.URL, APIKey: "k", IsActive: true})
	f.do(t, http.MethodPut, "/v1/tenants/t1/settings", "u1", rpc.ChatSettings{APIEndpoint: f.bridge.URL, APIKey: "wrong", IsActive: true})

	rec = f.do(t, http.MethodGet, "/v1/tenants/t1/settings/resolved", "u1", nil)
	if got := decode[rpc.ResolveSettingsResponse](t, rec); got.Source != "personal" {
		t.Errorf("source = %q, want personal", got.Source)
	}
	rec = f.do(t, http.MethodGet, "/v1/tenants/t1/settings/resolved", "u2", nil)
	if got := decode[rpc.ResolveSettingsResponse](t, rec); got.Source != "tenant" {
		t.Errorf("source for other user = %q, want tenant", got.Source)
	}

	rec = f.do(t, http.MethodPost, "/v1/tenants/t1/settings/test", "u1", nil)
	if got := decode[rpc.TestConnectionResponse](t, rec); got.OK || got.Error == "" {
		t.Errorf("test with wrong key = %+v, want failure", got)
	}
	rec = f.do(t, http.MethodPost, "/v1/tenants/t1/settings/test", "u2", nil)
	if got := decode[rpc.TestConnectionResponse](t, rec); !got.OK {
		t.Errorf("test with tenant key = %+v, want ok", got)
	}
}

func TestErrorMapping(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"missing contact", http.MethodGet, "/v1/tenants/t1/contacts/nope", nil, http.StatusNotFound},
		{"missing settings", http.MethodGet, "/v1/tenants/t1/settings", nil, http.StatusNotFound},
		{"empty message", http.MethodPost, "/v1/tenants/t1/contacts/c1/messages", sendBody{}, http.StatusBadRequest},
		{"bad endpoint", http.MethodPut, "/v1/tenants/t1/settings", rpc.ChatSettings{APIEndpoint: "ftp://x"}, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/v1/tenants/t1/contacts/c1/messages?limit=many", nil, http.StatusBadRequest},
		{"unknown inbound contact", http.MethodPost, "/v1/tenants/t1/inbound", rpc.RecordInboundRequest{Phone: "1", Content: "x"}, http.StatusPreconditionFailed},
		{"test without settings", http.MethodPost, "/v1/tenants/t1/settings/test", nil, http.StatusPreconditionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, "", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body)
			}
			if rec.Code >= 400 {
				body := decode[errorBody](t, rec)
				if body.Error.Code == "" || body.Error.Message == "" {
					t.Errorf("error body = %s", rec.Body)
				}
			}
		})
	}
}
