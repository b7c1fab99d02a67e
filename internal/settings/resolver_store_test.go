package settings

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/matheus3301/flowchat/internal/store"
)

// TestResolveAgainstStore runs the precedence rules on a real database.
func TestResolveAgainstStore(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	r := NewResolver(db, nil, nil)

	if _, err := r.Save(ctx, &store.ChatSettings{TenantID: "t1", APIEndpoint: "https://tenant.example", IsActive: true}); err != nil {
		t.Fatal(err)
	}
	got, err := r.ResolveForSending(ctx, "t1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || !got.IsTenantDefault() {
		t.Fatalf("got %+v, want tenant default", got)
	}

	if _, err := r.Save(ctx, &store.ChatSettings{TenantID: "t1", UserID: "u1", APIEndpoint: "https://personal.example", IsActive: true}); err != nil {
		t.Fatal(err)
	}
	got, err = r.ResolveForSending(ctx, "t1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.UserID != "u1" {
		t.Fatalf("got %+v, want personal row", got)
	}

	// Deactivating the personal row falls back again.
	if _, err := r.Save(ctx, &store.ChatSettings{TenantID: "t1", UserID: "u1", APIEndpoint: "https://personal.example", IsActive: false}); err != nil {
		t.Fatal(err)
	}
	got, err = r.ResolveForSending(ctx, "t1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || !got.IsTenantDefault() {
		t.Errorf("got %+v, want tenant default after deactivation", got)
	}
}
