package privacy

import (
	"path/filepath"
	"testing"

	"linkgrid/go-client/pkg/models"
)

func TestBlocklistStoreUnconfiguredIsMemoryOnly(t *testing.T) {
	store := NewBlocklistStore()
	list, err := store.Bootstrap()
	if err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	if len(list.List()) != 0 {
		t.Fatal("unconfigured store must bootstrap empty")
	}
	if err := store.Persist(list); err != nil {
		t.Fatalf("persist on unconfigured store must be a no-op, got %v", err)
	}
}

func TestBlocklistStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocklist.enc")
	store := NewBlocklistStore()
	store.Configure(path, "passphrase")

	list, err := store.Bootstrap()
	if err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	if err := list.Add(models.BlockRecord{BlockerID: "me", BlockedUserID: "user-a", Reason: "spam"}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := store.Persist(list); err != nil {
		t.Fatalf("persist failed: %v", err)
	}

	reloaded, err := store.Bootstrap()
	if err != nil {
		t.Fatalf("second bootstrap failed: %v", err)
	}
	rec, ok := reloaded.Record("user-a")
	if !ok {
		t.Fatal("persisted record must survive reload")
	}
	if rec.Reason != "spam" {
		t.Fatalf("unexpected reason: %q", rec.Reason)
	}
}

func TestBlocklistStoreWrongSecretFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocklist.enc")
	store := NewBlocklistStore()
	store.Configure(path, "first")
	list, err := store.Bootstrap()
	if err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	_ = list.Add(models.BlockRecord{BlockedUserID: "user-a"})
	if err := store.Persist(list); err != nil {
		t.Fatalf("persist failed: %v", err)
	}

	other := NewBlocklistStore()
	other.Configure(path, "second")
	if _, err := other.Bootstrap(); err == nil {
		t.Fatal("bootstrap with wrong secret must fail")
	}
}
