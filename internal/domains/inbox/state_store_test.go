package inbox

import (
	"path/filepath"
	"testing"
	"time"

	"linkgrid/go-client/pkg/models"
)

func TestFeedStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifications.enc")
	store := NewFeedStore()
	store.Configure(path, "secret")

	feed, err := store.Bootstrap()
	if err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	feed.Append(models.Notification{
		ID:         "n1",
		Kind:       models.NotificationConnectionAccepted,
		ActorID:    "bob",
		OccurredAt: time.Now().UTC(),
	})
	feed.MarkRead([]string{"n1"})
	feed.Append(models.Notification{
		ID:         "n2",
		Kind:       models.NotificationConnectionRequest,
		ActorID:    "carol",
		OccurredAt: time.Now().UTC(),
	})
	if err := store.Persist(feed); err != nil {
		t.Fatalf("persist failed: %v", err)
	}

	reloaded, err := store.Bootstrap()
	if err != nil {
		t.Fatalf("second bootstrap failed: %v", err)
	}
	if got := reloaded.Len(); got != 2 {
		t.Fatalf("len=%d want=2", got)
	}
	if got := reloaded.UnreadCount(); got != 1 {
		t.Fatalf("unread=%d want=1, read flags must survive reload", got)
	}
}

func TestFeedStoreUnconfigured(t *testing.T) {
	store := NewFeedStore()
	feed, err := store.Bootstrap()
	if err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	if feed.Len() != 0 {
		t.Fatal("unconfigured store must bootstrap empty")
	}
	if err := store.Persist(feed); err != nil {
		t.Fatalf("persist must be a no-op, got %v", err)
	}
}
