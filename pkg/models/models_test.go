package models

import (
	"strings"
	"testing"
	"time"
)

func TestPairKeyIsDirectionIndependent(t *testing.T) {
	if PairKey("alice", "bob") != PairKey("bob", "alice") {
		t.Fatal("pair key depends on direction")
	}
	if PairKey(" alice ", "bob") != PairKey("alice", "bob") {
		t.Fatal("pair key not trimmed")
	}
	if PairKey("alice", "bob") == PairKey("alice", "carol") {
		t.Fatal("distinct pairs collide")
	}
}

func TestRequestStatusIsTerminal(t *testing.T) {
	if RequestStatusPending.IsTerminal() {
		t.Fatal("pending must not be terminal")
	}
	for _, s := range []RequestStatus{RequestStatusAccepted, RequestStatusRejected, RequestStatusCancelled} {
		if !s.IsTerminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
}

func TestDeliveryRank(t *testing.T) {
	order := []DeliveryStatus{DeliveryStatusSending, DeliveryStatusSent, DeliveryStatusDelivered, DeliveryStatusRead}
	for i := 1; i < len(order); i++ {
		if DeliveryRank(order[i]) <= DeliveryRank(order[i-1]) {
			t.Fatalf("rank(%s) <= rank(%s)", order[i], order[i-1])
		}
	}
	if DeliveryRank(DeliveryStatusFailed) != -1 {
		t.Fatal("failed is not part of the ladder")
	}
}

func TestMessagePreviewTruncates(t *testing.T) {
	if got := MessagePreview("  hello  "); got != "hello" {
		t.Fatalf("preview = %q", got)
	}
	long := strings.Repeat("a", 200)
	if got := MessagePreview(long); len(got) != 96 {
		t.Fatalf("preview length = %d", len(got))
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	if NormalizeTimestamp(time.Time{}).IsZero() {
		t.Fatal("zero timestamp not filled")
	}
	loc := time.FixedZone("X", 3600)
	at := time.Date(2025, 6, 1, 13, 0, 0, 0, loc)
	if got := NormalizeTimestamp(at); got.Location() != time.UTC || !got.Equal(at) {
		t.Fatalf("normalized = %v", got)
	}
}
