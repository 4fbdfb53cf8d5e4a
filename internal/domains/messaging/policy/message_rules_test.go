package policy

import (
	"errors"
	"strings"
	"testing"
	"time"

	"linkgrid/go-client/internal/domains/contracts"
	"linkgrid/go-client/pkg/models"
)

func TestValidateOutbound(t *testing.T) {
	cases := []struct {
		name      string
		recipient string
		content   string
		msgType   models.MessageType
		wantErr   bool
	}{
		{"valid text", "bob", "hello", models.MessageTypeText, false},
		{"valid card", "bob", "{\"profile\":\"bob\"}", models.MessageTypeCard, false},
		{"empty recipient", "  ", "hello", models.MessageTypeText, true},
		{"empty content", "bob", "   ", models.MessageTypeText, true},
		{"too long", "bob", strings.Repeat("x", 4001), models.MessageTypeText, true},
		{"max length ok", "bob", strings.Repeat("x", 4000), models.MessageTypeText, false},
		{"unknown type", "bob", "hello", models.MessageType("sticker"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateOutbound(tc.recipient, tc.content, tc.msgType)
			if tc.wantErr {
				if !errors.Is(err, contracts.ErrValidation) {
					t.Fatalf("err = %v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCanAdvanceDelivery(t *testing.T) {
	allowed := []struct{ from, to models.DeliveryStatus }{
		{models.DeliveryStatusSending, models.DeliveryStatusSent},
		{models.DeliveryStatusSending, models.DeliveryStatusDelivered},
		{models.DeliveryStatusSending, models.DeliveryStatusRead},
		{models.DeliveryStatusSending, models.DeliveryStatusFailed},
		{models.DeliveryStatusSent, models.DeliveryStatusDelivered},
		{models.DeliveryStatusSent, models.DeliveryStatusRead},
		{models.DeliveryStatusDelivered, models.DeliveryStatusRead},
	}
	for _, tc := range allowed {
		if !CanAdvanceDelivery(tc.from, tc.to) {
			t.Errorf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	refused := []struct{ from, to models.DeliveryStatus }{
		{models.DeliveryStatusSent, models.DeliveryStatusSending},
		{models.DeliveryStatusRead, models.DeliveryStatusDelivered},
		{models.DeliveryStatusRead, models.DeliveryStatusRead},
		{models.DeliveryStatusSent, models.DeliveryStatusFailed},
		{models.DeliveryStatusDelivered, models.DeliveryStatusFailed},
		{models.DeliveryStatusFailed, models.DeliveryStatusSent},
		{models.DeliveryStatusFailed, models.DeliveryStatusRead},
	}
	for _, tc := range refused {
		if CanAdvanceDelivery(tc.from, tc.to) {
			t.Errorf("%s -> %s should be refused", tc.from, tc.to)
		}
	}
}

func TestLessOrdersBySentAtThenID(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := models.Message{ID: "a", SentAt: at}
	b := models.Message{ID: "b", SentAt: at}
	later := models.Message{ID: "0", SentAt: at.Add(time.Second)}

	if !Less(a, b) || Less(b, a) {
		t.Fatal("equal timestamps must tie-break on id")
	}
	if !Less(a, later) {
		t.Fatal("earlier sentAt must sort first regardless of id")
	}
	if Less(later, a) {
		t.Fatal("later sentAt sorted first")
	}
}
