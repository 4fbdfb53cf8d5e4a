package policy

import (
	"fmt"
	"strings"

	"linkgrid/go-client/internal/domains/contracts"
	"linkgrid/go-client/pkg/models"
)

const maxMessageLen = 4000

// ValidateOutbound fails fast before any network call.
func ValidateOutbound(recipientID, content string, msgType models.MessageType) error {
	if strings.TrimSpace(recipientID) == "" {
		return fmt.Errorf("%w: empty recipient", contracts.ErrValidation)
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: empty message", contracts.ErrValidation)
	}
	if len(content) > maxMessageLen {
		return fmt.Errorf("%w: message exceeds %d characters", contracts.ErrValidation, maxMessageLen)
	}
	switch msgType {
	case models.MessageTypeText, models.MessageTypeCard:
	default:
		return fmt.Errorf("%w: unknown message type %q", contracts.ErrValidation, msgType)
	}
	return nil
}

// CanAdvanceDelivery enforces the monotonic delivery ladder. failed is a
// terminal dead-end reached only from sending; read never regresses.
func CanAdvanceDelivery(from, to models.DeliveryStatus) bool {
	if from == to {
		return false
	}
	if from == models.DeliveryStatusFailed {
		return false
	}
	if to == models.DeliveryStatusFailed {
		return from == models.DeliveryStatusSending
	}
	return models.DeliveryRank(to) > models.DeliveryRank(from)
}

// Less orders messages within a chat: sentAt first, server id as tie-break.
// Local receipt order is never the source of truth.
func Less(a, b models.Message) bool {
	if a.SentAt.Equal(b.SentAt) {
		return a.ID < b.ID
	}
	return a.SentAt.Before(b.SentAt)
}
