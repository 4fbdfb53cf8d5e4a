package models

import (
	"strings"
	"time"
)

type ConnectionStatus string

const (
	ConnectionStatusNone            ConnectionStatus = "none"
	ConnectionStatusPendingSent     ConnectionStatus = "pending_sent"
	ConnectionStatusPendingReceived ConnectionStatus = "pending_received"
	ConnectionStatusConnected       ConnectionStatus = "connected"
	ConnectionStatusBlocked         ConnectionStatus = "blocked"
)

// ConnectionEdge is the relationship between the local user and one
// counterpart. Exactly one edge exists per user pair; its status is derived
// from the latest accepted request or block record.
type ConnectionEdge struct {
	ID            string           `json:"id"`
	SubjectID     string           `json:"subject_id"`
	CounterpartID string           `json:"counterpart_id"`
	Status        ConnectionStatus `json:"status"`
	ConnectedAt   time.Time        `json:"connected_at,omitempty"`
	MutualCount   int              `json:"mutual_count,omitempty"`
	Tags          []string         `json:"tags,omitempty"`
	Notes         string           `json:"notes,omitempty"`
}

type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusAccepted  RequestStatus = "accepted"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusCancelled RequestStatus = "cancelled"
)

// IsTerminal reports whether the request can no longer change state.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case RequestStatusAccepted, RequestStatusRejected, RequestStatusCancelled:
		return true
	}
	return false
}

type ConnectionRequest struct {
	ID          string        `json:"id"`
	FromUserID  string        `json:"from_user_id"`
	ToUserID    string        `json:"to_user_id"`
	Status      RequestStatus `json:"status"`
	Message     string        `json:"message,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	RespondedAt time.Time     `json:"responded_at,omitempty"`
	ExpiresAt   time.Time     `json:"expires_at,omitempty"`
}

type BlockRecord struct {
	BlockerID     string    `json:"blocker_id"`
	BlockedUserID string    `json:"blocked_user_id"`
	Reason        string    `json:"reason,omitempty"`
	BlockedAt     time.Time `json:"blocked_at"`
}

type Chat struct {
	ID             string    `json:"id"`
	ParticipantIDs [2]string `json:"participant_ids"`
	LastMessage    *Message  `json:"last_message,omitempty"`
	UnreadCount    int       `json:"unread_count"`
	IsArchived     bool      `json:"is_archived"`
	IsMuted        bool      `json:"is_muted"`
}

type DeliveryStatus string

const (
	DeliveryStatusSending   DeliveryStatus = "sending"
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusRead      DeliveryStatus = "read"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

// DeliveryRank orders delivery states so transitions can be checked for
// monotonicity. failed is a terminal dead-end, not part of the ladder.
func DeliveryRank(s DeliveryStatus) int {
	switch s {
	case DeliveryStatusSending:
		return 0
	case DeliveryStatusSent:
		return 1
	case DeliveryStatusDelivered:
		return 2
	case DeliveryStatusRead:
		return 3
	}
	return -1
}

type MessageType string

const (
	MessageTypeText MessageType = "text"
	MessageTypeCard MessageType = "card"
)

type Message struct {
	ID               string         `json:"id"`
	ChatID           string         `json:"chat_id"`
	SenderID         string         `json:"sender_id"`
	Content          string         `json:"content"`
	Type             MessageType    `json:"type"`
	DeliveryStatus   DeliveryStatus `json:"delivery_status"`
	IsEdited         bool           `json:"is_edited"`
	IsDeleted        bool           `json:"is_deleted"`
	ReplyToMessageID string         `json:"reply_to_message_id,omitempty"`
	SentAt           time.Time      `json:"sent_at"`
}

type NotificationKind string

const (
	NotificationConnectionRequest  NotificationKind = "connection_request"
	NotificationConnectionAccepted NotificationKind = "connection_accepted"
	NotificationConnectionRejected NotificationKind = "connection_rejected"
	NotificationConnectionRemoved  NotificationKind = "connection_removed"
)

type Notification struct {
	ID         string           `json:"id"`
	Kind       NotificationKind `json:"kind"`
	ActorID    string           `json:"actor_id"`
	RequestID  string           `json:"request_id,omitempty"`
	IsRead     bool             `json:"is_read"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// PairKey returns a direction-independent key for a user pair.
func PairKey(a, b string) string {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// MessagePreview trims content for notification/chat-list display.
func MessagePreview(content string) string {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) <= 96 {
		return trimmed
	}
	return trimmed[:96]
}

// NormalizeTimestamp fills a zero timestamp with now and forces UTC.
func NormalizeTimestamp(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now().UTC()
	}
	return ts.UTC()
}
