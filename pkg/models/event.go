package models

import (
	"encoding/json"
	"time"
)

type PushEventType string

const (
	PushEventMessageSent    PushEventType = "message_sent"
	PushEventMessageRead    PushEventType = "message_read"
	PushEventMessageEdited  PushEventType = "message_edited"
	PushEventMessageDeleted PushEventType = "message_deleted"
	PushEventTypingStart    PushEventType = "typing_start"
	PushEventTypingStop     PushEventType = "typing_stop"
)

// PushEvent is the JSON envelope carried on the push channel.
type PushEvent struct {
	Type      PushEventType   `json:"type"`
	ChatID    string          `json:"chatId"`
	UserID    string          `json:"userId"`
	MessageID string          `json:"messageId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
