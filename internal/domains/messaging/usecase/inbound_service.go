package usecase

import (
	"encoding/json"
	"log/slog"

	"linkgrid/go-client/internal/domains/messaging"
	"linkgrid/go-client/pkg/models"
)

type InboundDeps struct {
	LocalUserID string
	Store       *messaging.ChatStore
	Typing      *messaging.TypingTracker
	IsBlocked   func(userID string) bool
	Persist     func()
	RecordEvent func(eventType string)
	Logger      *slog.Logger
}

// InboundService applies push channel events to local state. It is the only
// writer driven by the network; the UI never mutates state from events
// directly.
type InboundService struct {
	deps InboundDeps
}

func NewInboundService(deps InboundDeps) *InboundService {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.IsBlocked == nil {
		deps.IsBlocked = func(string) bool { return false }
	}
	if deps.Persist == nil {
		deps.Persist = func() {}
	}
	if deps.RecordEvent == nil {
		deps.RecordEvent = func(string) {}
	}
	return &InboundService{deps: deps}
}

// HandleEvent dispatches one event. Events from blocked users are dropped
// before touching any store; unknown event types are logged and skipped so a
// newer server never breaks an older client.
func (s *InboundService) HandleEvent(ev models.PushEvent) {
	if ev.UserID != "" && ev.UserID != s.deps.LocalUserID && s.deps.IsBlocked(ev.UserID) {
		s.deps.Logger.Debug("dropped event from blocked user", "type", string(ev.Type))
		return
	}
	s.deps.RecordEvent(string(ev.Type))

	switch ev.Type {
	case models.PushEventMessageSent:
		s.handleMessageSent(ev)
	case models.PushEventMessageRead:
		s.handleMessageRead(ev)
	case models.PushEventMessageEdited:
		s.handleMessageEdited(ev)
	case models.PushEventMessageDeleted:
		s.handleMessageDeleted(ev)
	case models.PushEventTypingStart:
		s.handleTyping(ev, true)
	case models.PushEventTypingStop:
		s.handleTyping(ev, false)
	default:
		s.deps.Logger.Warn("unknown push event type", "type", string(ev.Type))
	}
}

func (s *InboundService) handleMessageSent(ev models.PushEvent) {
	var msg models.Message
	if err := json.Unmarshal(ev.Data, &msg); err != nil {
		s.deps.Logger.Error("malformed message_sent payload", "error", err)
		return
	}
	if msg.ChatID == "" {
		msg.ChatID = ev.ChatID
	}
	if msg.ID == "" {
		msg.ID = ev.MessageID
	}
	// A pushed message has reached this device, so it is at least delivered.
	if msg.DeliveryStatus == "" || msg.DeliveryStatus == models.DeliveryStatusSending {
		msg.DeliveryStatus = models.DeliveryStatusDelivered
	}
	s.deps.Store.ApplyRemote(msg)
	if s.deps.Typing != nil && msg.SenderID != s.deps.LocalUserID {
		// A delivered message implies the sender stopped typing.
		s.deps.Typing.Stop(msg.ChatID, msg.SenderID)
	}
	s.deps.Persist()
}

func (s *InboundService) handleMessageRead(ev models.PushEvent) {
	if ev.MessageID != "" {
		s.deps.Store.AdvanceDelivery(ev.ChatID, ev.MessageID, models.DeliveryStatusRead)
		s.deps.Persist()
		return
	}
	// Without a message id the counterpart read the whole chat.
	for _, msg := range s.deps.Store.Messages(ev.ChatID) {
		if msg.SenderID == s.deps.LocalUserID {
			s.deps.Store.AdvanceDelivery(ev.ChatID, msg.ID, models.DeliveryStatusRead)
		}
	}
	s.deps.Persist()
}

func (s *InboundService) handleMessageEdited(ev models.PushEvent) {
	var payload struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		s.deps.Logger.Error("malformed message_edited payload", "error", err)
		return
	}
	if !s.deps.Store.ApplyEdit(ev.ChatID, ev.MessageID, payload.Content) {
		s.deps.Logger.Debug("edit for unknown message ignored")
		return
	}
	s.deps.Persist()
}

func (s *InboundService) handleMessageDeleted(ev models.PushEvent) {
	forAll := true
	if len(ev.Data) > 0 {
		var payload struct {
			DeleteForAll bool `json:"deleteForAll"`
		}
		if err := json.Unmarshal(ev.Data, &payload); err == nil {
			forAll = payload.DeleteForAll
		}
	}
	if !s.deps.Store.ApplyDelete(ev.ChatID, ev.MessageID, forAll) {
		s.deps.Logger.Debug("delete for unknown message ignored")
		return
	}
	s.deps.Persist()
}

func (s *InboundService) handleTyping(ev models.PushEvent, start bool) {
	if s.deps.Typing == nil || ev.UserID == s.deps.LocalUserID {
		return
	}
	if start {
		s.deps.Typing.Start(ev.ChatID, ev.UserID)
	} else {
		s.deps.Typing.Stop(ev.ChatID, ev.UserID)
	}
}
