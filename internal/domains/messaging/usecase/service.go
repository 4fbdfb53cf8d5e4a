package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"linkgrid/go-client/internal/domains/contracts"
	"linkgrid/go-client/internal/domains/messaging"
	"linkgrid/go-client/internal/domains/messaging/policy"
	"linkgrid/go-client/internal/platform/ratelimiter"
	"linkgrid/go-client/pkg/models"
)

const (
	tempMessagePrefix = "tmp-msg-"
	tempChatPrefix    = "tmp-chat-"
)

// Gateway is the slice of the remote messaging service this domain consumes.
type Gateway interface {
	SendMessage(ctx context.Context, toUserID, chatID, content string, msgType models.MessageType, replyToID string) (models.Message, error)
	ListChats(ctx context.Context) ([]models.Chat, error)
	ListMessages(ctx context.Context, chatID string) ([]models.Message, error)
	MarkMessagesRead(ctx context.Context, chatID string, messageIDs []string) error
	EditMessage(ctx context.Context, messageID, content string) (models.Message, error)
	DeleteMessage(ctx context.Context, messageID string, deleteForAll bool) error
	UpdateChat(ctx context.Context, chatID string, archived, muted bool) error
}

type ServiceDeps struct {
	LocalUserID    string
	Gateway        Gateway
	Store          *messaging.ChatStore
	Typing         *messaging.TypingTracker
	IsBlocked      func(userID string) bool
	PublishTyping  func(chatID string, typing bool) error
	TypingThrottle *ratelimiter.MapLimiter
	Persist        func()
	// RecordSendFailure observes sends that end up parked as failed.
	RecordSendFailure func()
	Logger            *slog.Logger
	Now               func() time.Time
	NewID             func() string
}

// Service is the outbound half of the messaging core: optimistic sends with
// temp-id reconciliation, edits, deletes, read marks and resync after a push
// channel gap.
type Service struct {
	deps ServiceDeps
}

func NewService(deps ServiceDeps) *Service {
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	if deps.NewID == nil {
		deps.NewID = func() string { return uuid.NewString() }
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.IsBlocked == nil {
		deps.IsBlocked = func(string) bool { return false }
	}
	if deps.Persist == nil {
		deps.Persist = func() {}
	}
	if deps.RecordSendFailure == nil {
		deps.RecordSendFailure = func() {}
	}
	return &Service{deps: deps}
}

// SendMessage creates the message optimistically in sending state, then
// swaps in the server record on acknowledgment. A failed send parks the
// message as failed; it is only retried through ResendMessage.
func (s *Service) SendMessage(ctx context.Context, toUserID, content string, msgType models.MessageType, replyToID string) (models.Message, error) {
	if err := policy.ValidateOutbound(toUserID, content, msgType); err != nil {
		return models.Message{}, err
	}
	if s.deps.IsBlocked(toUserID) {
		return models.Message{}, fmt.Errorf("%w: recipient is blocked", contracts.ErrAlreadyBlocked)
	}

	chat := s.deps.Store.EnsureDirectChat(toUserID, func() string {
		return tempChatPrefix + s.deps.NewID()
	})
	temp := models.Message{
		ID:               tempMessagePrefix + s.deps.NewID(),
		ChatID:           chat.ID,
		SenderID:         s.deps.LocalUserID,
		Content:          content,
		Type:             msgType,
		DeliveryStatus:   models.DeliveryStatusSending,
		ReplyToMessageID: replyToID,
		SentAt:           s.deps.Now(),
	}
	if err := s.deps.Store.AppendLocal(temp); err != nil {
		return models.Message{}, err
	}

	wireChatID := chat.ID
	if strings.HasPrefix(wireChatID, tempChatPrefix) {
		wireChatID = ""
	}
	server, err := s.deps.Gateway.SendMessage(ctx, toUserID, wireChatID, content, msgType, replyToID)
	if err != nil {
		s.deps.Store.MarkSendFailed(chat.ID, temp.ID)
		s.deps.RecordSendFailure()
		s.deps.Persist()
		return models.Message{}, err
	}
	if err := s.deps.Store.ReconcileSend(chat.ID, temp.ID, server); err != nil {
		return models.Message{}, contracts.WrapCategorizedError(contracts.ErrorCategoryStorage, err)
	}
	s.deps.Persist()
	finalChatID := chat.ID
	if server.ChatID != "" {
		finalChatID = server.ChatID
	}
	reconciled, _ := s.deps.Store.Message(finalChatID, server.ID)
	return reconciled, nil
}

// ResendMessage retires a failed record and issues a fresh send with a new
// temp id. Reusing the failed id would make duplicate detection impossible.
func (s *Service) ResendMessage(ctx context.Context, chatID, messageID string) (models.Message, error) {
	msg, ok := s.deps.Store.Message(chatID, messageID)
	if !ok {
		return models.Message{}, fmt.Errorf("%w: message %s", contracts.ErrNotFound, messageID)
	}
	if msg.DeliveryStatus != models.DeliveryStatusFailed {
		return models.Message{}, fmt.Errorf("%w: only failed messages can be resent", contracts.ErrInvalidTransition)
	}
	chat, ok := s.deps.Store.Chat(chatID)
	if !ok {
		return models.Message{}, fmt.Errorf("%w: chat %s", contracts.ErrNotFound, chatID)
	}
	counterpart := chat.ParticipantIDs[0]
	if counterpart == s.deps.LocalUserID {
		counterpart = chat.ParticipantIDs[1]
	}
	s.deps.Store.RemoveMessage(chatID, messageID)
	return s.SendMessage(ctx, counterpart, msg.Content, msg.Type, msg.ReplyToMessageID)
}

// EditMessage replaces content on an own, not yet deleted message. The
// server response wins over the local copy.
func (s *Service) EditMessage(ctx context.Context, chatID, messageID, content string) (models.Message, error) {
	msg, ok := s.deps.Store.Message(chatID, messageID)
	if !ok {
		return models.Message{}, fmt.Errorf("%w: message %s", contracts.ErrNotFound, messageID)
	}
	if msg.SenderID != s.deps.LocalUserID {
		return models.Message{}, fmt.Errorf("%w: can only edit own messages", contracts.ErrValidation)
	}
	if msg.IsDeleted {
		return models.Message{}, fmt.Errorf("%w: message is deleted", contracts.ErrInvalidTransition)
	}
	if strings.TrimSpace(content) == "" {
		return models.Message{}, fmt.Errorf("%w: empty message", contracts.ErrValidation)
	}

	server, err := s.deps.Gateway.EditMessage(ctx, messageID, content)
	if err != nil {
		return models.Message{}, err
	}
	s.deps.Store.ApplyEdit(chatID, messageID, server.Content)
	s.deps.Persist()
	edited, _ := s.deps.Store.Message(chatID, messageID)
	return edited, nil
}

// DeleteMessage soft-deletes. deleteForAll removes content for both sides;
// otherwise the message is only hidden locally.
func (s *Service) DeleteMessage(ctx context.Context, chatID, messageID string, deleteForAll bool) error {
	if _, ok := s.deps.Store.Message(chatID, messageID); !ok {
		return fmt.Errorf("%w: message %s", contracts.ErrNotFound, messageID)
	}
	if err := s.deps.Gateway.DeleteMessage(ctx, messageID, deleteForAll); err != nil {
		return err
	}
	s.deps.Store.ApplyDelete(chatID, messageID, deleteForAll)
	s.deps.Persist()
	return nil
}

// MarkChatRead zeroes the local unread counter and reports the read marker
// upstream. A gateway failure is returned but the local state stays read;
// the next resync converges both sides.
func (s *Service) MarkChatRead(ctx context.Context, chatID string) error {
	var inboundIDs []string
	for _, msg := range s.deps.Store.Messages(chatID) {
		if msg.SenderID != s.deps.LocalUserID {
			inboundIDs = append(inboundIDs, msg.ID)
		}
	}
	if _, err := s.deps.Store.MarkChatRead(chatID); err != nil {
		return err
	}
	s.deps.Persist()
	if len(inboundIDs) == 0 {
		return nil
	}
	return s.deps.Gateway.MarkMessagesRead(ctx, chatID, inboundIDs)
}

// SetTyping reports the local typing state. Events are throttled per chat
// and failures only logged; typing is ephemeral by contract.
func (s *Service) SetTyping(chatID string, typing bool) {
	if s.deps.PublishTyping == nil {
		return
	}
	if typing && !s.deps.TypingThrottle.Allow(chatID, s.deps.Now()) {
		return
	}
	if err := s.deps.PublishTyping(chatID, typing); err != nil {
		s.deps.Logger.Debug("typing publish failed", "error", err)
	}
}

func (s *Service) SetArchived(ctx context.Context, chatID string, archived bool) error {
	chat, ok := s.deps.Store.Chat(chatID)
	if !ok {
		return fmt.Errorf("%w: chat %s", contracts.ErrNotFound, chatID)
	}
	if err := s.deps.Gateway.UpdateChat(ctx, chatID, archived, chat.IsMuted); err != nil {
		return err
	}
	if err := s.deps.Store.SetArchived(chatID, archived); err != nil {
		return err
	}
	s.deps.Persist()
	return nil
}

func (s *Service) SetMuted(ctx context.Context, chatID string, muted bool) error {
	chat, ok := s.deps.Store.Chat(chatID)
	if !ok {
		return fmt.Errorf("%w: chat %s", contracts.ErrNotFound, chatID)
	}
	if err := s.deps.Gateway.UpdateChat(ctx, chatID, chat.IsArchived, muted); err != nil {
		return err
	}
	if err := s.deps.Store.SetMuted(chatID, muted); err != nil {
		return err
	}
	s.deps.Persist()
	return nil
}

func (s *Service) Chats() []models.Chat {
	return s.deps.Store.Chats()
}

func (s *Service) Messages(chatID string) []models.Message {
	return s.deps.Store.Messages(chatID)
}

func (s *Service) Typists(chatID string) []string {
	if s.deps.Typing == nil {
		return nil
	}
	return s.deps.Typing.Typists(chatID)
}

// Resync re-fetches authoritative chat state after a push channel gap.
// Missed events are not retransmitted, so any chat whose server tail
// differs from the local view, and any chat with unacknowledged sends, is
// re-fetched in full.
func (s *Service) Resync(ctx context.Context) error {
	serverChats, err := s.deps.Gateway.ListChats(ctx)
	if err != nil {
		return err
	}

	stale := make(map[string]bool)
	for _, msg := range s.deps.Store.PendingSends() {
		stale[msg.ChatID] = true
	}
	serverUnread := make(map[string]int, len(serverChats))
	for _, chat := range serverChats {
		s.deps.Store.UpsertChat(chat)
		serverUnread[chat.ID] = chat.UnreadCount
		if chat.LastMessage == nil {
			continue
		}
		if _, ok := s.deps.Store.Message(chat.ID, chat.LastMessage.ID); !ok {
			stale[chat.ID] = true
		}
	}

	for chatID := range stale {
		if strings.HasPrefix(chatID, tempChatPrefix) {
			continue
		}
		msgs, err := s.deps.Gateway.ListMessages(ctx, chatID)
		if err != nil {
			return err
		}
		for _, msg := range msgs {
			s.deps.Store.ApplyHistory(msg)
		}
		if unread, ok := serverUnread[chatID]; ok {
			s.deps.Store.AdoptUnread(chatID, unread)
		}
	}
	s.deps.Persist()
	return nil
}
