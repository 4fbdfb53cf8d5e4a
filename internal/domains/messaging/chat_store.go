package messaging

import (
	"fmt"
	"sort"
	"sync"

	"linkgrid/go-client/internal/domains/contracts"
	"linkgrid/go-client/internal/domains/messaging/policy"
	"linkgrid/go-client/pkg/models"
)

// ChatStore is the normalized local view of chats and messages. Optimistic
// sends and authoritative server state flow through the same named mutations;
// there is no in-place concurrent mutation anywhere else.
//
// Ordering inside a chat follows sentAt with server id as tie-break. The one
// exception is reconciliation of an optimistic send: the acknowledged record
// replaces the temp record at the same list position, so the UI never sees a
// duplicate or a jump.
type ChatStore struct {
	mu          sync.RWMutex
	localUserID string
	chats       map[string]models.Chat
	chatByPair  map[string]string
	messages    map[string][]models.Message
	index       map[string]map[string]int // chat id -> message id -> position
}

func NewChatStore(localUserID string) *ChatStore {
	return &ChatStore{
		localUserID: localUserID,
		chats:       make(map[string]models.Chat),
		chatByPair:  make(map[string]string),
		messages:    make(map[string][]models.Message),
		index:       make(map[string]map[string]int),
	}
}

func (s *ChatStore) LocalUserID() string {
	return s.localUserID
}

// UpsertChat installs or refreshes a chat. UnreadCount is owned by this
// store, so an existing local counter survives server refreshes.
func (s *ChatStore) UpsertChat(chat models.Chat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.chats[chat.ID]; ok {
		chat.UnreadCount = existing.UnreadCount
	}
	s.chats[chat.ID] = chat
	s.chatByPair[models.PairKey(chat.ParticipantIDs[0], chat.ParticipantIDs[1])] = chat.ID
}

func (s *ChatStore) Chat(chatID string) (models.Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chat, ok := s.chats[chatID]
	return chat, ok
}

func (s *ChatStore) ChatWithUser(counterpartID string) (models.Chat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.chatByPair[models.PairKey(s.localUserID, counterpartID)]
	if !ok {
		return models.Chat{}, false
	}
	chat, ok := s.chats[id]
	return chat, ok
}

// Chats lists all chats, most recent activity first.
func (s *ChatStore) Chats() []models.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Chat, 0, len(s.chats))
	for _, chat := range s.chats {
		out = append(out, chat)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.LastMessage == nil && b.LastMessage == nil:
			return a.ID < b.ID
		case a.LastMessage == nil:
			return false
		case b.LastMessage == nil:
			return true
		case a.LastMessage.SentAt.Equal(b.LastMessage.SentAt):
			return a.ID < b.ID
		default:
			return a.LastMessage.SentAt.After(b.LastMessage.SentAt)
		}
	})
	return out
}

func (s *ChatStore) Messages(chatID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[chatID]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out
}

func (s *ChatStore) Message(chatID, messageID string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.position(chatID, messageID)
	if !ok {
		return models.Message{}, false
	}
	return s.messages[chatID][pos], true
}

// EnsureDirectChat returns the chat with the counterpart, creating a local
// placeholder (temporary id) when the first message is about to be sent.
func (s *ChatStore) EnsureDirectChat(counterpartID string, newID func() string) models.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := models.PairKey(s.localUserID, counterpartID)
	if id, ok := s.chatByPair[key]; ok {
		return s.chats[id]
	}
	chat := models.Chat{
		ID:             newID(),
		ParticipantIDs: [2]string{s.localUserID, counterpartID},
	}
	s.chats[chat.ID] = chat
	s.chatByPair[key] = chat.ID
	return chat
}

// AppendLocal adds an optimistic outbound message at the end of the chat.
func (s *ChatStore) AppendLocal(msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chats[msg.ChatID]; !ok {
		return fmt.Errorf("%w: chat %s", contracts.ErrNotFound, msg.ChatID)
	}
	if _, ok := s.position(msg.ChatID, msg.ID); ok {
		return fmt.Errorf("%w: message id %s already present", contracts.ErrConflict, msg.ID)
	}
	s.messages[msg.ChatID] = append(s.messages[msg.ChatID], msg)
	s.setPosition(msg.ChatID, msg.ID, len(s.messages[msg.ChatID])-1)
	s.refreshLastMessageLocked(msg.ChatID)
	return nil
}

// ReconcileSend swaps the temp id for the server record in place. The list
// position is preserved; only the record content changes. When the server
// assigned a different chat id (first message of a new chat), the whole chat
// is re-keyed.
func (s *ChatStore) ReconcileSend(chatID, tempID string, server models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if server.ChatID != "" && server.ChatID != chatID {
		if err := s.rekeyChatLocked(chatID, server.ChatID); err != nil {
			return err
		}
		chatID = server.ChatID
	}
	pos, ok := s.position(chatID, tempID)
	if !ok {
		return fmt.Errorf("%w: message %s", contracts.ErrNotFound, tempID)
	}
	if _, echoed := s.position(chatID, server.ID); echoed && server.ID != tempID {
		// The push echo of this send landed before the HTTP ack, so the
		// server record is already in place. Retire the temp record; swapping
		// would install the same id twice.
		s.messages[chatID] = append(s.messages[chatID][:pos], s.messages[chatID][pos+1:]...)
		delete(s.index[chatID], tempID)
		s.reindexFromLocked(chatID, pos)
		s.refreshLastMessageLocked(chatID)
		return nil
	}
	server.ChatID = chatID
	if server.DeliveryStatus == "" || server.DeliveryStatus == models.DeliveryStatusSending {
		server.DeliveryStatus = models.DeliveryStatusSent
	}
	s.messages[chatID][pos] = server
	delete(s.index[chatID], tempID)
	s.setPosition(chatID, server.ID, pos)
	s.refreshLastMessageLocked(chatID)
	return nil
}

// MarkSendFailed parks an optimistic message in the terminal failed state.
// It is never retried without a new user action.
func (s *ChatStore) MarkSendFailed(chatID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.position(chatID, messageID)
	if !ok {
		return false
	}
	msg := s.messages[chatID][pos]
	if !policy.CanAdvanceDelivery(msg.DeliveryStatus, models.DeliveryStatusFailed) {
		return false
	}
	msg.DeliveryStatus = models.DeliveryStatusFailed
	s.messages[chatID][pos] = msg
	return true
}

// RemoveMessage drops a message record. Used by the explicit resend flow to
// retire a failed record before the replacement send.
func (s *ChatStore) RemoveMessage(chatID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.position(chatID, messageID)
	if !ok {
		return false
	}
	s.messages[chatID] = append(s.messages[chatID][:pos], s.messages[chatID][pos+1:]...)
	delete(s.index[chatID], messageID)
	s.reindexFromLocked(chatID, pos)
	s.refreshLastMessageLocked(chatID)
	return true
}

// ApplyRemote merges an authoritative message from a live push event. New
// messages are inserted at their sorted position; known ids are merged
// without regressing delivery status. An unread inbound message from the
// counterpart raises the unread counter; messages the server already marks
// read do not.
func (s *ChatStore) ApplyRemote(msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyRemoteLocked(msg, true)
}

// ApplyHistory merges a message re-fetched during resync. The server's
// unreadCount for the chat already accounts for these, so the local counter
// is left alone; AdoptUnread installs the server value afterwards.
func (s *ChatStore) ApplyHistory(msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyRemoteLocked(msg, false)
}

func (s *ChatStore) applyRemoteLocked(msg models.Message, raiseUnread bool) {
	if _, ok := s.chats[msg.ChatID]; !ok {
		s.chats[msg.ChatID] = models.Chat{
			ID:             msg.ChatID,
			ParticipantIDs: [2]string{s.localUserID, msg.SenderID},
		}
		s.chatByPair[models.PairKey(s.localUserID, msg.SenderID)] = msg.ChatID
	}

	if pos, ok := s.position(msg.ChatID, msg.ID); ok {
		existing := s.messages[msg.ChatID][pos]
		merged := msg
		if !policy.CanAdvanceDelivery(existing.DeliveryStatus, msg.DeliveryStatus) {
			merged.DeliveryStatus = existing.DeliveryStatus
		}
		s.messages[msg.ChatID][pos] = merged
		s.refreshLastMessageLocked(msg.ChatID)
		return
	}

	msgs := s.messages[msg.ChatID]
	pos := sort.Search(len(msgs), func(i int) bool {
		return policy.Less(msg, msgs[i])
	})
	msgs = append(msgs, models.Message{})
	copy(msgs[pos+1:], msgs[pos:])
	msgs[pos] = msg
	s.messages[msg.ChatID] = msgs
	s.reindexFromLocked(msg.ChatID, pos)

	if raiseUnread && msg.SenderID != s.localUserID &&
		msg.DeliveryStatus != models.DeliveryStatusRead {
		chat := s.chats[msg.ChatID]
		chat.UnreadCount++
		s.chats[msg.ChatID] = chat
	}
	s.refreshLastMessageLocked(msg.ChatID)
}

// AdoptUnread installs the server's unread counter after a history re-fetch.
// Incremental accounting cannot tell which of the re-fetched messages the
// server already counted, so the server value wins for that chat.
func (s *ChatStore) AdoptUnread(chatID string, unread int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[chatID]
	if !ok {
		return
	}
	chat.UnreadCount = unread
	s.chats[chatID] = chat
}

// AdvanceDelivery moves a message along the delivery ladder; regressions are
// silently refused (read never reverts to delivered).
func (s *ChatStore) AdvanceDelivery(chatID, messageID string, to models.DeliveryStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.position(chatID, messageID)
	if !ok {
		return false
	}
	msg := s.messages[chatID][pos]
	if !policy.CanAdvanceDelivery(msg.DeliveryStatus, to) {
		return false
	}
	msg.DeliveryStatus = to
	s.messages[chatID][pos] = msg
	return true
}

func (s *ChatStore) ApplyEdit(chatID, messageID, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.position(chatID, messageID)
	if !ok {
		return false
	}
	msg := s.messages[chatID][pos]
	if msg.IsDeleted {
		return false
	}
	msg.Content = content
	msg.IsEdited = true
	s.messages[chatID][pos] = msg
	s.refreshLastMessageLocked(chatID)
	return true
}

// ApplyDelete soft-deletes. deleteForAll clears content for everyone;
// otherwise the record is only hidden for the local user and content stays.
func (s *ChatStore) ApplyDelete(chatID, messageID string, deleteForAll bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.position(chatID, messageID)
	if !ok {
		return false
	}
	msg := s.messages[chatID][pos]
	msg.IsDeleted = true
	if deleteForAll {
		msg.Content = ""
	}
	s.messages[chatID][pos] = msg
	s.refreshLastMessageLocked(chatID)
	return true
}

// MarkChatRead zeroes the unread counter and returns its previous value.
// Besides AdoptUnread during resync, this is the only mutation that lowers
// unread.
func (s *ChatStore) MarkChatRead(chatID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[chatID]
	if !ok {
		return 0, fmt.Errorf("%w: chat %s", contracts.ErrNotFound, chatID)
	}
	prev := chat.UnreadCount
	chat.UnreadCount = 0
	s.chats[chatID] = chat
	return prev, nil
}

func (s *ChatStore) SetArchived(chatID string, archived bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[chatID]
	if !ok {
		return fmt.Errorf("%w: chat %s", contracts.ErrNotFound, chatID)
	}
	chat.IsArchived = archived
	s.chats[chatID] = chat
	return nil
}

func (s *ChatStore) SetMuted(chatID string, muted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[chatID]
	if !ok {
		return fmt.Errorf("%w: chat %s", contracts.ErrNotFound, chatID)
	}
	chat.IsMuted = muted
	s.chats[chatID] = chat
	return nil
}

// PendingSends lists messages still in sending state across all chats.
// After a reconnect these mark their chats as having unacknowledged
// activity that must be re-fetched.
func (s *ChatStore) PendingSends() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Message
	for _, msgs := range s.messages {
		for _, msg := range msgs {
			if msg.DeliveryStatus == models.DeliveryStatusSending {
				out = append(out, msg)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return policy.Less(out[i], out[j]) })
	return out
}

func (s *ChatStore) position(chatID, messageID string) (int, bool) {
	idx, ok := s.index[chatID]
	if !ok {
		return 0, false
	}
	pos, ok := idx[messageID]
	return pos, ok
}

func (s *ChatStore) setPosition(chatID, messageID string, pos int) {
	idx, ok := s.index[chatID]
	if !ok {
		idx = make(map[string]int)
		s.index[chatID] = idx
	}
	idx[messageID] = pos
}

func (s *ChatStore) reindexFromLocked(chatID string, from int) {
	for i := from; i < len(s.messages[chatID]); i++ {
		s.setPosition(chatID, s.messages[chatID][i].ID, i)
	}
}

func (s *ChatStore) refreshLastMessageLocked(chatID string) {
	chat, ok := s.chats[chatID]
	if !ok {
		return
	}
	msgs := s.messages[chatID]
	if len(msgs) == 0 {
		chat.LastMessage = nil
	} else {
		last := msgs[len(msgs)-1]
		chat.LastMessage = &last
	}
	s.chats[chatID] = chat
}

func (s *ChatStore) rekeyChatLocked(oldID, newID string) error {
	chat, ok := s.chats[oldID]
	if !ok {
		return fmt.Errorf("%w: chat %s", contracts.ErrNotFound, oldID)
	}
	if _, exists := s.chats[newID]; exists {
		// Server already told us about this chat; fold the placeholder in.
		for _, msg := range s.messages[oldID] {
			msg.ChatID = newID
			s.messages[newID] = append(s.messages[newID], msg)
		}
		sort.SliceStable(s.messages[newID], func(i, j int) bool {
			return policy.Less(s.messages[newID][i], s.messages[newID][j])
		})
		s.reindexFromLocked(newID, 0)
	} else {
		chat.ID = newID
		s.chats[newID] = chat
		s.messages[newID] = s.messages[oldID]
		for _, msg := range s.messages[newID] {
			s.setPosition(newID, msg.ID, s.index[oldID][msg.ID])
		}
		for i := range s.messages[newID] {
			s.messages[newID][i].ChatID = newID
		}
	}
	delete(s.chats, oldID)
	delete(s.messages, oldID)
	delete(s.index, oldID)
	s.chatByPair[models.PairKey(chat.ParticipantIDs[0], chat.ParticipantIDs[1])] = newID
	s.refreshLastMessageLocked(newID)
	return nil
}

// ExportState snapshots chats and messages for persistence.
func (s *ChatStore) ExportState() ([]models.Chat, map[string][]models.Message) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chats := make([]models.Chat, 0, len(s.chats))
	for _, chat := range s.chats {
		chats = append(chats, chat)
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i].ID < chats[j].ID })
	messages := make(map[string][]models.Message, len(s.messages))
	for id, msgs := range s.messages {
		cloned := make([]models.Message, len(msgs))
		copy(cloned, msgs)
		messages[id] = cloned
	}
	return chats, messages
}

// ImportState replaces the whole view. Messages still marked sending belong
// to a process that died mid-flight; they are parked as failed so the user
// can resend explicitly.
func (s *ChatStore) ImportState(chats []models.Chat, messages map[string][]models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = make(map[string]models.Chat, len(chats))
	s.chatByPair = make(map[string]string, len(chats))
	s.messages = make(map[string][]models.Message, len(messages))
	s.index = make(map[string]map[string]int, len(messages))
	for _, chat := range chats {
		s.chats[chat.ID] = chat
		s.chatByPair[models.PairKey(chat.ParticipantIDs[0], chat.ParticipantIDs[1])] = chat.ID
	}
	for id, msgs := range messages {
		cloned := make([]models.Message, len(msgs))
		copy(cloned, msgs)
		for i := range cloned {
			if cloned[i].DeliveryStatus == models.DeliveryStatusSending {
				cloned[i].DeliveryStatus = models.DeliveryStatusFailed
			}
		}
		s.messages[id] = cloned
		s.reindexFromLocked(id, 0)
		s.refreshLastMessageLocked(id)
	}
}
