package messaging

import (
	"sort"
	"sync"
	"time"
)

const DefaultTypingExpiry = 3 * time.Second

// TypingTracker holds ephemeral per-chat typing state. Entries expire after
// a quiet period; every keystroke resets the timer rather than stacking a
// new one. Nothing here is persisted.
type TypingTracker struct {
	mu       sync.Mutex
	expiry   time.Duration
	typists  map[string]map[string]*time.Timer // chat id -> user id -> expiry timer
	onChange func(chatID string)
	closed   bool
}

func NewTypingTracker(expiry time.Duration, onChange func(chatID string)) *TypingTracker {
	if expiry <= 0 {
		expiry = DefaultTypingExpiry
	}
	if onChange == nil {
		onChange = func(string) {}
	}
	return &TypingTracker{
		expiry:   expiry,
		typists:  make(map[string]map[string]*time.Timer),
		onChange: onChange,
	}
}

// Start records that userID is typing in chatID, resetting any running timer.
func (t *TypingTracker) Start(chatID, userID string) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	byUser, ok := t.typists[chatID]
	if !ok {
		byUser = make(map[string]*time.Timer)
		t.typists[chatID] = byUser
	}
	fresh := false
	if timer, ok := byUser[userID]; ok {
		timer.Reset(t.expiry)
	} else {
		fresh = true
		byUser[userID] = time.AfterFunc(t.expiry, func() {
			t.expire(chatID, userID)
		})
	}
	t.mu.Unlock()
	if fresh {
		t.onChange(chatID)
	}
}

// Stop clears the typing state immediately (explicit stop event).
func (t *TypingTracker) Stop(chatID, userID string) {
	t.mu.Lock()
	removed := t.removeLocked(chatID, userID)
	t.mu.Unlock()
	if removed {
		t.onChange(chatID)
	}
}

// Typists returns who is currently typing in the chat, sorted.
func (t *TypingTracker) Typists(chatID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	byUser := t.typists[chatID]
	out := make([]string, 0, len(byUser))
	for userID := range byUser {
		out = append(out, userID)
	}
	sort.Strings(out)
	return out
}

// Close stops every timer; the tracker accepts no further events.
func (t *TypingTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for _, byUser := range t.typists {
		for _, timer := range byUser {
			timer.Stop()
		}
	}
	t.typists = make(map[string]map[string]*time.Timer)
}

func (t *TypingTracker) expire(chatID, userID string) {
	t.mu.Lock()
	removed := t.removeLocked(chatID, userID)
	t.mu.Unlock()
	if removed {
		t.onChange(chatID)
	}
}

func (t *TypingTracker) removeLocked(chatID, userID string) bool {
	byUser, ok := t.typists[chatID]
	if !ok {
		return false
	}
	timer, ok := byUser[userID]
	if !ok {
		return false
	}
	timer.Stop()
	delete(byUser, userID)
	if len(byUser) == 0 {
		delete(t.typists, chatID)
	}
	return true
}
