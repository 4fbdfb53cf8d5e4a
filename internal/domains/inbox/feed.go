package inbox

import (
	"sort"
	"sync"

	"linkgrid/go-client/pkg/models"
)

// Feed is the append-only notification feed derived from lifecycle
// transitions. The cached unread counter changes in the same critical
// section as any IsRead mutation, so the two can never drift apart.
type Feed struct {
	mu      sync.RWMutex
	entries []models.Notification
	index   map[string]int // notification id -> position in entries
	unread  int
}

func NewFeed(entries []models.Notification) *Feed {
	f := &Feed{index: make(map[string]int, len(entries))}
	for _, n := range entries {
		f.appendLocked(n)
	}
	return f
}

// Append adds a notification. Re-delivery of an already-known id is a no-op.
func (f *Feed) Append(n models.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendLocked(n)
}

func (f *Feed) appendLocked(n models.Notification) {
	if n.ID == "" {
		return
	}
	if _, ok := f.index[n.ID]; ok {
		return
	}
	f.index[n.ID] = len(f.entries)
	f.entries = append(f.entries, n)
	if !n.IsRead {
		f.unread++
	}
}

// MarkRead flips the given notifications to read. The transition is one-way;
// unknown and already-read ids are skipped. Returns how many entries changed.
func (f *Feed) MarkRead(ids []string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	changed := 0
	for _, id := range ids {
		pos, ok := f.index[id]
		if !ok || f.entries[pos].IsRead {
			continue
		}
		f.entries[pos].IsRead = true
		f.unread--
		changed++
	}
	return changed
}

// MarkAllRead flips every unread entry. Returns how many changed.
func (f *Feed) MarkAllRead() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	changed := 0
	for i := range f.entries {
		if !f.entries[i].IsRead {
			f.entries[i].IsRead = true
			changed++
		}
	}
	f.unread = 0
	return changed
}

func (f *Feed) UnreadCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.unread
}

// List returns a copy, newest first; appended order breaks timestamp ties.
func (f *Feed) List() []models.Notification {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]models.Notification, len(f.entries))
	copy(out, f.entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.After(out[j].OccurredAt)
	})
	return out
}

func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}
