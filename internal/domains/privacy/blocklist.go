package privacy

import (
	"errors"
	"sort"
	"strings"
	"time"

	"linkgrid/go-client/pkg/models"
)

var (
	ErrInvalidUserID = errors.New("invalid user id")
	ErrAlreadyOnList = errors.New("user already on blocklist")
	ErrNotOnList     = errors.New("user not on blocklist")
)

func NormalizeUserID(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || len(userID) > 64 || strings.ContainsAny(userID, " \t\n") {
		return "", ErrInvalidUserID
	}
	return userID, nil
}

// Blocklist holds the blocked-user set for the local user. Block always wins
// over pending requests and connected edges; unblock never resurrects them.
type Blocklist struct {
	entries map[string]models.BlockRecord
}

func NewBlocklist(records []models.BlockRecord) (Blocklist, error) {
	b := Blocklist{entries: make(map[string]models.BlockRecord, len(records))}
	for _, rec := range records {
		id, err := NormalizeUserID(rec.BlockedUserID)
		if err != nil {
			return Blocklist{}, err
		}
		rec.BlockedUserID = id
		b.entries[id] = rec
	}
	return b, nil
}

func (b *Blocklist) Add(rec models.BlockRecord) error {
	if b.entries == nil {
		b.entries = make(map[string]models.BlockRecord)
	}
	id, err := NormalizeUserID(rec.BlockedUserID)
	if err != nil {
		return err
	}
	if _, ok := b.entries[id]; ok {
		return ErrAlreadyOnList
	}
	rec.BlockedUserID = id
	if rec.BlockedAt.IsZero() {
		rec.BlockedAt = time.Now().UTC()
	}
	b.entries[id] = rec
	return nil
}

func (b *Blocklist) Remove(userID string) error {
	id, err := NormalizeUserID(userID)
	if err != nil {
		return err
	}
	if _, ok := b.entries[id]; !ok {
		return ErrNotOnList
	}
	delete(b.entries, id)
	return nil
}

func (b Blocklist) Contains(userID string) bool {
	id, err := NormalizeUserID(userID)
	if err != nil {
		return false
	}
	_, ok := b.entries[id]
	return ok
}

func (b Blocklist) Record(userID string) (models.BlockRecord, bool) {
	id, err := NormalizeUserID(userID)
	if err != nil {
		return models.BlockRecord{}, false
	}
	rec, ok := b.entries[id]
	return rec, ok
}

func (b Blocklist) List() []models.BlockRecord {
	out := make([]models.BlockRecord, 0, len(b.entries))
	for _, rec := range b.entries {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].BlockedUserID < out[j].BlockedUserID
	})
	return out
}
