package inbox

import (
	"encoding/json"
	"errors"
	"io/fs"

	"linkgrid/go-client/internal/securestore"
	"linkgrid/go-client/pkg/models"
)

// FeedStore persists the notification feed as an encrypted snapshot.
type FeedStore struct {
	path   string
	secret string
}

func NewFeedStore() *FeedStore {
	return &FeedStore{}
}

func (s *FeedStore) Configure(path, secret string) {
	s.path, s.secret = securestore.NormalizeStorageConfig(path, secret)
}

func (s *FeedStore) Bootstrap() (*Feed, error) {
	if !securestore.IsStorageConfigured(s.path, s.secret) {
		return NewFeed(nil), nil
	}
	plaintext, err := securestore.ReadDecryptedFile(s.path, s.secret)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			feed := NewFeed(nil)
			if err := s.Persist(feed); err != nil {
				return nil, err
			}
			return feed, nil
		}
		return nil, err
	}

	var state persistedFeedState
	if err := json.Unmarshal(plaintext, &state); err != nil {
		return nil, err
	}
	if state.Version != 1 {
		return nil, errors.New("notification persistence payload is invalid")
	}
	return NewFeed(state.Notifications), nil
}

func (s *FeedStore) Persist(feed *Feed) error {
	if !securestore.IsStorageConfigured(s.path, s.secret) {
		return nil
	}
	entries := feed.List()
	state := persistedFeedState{
		Version:       1,
		Notifications: entries,
	}
	return securestore.WriteEncryptedJSON(s.path, s.secret, state)
}

type persistedFeedState struct {
	Version       int                   `json:"version"`
	Notifications []models.Notification `json:"notifications"`
}
