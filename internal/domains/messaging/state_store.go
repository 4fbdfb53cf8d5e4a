package messaging

import (
	"encoding/json"
	"errors"
	"io/fs"

	"linkgrid/go-client/internal/securestore"
	"linkgrid/go-client/pkg/models"
)

// SnapshotStore persists the chat store as an encrypted snapshot. Optional;
// an unconfigured store keeps chats in memory only.
type SnapshotStore struct {
	path   string
	secret string
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{}
}

func (s *SnapshotStore) Configure(path, secret string) {
	s.path, s.secret = securestore.NormalizeStorageConfig(path, secret)
}

// Bootstrap loads the snapshot into the chat store. A missing file is an
// empty state; a corrupt or foreign file is an error the caller surfaces.
func (s *SnapshotStore) Bootstrap(store *ChatStore) error {
	if !securestore.IsStorageConfigured(s.path, s.secret) {
		return nil
	}
	plaintext, err := securestore.ReadDecryptedFile(s.path, s.secret)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s.Persist(store)
		}
		return err
	}

	var state persistedChatState
	if err := json.Unmarshal(plaintext, &state); err != nil {
		return err
	}
	if state.Version != 1 {
		return errors.New("chat persistence payload is invalid")
	}
	store.ImportState(state.Chats, state.Messages)
	return nil
}

func (s *SnapshotStore) Persist(store *ChatStore) error {
	if !securestore.IsStorageConfigured(s.path, s.secret) {
		return nil
	}
	chats, messages := store.ExportState()
	state := persistedChatState{
		Version:  1,
		Chats:    chats,
		Messages: messages,
	}
	return securestore.WriteEncryptedJSON(s.path, s.secret, state)
}

type persistedChatState struct {
	Version  int                         `json:"version"`
	Chats    []models.Chat               `json:"chats"`
	Messages map[string][]models.Message `json:"messages"`
}
