package privacy

import (
	"sync"

	"linkgrid/go-client/pkg/models"
)

// Guard wraps the blocklist for concurrent use and persists each mutation
// through the configured store.
type Guard struct {
	mu    sync.RWMutex
	list  Blocklist
	store *BlocklistStore
}

func NewGuard(list Blocklist, store *BlocklistStore) *Guard {
	if store == nil {
		store = NewBlocklistStore()
	}
	return &Guard{list: list, store: store}
}

func (g *Guard) Contains(userID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.list.Contains(userID)
}

func (g *Guard) Record(userID string) (models.BlockRecord, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.list.Record(userID)
}

func (g *Guard) List() []models.BlockRecord {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.list.List()
}

func (g *Guard) Add(rec models.BlockRecord) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.list.Add(rec); err != nil {
		return err
	}
	return g.store.Persist(g.list)
}

func (g *Guard) Remove(userID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.list.Remove(userID); err != nil {
		return err
	}
	return g.store.Persist(g.list)
}
