package connections

import (
	"sort"
	"sync"

	"linkgrid/go-client/pkg/models"
)

// StateStore is the local view of edges and requests. It is mutated only
// through named operations; reads return copies. Remote responses and resync
// results flow through the same operations as optimistic local writes.
type StateStore struct {
	mu          sync.RWMutex
	localUserID string
	edges       map[string]models.ConnectionEdge    // by counterpart id
	requests    map[string]models.ConnectionRequest // by request id
	pendingPair map[string]string                   // pair key -> pending request id
}

func NewStateStore(localUserID string) *StateStore {
	return &StateStore{
		localUserID: localUserID,
		edges:       make(map[string]models.ConnectionEdge),
		requests:    make(map[string]models.ConnectionRequest),
		pendingPair: make(map[string]string),
	}
}

func (s *StateStore) LocalUserID() string {
	return s.localUserID
}

// ApplyRequest upserts a request and maintains the one-pending-per-pair index.
func (s *StateStore) ApplyRequest(req models.ConnectionRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyRequestLocked(req)
}

func (s *StateStore) applyRequestLocked(req models.ConnectionRequest) {
	key := models.PairKey(req.FromUserID, req.ToUserID)
	if prev, ok := s.requests[req.ID]; ok {
		prevKey := models.PairKey(prev.FromUserID, prev.ToUserID)
		if s.pendingPair[prevKey] == prev.ID {
			delete(s.pendingPair, prevKey)
		}
	}
	s.requests[req.ID] = req
	if req.Status == models.RequestStatusPending {
		s.pendingPair[key] = req.ID
	}
}

// DropRequest removes a request record entirely. Used to discard optimistic
// temp-id requests after reconciliation or failure.
func (s *StateStore) DropRequest(requestID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return
	}
	key := models.PairKey(req.FromUserID, req.ToUserID)
	if s.pendingPair[key] == requestID {
		delete(s.pendingPair, key)
	}
	delete(s.requests, requestID)
}

func (s *StateStore) Request(requestID string) (models.ConnectionRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[requestID]
	return req, ok
}

// PendingRequestBetween returns the single non-terminal request for a pair.
func (s *StateStore) PendingRequestBetween(a, b string) (models.ConnectionRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.pendingPair[models.PairKey(a, b)]
	if !ok {
		return models.ConnectionRequest{}, false
	}
	req, ok := s.requests[id]
	return req, ok
}

func (s *StateStore) ApplyEdge(edge models.ConnectionEdge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges[edge.CounterpartID] = edge
}

func (s *StateStore) RemoveEdge(counterpartID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.edges, counterpartID)
}

func (s *StateStore) Edge(counterpartID string) (models.ConnectionEdge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	edge, ok := s.edges[counterpartID]
	return edge, ok
}

func (s *StateStore) Connections() []models.ConnectionEdge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ConnectionEdge, 0, len(s.edges))
	for _, edge := range s.edges {
		out = append(out, edge)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CounterpartID < out[j].CounterpartID
	})
	return out
}

func (s *StateStore) PendingRequests() []models.ConnectionRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ConnectionRequest, 0, len(s.pendingPair))
	for _, id := range s.pendingPair {
		if req, ok := s.requests[id]; ok {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Snapshot captures the records touched by one operation so an optimistic
// write can be rolled back when the server is the tie-break loser's arbiter.
type Snapshot struct {
	requests []models.ConnectionRequest
	dropped  []string // request ids that did not exist at capture time
	edges    []models.ConnectionEdge
	noEdges  []string // counterpart ids with no edge at capture time
}

func (s *StateStore) Capture(requestIDs []string, counterpartIDs []string) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var snap Snapshot
	for _, id := range requestIDs {
		if req, ok := s.requests[id]; ok {
			snap.requests = append(snap.requests, req)
		} else {
			snap.dropped = append(snap.dropped, id)
		}
	}
	for _, id := range counterpartIDs {
		if edge, ok := s.edges[id]; ok {
			snap.edges = append(snap.edges, edge)
		} else {
			snap.noEdges = append(snap.noEdges, id)
		}
	}
	return snap
}

// Restore puts the captured records back, discarding anything the optimistic
// write created in the meantime.
func (s *StateStore) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, req := range snap.requests {
		s.applyRequestLocked(req)
	}
	for _, id := range snap.dropped {
		if req, ok := s.requests[id]; ok {
			key := models.PairKey(req.FromUserID, req.ToUserID)
			if s.pendingPair[key] == id {
				delete(s.pendingPair, key)
			}
			delete(s.requests, id)
		}
	}
	for _, edge := range snap.edges {
		s.edges[edge.CounterpartID] = edge
	}
	for _, id := range snap.noEdges {
		delete(s.edges, id)
	}
}

// ReplaceAll swaps the whole view for the authoritative server listing.
func (s *StateStore) ReplaceAll(edges []models.ConnectionEdge, requests []models.ConnectionRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges = make(map[string]models.ConnectionEdge, len(edges))
	s.requests = make(map[string]models.ConnectionRequest, len(requests))
	s.pendingPair = make(map[string]string)
	for _, edge := range edges {
		s.edges[edge.CounterpartID] = edge
	}
	for _, req := range requests {
		s.applyRequestLocked(req)
	}
}
