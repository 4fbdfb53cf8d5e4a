package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"linkgrid/go-client/internal/domains/connections"
	"linkgrid/go-client/internal/domains/connections/policy"
	"linkgrid/go-client/internal/domains/contracts"
	"linkgrid/go-client/internal/domains/privacy"
	"linkgrid/go-client/pkg/models"
)

// Gateway is the slice of the remote service the lifecycle manager consumes.
// Every method returns the authoritative payload; the service merges it into
// the local store and never trusts its own optimistic copy.
type Gateway interface {
	CreateConnectionRequest(ctx context.Context, toUserID, message string) (models.ConnectionRequest, error)
	RespondConnectionRequest(ctx context.Context, requestID, action string) (models.ConnectionRequest, *models.ConnectionEdge, error)
	DeleteConnection(ctx context.Context, connectionID, reason string, blockUser bool) error
	BlockUser(ctx context.Context, userID, reason string) (models.BlockRecord, error)
	UnblockUser(ctx context.Context, userID string) error
	UpdateConnection(ctx context.Context, connectionID string, tags []string, notes string) (models.ConnectionEdge, error)
	ListConnections(ctx context.Context) ([]models.ConnectionEdge, error)
	ListConnectionRequests(ctx context.Context) ([]models.ConnectionRequest, error)
}

type ServiceDeps struct {
	LocalUserID string
	Gateway     Gateway
	State       *connections.StateStore
	Blocklist   *privacy.Guard
	Notify      func(models.Notification)
	Logger      *slog.Logger
	Now         func() time.Time
	NewID       func() string
}

// Service owns the relationship state machine for the local user. Mutations
// are applied optimistically, then reconciled against the gateway response;
// transition conflicts roll back to the captured state and trigger a resync.
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
	if deps.Notify == nil {
		deps.Notify = func(models.Notification) {}
	}
	return &Service{deps: deps}
}

const tempRequestPrefix = "tmp-req-"

// SendRequest creates a pending connection request. The request appears in
// the local view immediately under a temporary id and is swapped for the
// server record on acknowledgment.
func (s *Service) SendRequest(ctx context.Context, toUserID, message string) (models.ConnectionRequest, error) {
	if err := policy.ValidateSendRequest(s.deps.LocalUserID, toUserID, message); err != nil {
		return models.ConnectionRequest{}, err
	}
	if s.deps.Blocklist.Contains(toUserID) {
		return models.ConnectionRequest{}, fmt.Errorf("%w: %s", contracts.ErrAlreadyBlocked, "recipient is blocked")
	}
	if _, ok := s.deps.State.PendingRequestBetween(s.deps.LocalUserID, toUserID); ok {
		return models.ConnectionRequest{}, contracts.ErrDuplicateRequest
	}
	if edge, ok := s.deps.State.Edge(toUserID); ok && edge.Status == models.ConnectionStatusConnected {
		return models.ConnectionRequest{}, fmt.Errorf("%w: already connected", contracts.ErrConflict)
	}

	temp := models.ConnectionRequest{
		ID:         tempRequestPrefix + s.deps.NewID(),
		FromUserID: s.deps.LocalUserID,
		ToUserID:   toUserID,
		Status:     models.RequestStatusPending,
		Message:    message,
		CreatedAt:  s.deps.Now(),
	}
	s.deps.State.ApplyRequest(temp)

	req, err := s.deps.Gateway.CreateConnectionRequest(ctx, toUserID, message)
	s.deps.State.DropRequest(temp.ID)
	if err != nil {
		return models.ConnectionRequest{}, err
	}
	s.deps.State.ApplyRequest(req)
	return req, nil
}

// RespondToRequest applies accept/reject/cancel to a pending request. The
// remote service is the single arbiter: on InvalidTransition or Conflict the
// optimistic write is rolled back and the authoritative state re-fetched.
func (s *Service) RespondToRequest(ctx context.Context, requestID string, action policy.RequestAction) (models.ConnectionRequest, error) {
	req, ok := s.deps.State.Request(requestID)
	if !ok {
		return models.ConnectionRequest{}, fmt.Errorf("%w: request %s", contracts.ErrNotFound, requestID)
	}
	if err := policy.CanRespond(req, action, s.deps.LocalUserID); err != nil {
		return models.ConnectionRequest{}, err
	}

	counterpart := s.counterpartOf(req)
	snap := s.deps.State.Capture([]string{requestID}, []string{counterpart})

	now := s.deps.Now()
	optimistic := req
	optimistic.Status = policy.NextRequestStatus(action)
	optimistic.RespondedAt = now
	s.deps.State.ApplyRequest(optimistic)
	if action == policy.ActionAccept {
		s.deps.State.ApplyEdge(policy.EdgeFromAcceptedRequest(req, s.deps.LocalUserID, now))
	}

	authoritative, edge, err := s.deps.Gateway.RespondConnectionRequest(ctx, requestID, string(action))
	if err != nil {
		s.deps.State.Restore(snap)
		if errors.Is(err, contracts.ErrInvalidTransition) || errors.Is(err, contracts.ErrConflict) {
			s.refreshAuthoritative(ctx)
		}
		return models.ConnectionRequest{}, err
	}

	s.deps.State.ApplyRequest(authoritative)
	if edge != nil {
		s.deps.State.ApplyEdge(*edge)
	}
	switch authoritative.Status {
	case models.RequestStatusAccepted:
		s.notify(models.NotificationConnectionAccepted, counterpart, authoritative.ID)
	case models.RequestStatusRejected:
		s.notify(models.NotificationConnectionRejected, counterpart, authoritative.ID)
	}
	return authoritative, nil
}

// RemoveConnection drops a connected edge, optionally blocking the
// counterpart in the same action.
func (s *Service) RemoveConnection(ctx context.Context, counterpartID, reason string, alsoBlock bool) error {
	edge, ok := s.deps.State.Edge(counterpartID)
	if !ok || edge.Status != models.ConnectionStatusConnected {
		return fmt.Errorf("%w: no connection with %s", contracts.ErrNotFound, counterpartID)
	}

	snap := s.deps.State.Capture(nil, []string{counterpartID})
	var blockedOptimistically bool
	if alsoBlock {
		blocked := edge
		blocked.Status = models.ConnectionStatusBlocked
		s.deps.State.ApplyEdge(blocked)
		if err := s.deps.Blocklist.Add(models.BlockRecord{
			BlockerID:     s.deps.LocalUserID,
			BlockedUserID: counterpartID,
			Reason:        reason,
			BlockedAt:     s.deps.Now(),
		}); err == nil {
			blockedOptimistically = true
		}
	} else {
		s.deps.State.RemoveEdge(counterpartID)
	}

	if err := s.deps.Gateway.DeleteConnection(ctx, edge.ID, reason, alsoBlock); err != nil {
		s.deps.State.Restore(snap)
		if blockedOptimistically {
			if rbErr := s.deps.Blocklist.Remove(counterpartID); rbErr != nil {
				s.deps.Logger.Warn("blocklist rollback failed", "error", rbErr)
			}
		}
		if errors.Is(err, contracts.ErrNotFound) || errors.Is(err, contracts.ErrConflict) {
			s.refreshAuthoritative(ctx)
		}
		return err
	}
	s.notify(models.NotificationConnectionRemoved, counterpartID, "")
	return nil
}

// BlockUser blocks the counterpart. Block always wins: any pending request
// between the pair is invalidated as a side effect, whatever its direction.
func (s *Service) BlockUser(ctx context.Context, userID, reason string) error {
	normalized, err := privacy.NormalizeUserID(userID)
	if err != nil {
		return fmt.Errorf("%w: %v", contracts.ErrValidation, err)
	}
	if s.deps.Blocklist.Contains(normalized) {
		return contracts.ErrAlreadyBlocked
	}

	var touchedRequests []string
	if pending, ok := s.deps.State.PendingRequestBetween(s.deps.LocalUserID, normalized); ok {
		touchedRequests = append(touchedRequests, pending.ID)
	}
	snap := s.deps.State.Capture(touchedRequests, []string{normalized})

	now := s.deps.Now()
	for _, id := range touchedRequests {
		if req, ok := s.deps.State.Request(id); ok {
			req.Status = models.RequestStatusCancelled
			req.RespondedAt = now
			s.deps.State.ApplyRequest(req)
		}
	}
	edge, _ := s.deps.State.Edge(normalized)
	edge.SubjectID = s.deps.LocalUserID
	edge.CounterpartID = normalized
	edge.Status = models.ConnectionStatusBlocked
	s.deps.State.ApplyEdge(edge)

	record := models.BlockRecord{
		BlockerID:     s.deps.LocalUserID,
		BlockedUserID: normalized,
		Reason:        reason,
		BlockedAt:     now,
	}
	if err := s.deps.Blocklist.Add(record); err != nil {
		s.deps.State.Restore(snap)
		if errors.Is(err, privacy.ErrAlreadyOnList) {
			return contracts.ErrAlreadyBlocked
		}
		return contracts.WrapCategorizedError(contracts.ErrorCategoryStorage, err)
	}

	if _, err := s.deps.Gateway.BlockUser(ctx, normalized, reason); err != nil {
		s.deps.State.Restore(snap)
		if rbErr := s.deps.Blocklist.Remove(normalized); rbErr != nil {
			s.deps.Logger.Warn("blocklist rollback failed", "error", rbErr)
		}
		if errors.Is(err, contracts.ErrAlreadyBlocked) {
			// Server already had the block; converge instead of rolling back.
			if addErr := s.deps.Blocklist.Add(record); addErr == nil {
				s.deps.State.ApplyEdge(edge)
			}
		}
		return err
	}
	return nil
}

// UnblockUser removes the block record. The prior connected state is not
// resurrected; the pair returns to none.
func (s *Service) UnblockUser(ctx context.Context, userID string) error {
	normalized, err := privacy.NormalizeUserID(userID)
	if err != nil {
		return fmt.Errorf("%w: %v", contracts.ErrValidation, err)
	}
	record, ok := s.deps.Blocklist.Record(normalized)
	if !ok {
		return fmt.Errorf("%w: %s is not blocked", contracts.ErrNotFound, normalized)
	}

	snap := s.deps.State.Capture(nil, []string{normalized})
	if err := s.deps.Blocklist.Remove(normalized); err != nil {
		return contracts.WrapCategorizedError(contracts.ErrorCategoryStorage, err)
	}
	s.deps.State.RemoveEdge(normalized)

	if err := s.deps.Gateway.UnblockUser(ctx, normalized); err != nil {
		s.deps.State.Restore(snap)
		if rbErr := s.deps.Blocklist.Add(record); rbErr != nil {
			s.deps.Logger.Warn("blocklist rollback failed", "error", rbErr)
		}
		return err
	}
	return nil
}

// UpdateConnection changes tags/notes on a connected edge. The server copy
// wins; no optimistic write because the change is metadata only.
func (s *Service) UpdateConnection(ctx context.Context, counterpartID string, tags []string, notes string) (models.ConnectionEdge, error) {
	edge, ok := s.deps.State.Edge(counterpartID)
	if !ok || edge.Status != models.ConnectionStatusConnected {
		return models.ConnectionEdge{}, fmt.Errorf("%w: no connection with %s", contracts.ErrNotFound, counterpartID)
	}
	updated, err := s.deps.Gateway.UpdateConnection(ctx, edge.ID, tags, notes)
	if err != nil {
		return models.ConnectionEdge{}, err
	}
	s.deps.State.ApplyEdge(updated)
	return updated, nil
}

// ConnectionStatus is a pure read over the local view, including optimistic
// writes that have not been confirmed yet.
func (s *Service) ConnectionStatus(userID string) models.ConnectionStatus {
	if s.deps.Blocklist.Contains(userID) {
		return models.ConnectionStatusBlocked
	}
	if edge, ok := s.deps.State.Edge(userID); ok {
		return edge.Status
	}
	if req, ok := s.deps.State.PendingRequestBetween(s.deps.LocalUserID, userID); ok {
		return policy.StatusFromRequest(req, s.deps.LocalUserID)
	}
	return models.ConnectionStatusNone
}

func (s *Service) Connections() []models.ConnectionEdge {
	return s.deps.State.Connections()
}

func (s *Service) PendingRequests() []models.ConnectionRequest {
	return s.deps.State.PendingRequests()
}

// Resync replaces the local view with the authoritative server listing and
// derives notifications for transitions the counterpart initiated. The push
// channel carries no relationship events, so this is the only way those
// transitions reach the feed after a gap.
func (s *Service) Resync(ctx context.Context) error {
	prevPending := s.deps.State.PendingRequests()
	prevEdges := s.deps.State.Connections()

	edges, err := s.deps.Gateway.ListConnections(ctx)
	if err != nil {
		return err
	}
	requests, err := s.deps.Gateway.ListConnectionRequests(ctx)
	if err != nil {
		return err
	}
	s.deps.State.ReplaceAll(edges, requests)
	s.emitResyncNotifications(prevPending, prevEdges)
	return nil
}

func (s *Service) emitResyncNotifications(prevPending []models.ConnectionRequest, prevEdges []models.ConnectionEdge) {
	knownPending := make(map[string]struct{}, len(prevPending))
	for _, req := range prevPending {
		knownPending[req.ID] = struct{}{}
	}
	for _, req := range s.deps.State.PendingRequests() {
		if _, ok := knownPending[req.ID]; ok {
			continue
		}
		if req.ToUserID == s.deps.LocalUserID {
			s.notify(models.NotificationConnectionRequest, req.FromUserID, req.ID)
		}
	}

	nowConnected := make(map[string]struct{})
	nowBlocked := make(map[string]struct{})
	for _, edge := range s.deps.State.Connections() {
		switch edge.Status {
		case models.ConnectionStatusConnected:
			nowConnected[edge.CounterpartID] = struct{}{}
		case models.ConnectionStatusBlocked:
			nowBlocked[edge.CounterpartID] = struct{}{}
		}
	}

	// An outgoing request that left the pending set was either accepted
	// (a connected edge appeared) or rejected.
	stillPending := make(map[string]struct{})
	for _, req := range s.deps.State.PendingRequests() {
		stillPending[req.ID] = struct{}{}
	}
	for _, req := range prevPending {
		if req.FromUserID != s.deps.LocalUserID {
			continue
		}
		if _, ok := stillPending[req.ID]; ok {
			continue
		}
		if _, ok := nowConnected[req.ToUserID]; ok {
			s.notify(models.NotificationConnectionAccepted, req.ToUserID, req.ID)
		} else {
			s.notify(models.NotificationConnectionRejected, req.ToUserID, req.ID)
		}
	}

	for _, edge := range prevEdges {
		if edge.Status != models.ConnectionStatusConnected {
			continue
		}
		_, connected := nowConnected[edge.CounterpartID]
		_, blocked := nowBlocked[edge.CounterpartID]
		if !connected && !blocked {
			s.notify(models.NotificationConnectionRemoved, edge.CounterpartID, "")
		}
	}
}

func (s *Service) refreshAuthoritative(ctx context.Context) {
	if err := s.Resync(ctx); err != nil {
		s.deps.Logger.Warn("post-conflict resync failed", "error", err)
	}
}

func (s *Service) notify(kind models.NotificationKind, actorID, requestID string) {
	s.deps.Notify(models.Notification{
		ID:         s.deps.NewID(),
		Kind:       kind,
		ActorID:    actorID,
		RequestID:  requestID,
		OccurredAt: s.deps.Now(),
	})
}

func (s *Service) counterpartOf(req models.ConnectionRequest) string {
	if req.FromUserID == s.deps.LocalUserID {
		return req.ToUserID
	}
	return req.FromUserID
}
