package policy

import (
	"fmt"
	"strings"
	"time"

	"linkgrid/go-client/internal/domains/contracts"
	"linkgrid/go-client/pkg/models"
)

const maxRequestMessageLen = 500

type RequestAction string

const (
	ActionAccept RequestAction = "accept"
	ActionReject RequestAction = "reject"
	ActionCancel RequestAction = "cancel"
)

// ValidateSendRequest fails fast on input that must never reach the wire.
func ValidateSendRequest(fromUserID, toUserID, message string) error {
	if strings.TrimSpace(toUserID) == "" {
		return fmt.Errorf("%w: empty recipient", contracts.ErrValidation)
	}
	if strings.TrimSpace(fromUserID) == strings.TrimSpace(toUserID) {
		return fmt.Errorf("%w: cannot send a request to yourself", contracts.ErrValidation)
	}
	if len(message) > maxRequestMessageLen {
		return fmt.Errorf("%w: request message exceeds %d characters", contracts.ErrValidation, maxRequestMessageLen)
	}
	return nil
}

// CanRespond checks that the actor is allowed to apply the action to the
// request in its current state. Terminal requests never transition again.
func CanRespond(req models.ConnectionRequest, action RequestAction, actorID string) error {
	if req.Status != models.RequestStatusPending {
		return fmt.Errorf("%w: request %s is %s", contracts.ErrInvalidTransition, req.ID, req.Status)
	}
	switch action {
	case ActionAccept, ActionReject:
		if actorID != req.ToUserID {
			return fmt.Errorf("%w: only the recipient may %s", contracts.ErrValidation, action)
		}
	case ActionCancel:
		if actorID != req.FromUserID {
			return fmt.Errorf("%w: only the sender may cancel", contracts.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown action %q", contracts.ErrValidation, action)
	}
	return nil
}

// NextRequestStatus maps an action to the terminal status it produces.
func NextRequestStatus(action RequestAction) models.RequestStatus {
	switch action {
	case ActionAccept:
		return models.RequestStatusAccepted
	case ActionReject:
		return models.RequestStatusRejected
	case ActionCancel:
		return models.RequestStatusCancelled
	}
	return models.RequestStatusPending
}

// StatusFromRequest derives the edge status a pending request implies for
// the local user.
func StatusFromRequest(req models.ConnectionRequest, localUserID string) models.ConnectionStatus {
	if req.Status != models.RequestStatusPending {
		return models.ConnectionStatusNone
	}
	if req.FromUserID == localUserID {
		return models.ConnectionStatusPendingSent
	}
	return models.ConnectionStatusPendingReceived
}

// EdgeFromAcceptedRequest builds the connected edge an accept produces.
func EdgeFromAcceptedRequest(req models.ConnectionRequest, localUserID string, at time.Time) models.ConnectionEdge {
	counterpart := req.FromUserID
	if counterpart == localUserID {
		counterpart = req.ToUserID
	}
	return models.ConnectionEdge{
		ID:            req.ID,
		SubjectID:     localUserID,
		CounterpartID: counterpart,
		Status:        models.ConnectionStatusConnected,
		ConnectedAt:   at.UTC(),
	}
}
