package gateway

import (
	"context"
	"net/http"
	"net/url"

	"linkgrid/go-client/pkg/models"
)

func (c *Client) CreateConnectionRequest(ctx context.Context, toUserID, message string) (models.ConnectionRequest, error) {
	body := struct {
		ToUserID string `json:"toUserId"`
		Message  string `json:"message,omitempty"`
	}{ToUserID: toUserID, Message: message}

	var out wireConnectionRequest
	if err := c.do(ctx, http.MethodPost, "/connections/requests", body, &out); err != nil {
		return models.ConnectionRequest{}, err
	}
	return out.toModel(), nil
}

func (c *Client) RespondConnectionRequest(ctx context.Context, requestID, action string) (models.ConnectionRequest, *models.ConnectionEdge, error) {
	body := struct {
		Action string `json:"action"`
	}{Action: action}

	var out struct {
		Request    wireConnectionRequest `json:"request"`
		Connection *wireConnectionEdge   `json:"connection,omitempty"`
	}
	path := "/connections/requests/" + url.PathEscape(requestID)
	if err := c.do(ctx, http.MethodPatch, path, body, &out); err != nil {
		return models.ConnectionRequest{}, nil, err
	}
	var edge *models.ConnectionEdge
	if out.Connection != nil {
		converted := out.Connection.toModel()
		edge = &converted
	}
	return out.Request.toModel(), edge, nil
}

func (c *Client) DeleteConnection(ctx context.Context, connectionID, reason string, blockUser bool) error {
	body := struct {
		Reason    string `json:"reason,omitempty"`
		BlockUser bool   `json:"blockUser,omitempty"`
	}{Reason: reason, BlockUser: blockUser}
	return c.do(ctx, http.MethodDelete, "/connections/"+url.PathEscape(connectionID), body, nil)
}

func (c *Client) BlockUser(ctx context.Context, userID, reason string) (models.BlockRecord, error) {
	body := struct {
		UserID string `json:"userId"`
		Reason string `json:"reason,omitempty"`
	}{UserID: userID, Reason: reason}

	var out wireBlockRecord
	if err := c.do(ctx, http.MethodPost, "/connections/block", body, &out); err != nil {
		return models.BlockRecord{}, err
	}
	return out.toModel(), nil
}

func (c *Client) UnblockUser(ctx context.Context, userID string) error {
	body := struct {
		UserID string `json:"userId"`
	}{UserID: userID}
	return c.do(ctx, http.MethodPost, "/connections/unblock", body, nil)
}

func (c *Client) UpdateConnection(ctx context.Context, connectionID string, tags []string, notes string) (models.ConnectionEdge, error) {
	body := struct {
		Tags  []string `json:"tags"`
		Notes string   `json:"notes"`
	}{Tags: tags, Notes: notes}

	var out wireConnectionEdge
	if err := c.do(ctx, http.MethodPatch, "/connections/"+url.PathEscape(connectionID), body, &out); err != nil {
		return models.ConnectionEdge{}, err
	}
	return out.toModel(), nil
}

func (c *Client) ListConnections(ctx context.Context) ([]models.ConnectionEdge, error) {
	var out []wireConnectionEdge
	if err := c.doRead(ctx, "/connections", &out); err != nil {
		return nil, err
	}
	edges := make([]models.ConnectionEdge, 0, len(out))
	for _, w := range out {
		edges = append(edges, w.toModel())
	}
	return edges, nil
}

func (c *Client) ListConnectionRequests(ctx context.Context) ([]models.ConnectionRequest, error) {
	var out []wireConnectionRequest
	if err := c.doRead(ctx, "/connections/requests", &out); err != nil {
		return nil, err
	}
	requests := make([]models.ConnectionRequest, 0, len(out))
	for _, w := range out {
		requests = append(requests, w.toModel())
	}
	return requests, nil
}

// GetConnectionStatus asks the server for the authoritative relationship
// with one user. Local state answers most status queries; this exists for
// cold-start checks before the first resync.
func (c *Client) GetConnectionStatus(ctx context.Context, userID string) (models.ConnectionStatus, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.doRead(ctx, "/connections/status/"+url.PathEscape(userID), &out); err != nil {
		return "", err
	}
	return models.ConnectionStatus(out.Status), nil
}
