package gateway

import (
	"context"
	"net/http"
	"net/url"

	"linkgrid/go-client/pkg/models"
)

func (c *Client) SendMessage(ctx context.Context, toUserID, chatID, content string, msgType models.MessageType, replyToID string) (models.Message, error) {
	body := struct {
		ToUserID         string `json:"toUserId"`
		ChatID           string `json:"chatId,omitempty"`
		Content          string `json:"content"`
		Type             string `json:"type"`
		ReplyToMessageID string `json:"replyToMessageId,omitempty"`
	}{
		ToUserID:         toUserID,
		ChatID:           chatID,
		Content:          content,
		Type:             string(msgType),
		ReplyToMessageID: replyToID,
	}

	var out wireMessage
	if err := c.do(ctx, http.MethodPost, "/messaging/messages", body, &out); err != nil {
		return models.Message{}, err
	}
	return out.toModel(), nil
}

func (c *Client) ListChats(ctx context.Context) ([]models.Chat, error) {
	var out []wireChat
	if err := c.doRead(ctx, "/messaging/chats", &out); err != nil {
		return nil, err
	}
	chats := make([]models.Chat, 0, len(out))
	for _, w := range out {
		chats = append(chats, w.toModel())
	}
	return chats, nil
}

func (c *Client) ListMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	var out []wireMessage
	if err := c.doRead(ctx, "/messaging/chats/"+url.PathEscape(chatID)+"/messages", &out); err != nil {
		return nil, err
	}
	messages := make([]models.Message, 0, len(out))
	for _, w := range out {
		messages = append(messages, w.toModel())
	}
	return messages, nil
}

func (c *Client) UpdateChat(ctx context.Context, chatID string, archived, muted bool) error {
	body := struct {
		IsArchived bool `json:"isArchived"`
		IsMuted    bool `json:"isMuted"`
	}{IsArchived: archived, IsMuted: muted}
	return c.do(ctx, http.MethodPatch, "/messaging/chats/"+url.PathEscape(chatID), body, nil)
}

func (c *Client) MarkMessagesRead(ctx context.Context, chatID string, messageIDs []string) error {
	body := struct {
		ChatID     string   `json:"chatId"`
		MessageIDs []string `json:"messageIds"`
	}{ChatID: chatID, MessageIDs: messageIDs}
	return c.do(ctx, http.MethodPatch, "/messaging/messages/read", body, nil)
}

func (c *Client) EditMessage(ctx context.Context, messageID, content string) (models.Message, error) {
	body := struct {
		Content string `json:"content"`
	}{Content: content}

	var out wireMessage
	if err := c.do(ctx, http.MethodPatch, "/messaging/messages/"+url.PathEscape(messageID), body, &out); err != nil {
		return models.Message{}, err
	}
	return out.toModel(), nil
}

func (c *Client) DeleteMessage(ctx context.Context, messageID string, deleteForAll bool) error {
	body := struct {
		DeleteForAll bool `json:"deleteForAll"`
	}{DeleteForAll: deleteForAll}
	return c.do(ctx, http.MethodDelete, "/messaging/messages/"+url.PathEscape(messageID), body, nil)
}
