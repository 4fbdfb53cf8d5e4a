package gateway

import (
	"time"

	"linkgrid/go-client/pkg/models"
)

// Wire shapes use the server's camelCase field names; the local models keep
// their own tags for persistence. Conversion happens only here.

type wireConnectionRequest struct {
	ID          string    `json:"id"`
	FromUserID  string    `json:"fromUserId"`
	ToUserID    string    `json:"toUserId"`
	Status      string    `json:"status"`
	Message     string    `json:"message,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	RespondedAt time.Time `json:"respondedAt,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt,omitempty"`
}

func (w wireConnectionRequest) toModel() models.ConnectionRequest {
	return models.ConnectionRequest{
		ID:          w.ID,
		FromUserID:  w.FromUserID,
		ToUserID:    w.ToUserID,
		Status:      models.RequestStatus(w.Status),
		Message:     w.Message,
		CreatedAt:   w.CreatedAt,
		RespondedAt: w.RespondedAt,
		ExpiresAt:   w.ExpiresAt,
	}
}

type wireConnectionEdge struct {
	ID            string    `json:"id"`
	SubjectID     string    `json:"subjectId"`
	CounterpartID string    `json:"counterpartId"`
	Status        string    `json:"status"`
	ConnectedAt   time.Time `json:"connectedAt,omitempty"`
	MutualCount   int       `json:"mutualCount,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	Notes         string    `json:"notes,omitempty"`
}

func (w wireConnectionEdge) toModel() models.ConnectionEdge {
	return models.ConnectionEdge{
		ID:            w.ID,
		SubjectID:     w.SubjectID,
		CounterpartID: w.CounterpartID,
		Status:        models.ConnectionStatus(w.Status),
		ConnectedAt:   w.ConnectedAt,
		MutualCount:   w.MutualCount,
		Tags:          w.Tags,
		Notes:         w.Notes,
	}
}

type wireBlockRecord struct {
	BlockerID     string    `json:"blockerId"`
	BlockedUserID string    `json:"blockedUserId"`
	Reason        string    `json:"reason,omitempty"`
	BlockedAt     time.Time `json:"blockedAt"`
}

func (w wireBlockRecord) toModel() models.BlockRecord {
	return models.BlockRecord{
		BlockerID:     w.BlockerID,
		BlockedUserID: w.BlockedUserID,
		Reason:        w.Reason,
		BlockedAt:     w.BlockedAt,
	}
}

type wireMessage struct {
	ID               string    `json:"id"`
	ChatID           string    `json:"chatId"`
	SenderID         string    `json:"senderId"`
	Content          string    `json:"content"`
	Type             string    `json:"type"`
	DeliveryStatus   string    `json:"deliveryStatus,omitempty"`
	IsEdited         bool      `json:"isEdited,omitempty"`
	IsDeleted        bool      `json:"isDeleted,omitempty"`
	ReplyToMessageID string    `json:"replyToMessageId,omitempty"`
	SentAt           time.Time `json:"sentAt"`
}

func (w wireMessage) toModel() models.Message {
	return models.Message{
		ID:               w.ID,
		ChatID:           w.ChatID,
		SenderID:         w.SenderID,
		Content:          w.Content,
		Type:             models.MessageType(w.Type),
		DeliveryStatus:   models.DeliveryStatus(w.DeliveryStatus),
		IsEdited:         w.IsEdited,
		IsDeleted:        w.IsDeleted,
		ReplyToMessageID: w.ReplyToMessageID,
		SentAt:           w.SentAt,
	}
}

type wireChat struct {
	ID             string       `json:"id"`
	ParticipantIDs []string     `json:"participantIds"`
	LastMessage    *wireMessage `json:"lastMessage,omitempty"`
	UnreadCount    int          `json:"unreadCount,omitempty"`
	IsArchived     bool         `json:"isArchived,omitempty"`
	IsMuted        bool         `json:"isMuted,omitempty"`
}

func (w wireChat) toModel() models.Chat {
	chat := models.Chat{
		ID:          w.ID,
		UnreadCount: w.UnreadCount,
		IsArchived:  w.IsArchived,
		IsMuted:     w.IsMuted,
	}
	for i := 0; i < len(w.ParticipantIDs) && i < 2; i++ {
		chat.ParticipantIDs[i] = w.ParticipantIDs[i]
	}
	if w.LastMessage != nil {
		last := w.LastMessage.toModel()
		chat.LastMessage = &last
	}
	return chat
}
