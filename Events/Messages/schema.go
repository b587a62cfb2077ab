package messages

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	Users "campusnet/Events/Users"
)

// Validation limits for direct messages.
const (
	MaxTextLength = 1000

	DefaultPageLimit = 30
	MaxPageLimit     = 100
)

// Conversation is the stored two-party conversation document. lastMessage
// is a materialized snapshot of the newest message, kept in sync on every
// send; it is never a second source of truth.
type Conversation struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty"`
	Participants []primitive.ObjectID `bson:"participants"`
	LastMessage  LastMessage          `bson:"lastMessage"`
	CreatedAt    time.Time            `bson:"createdAt"`
	UpdatedAt    time.Time            `bson:"updatedAt"`
}

type LastMessage struct {
	Text      string              `bson:"text"`
	Sender    *primitive.ObjectID `bson:"sender"`
	CreatedAt *time.Time          `bson:"createdAt"`
}

// Message is the stored message document. readAt stays null until the
// recipient opens the thread.
type Message struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Conversation primitive.ObjectID `bson:"conversation"`
	Sender       primitive.ObjectID `bson:"sender"`
	Recipient    primitive.ObjectID `bson:"recipient"`
	Text         string             `bson:"text"`
	ReadAt       *time.Time         `bson:"readAt"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
}

// MessageResponse is the wire shape of a message with both parties
// populated.
type MessageResponse struct {
	ID           primitive.ObjectID `json:"_id"`
	Conversation primitive.ObjectID `json:"conversation"`
	Sender       Users.Summary      `json:"sender"`
	Recipient    Users.Summary      `json:"recipient"`
	Text         string             `json:"text"`
	ReadAt       *time.Time         `json:"readAt"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

type LastMessageResponse struct {
	Text      string         `json:"text"`
	Sender    *Users.Summary `json:"sender"`
	CreatedAt *time.Time     `json:"createdAt"`
}

// ConversationItem is one entry in the conversation list: the other
// participant, the last-message snapshot, and the caller's unread count.
type ConversationItem struct {
	ID          primitive.ObjectID  `json:"_id"`
	Partner     *Users.Summary      `json:"partner"`
	LastMessage LastMessageResponse `json:"lastMessage"`
	UpdatedAt   time.Time           `json:"updatedAt"`
	UnreadCount int64               `json:"unreadCount"`
}

func buildMessageResponse(m *Message, summaries map[primitive.ObjectID]Users.Summary) MessageResponse {
	return MessageResponse{
		ID:           m.ID,
		Conversation: m.Conversation,
		Sender:       summaries[m.Sender],
		Recipient:    summaries[m.Recipient],
		Text:         m.Text,
		ReadAt:       m.ReadAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// partnerOf returns the other participant of a two-party conversation.
func (c *Conversation) partnerOf(userID primitive.ObjectID) (primitive.ObjectID, bool) {
	for _, id := range c.Participants {
		if id != userID {
			return id, true
		}
	}
	return primitive.ObjectID{}, false
}
