package messages

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	Mdb "campusnet/Services/Mdb"
)

var ErrNotFound = errors.New("conversation not found")

// Store is the persistence surface the messages controller needs.
type Store interface {
	FindConversationBetween(ctx context.Context, a, b primitive.ObjectID) (*Conversation, error)
	CreateConversation(ctx context.Context, a, b primitive.ObjectID) (*Conversation, error)
	FindConversations(ctx context.Context, userID primitive.ObjectID, limit int) ([]Conversation, error)
	InsertMessage(ctx context.Context, msg *Message) error
	SetLastMessage(ctx context.Context, conversationID primitive.ObjectID, last LastMessage) error
	FindMessages(ctx context.Context, conversationID primitive.ObjectID, before *time.Time, limit int) ([]Message, error)
	CountUnread(ctx context.Context, conversationID, recipientID primitive.ObjectID) (int64, error)
	MarkRead(ctx context.Context, conversationID, recipientID primitive.ObjectID) error
}

// MongoStore implements Store on the conversations and messages collections.
type MongoStore struct {
	db *Mdb.Mdb
}

func NewMongoStore(db *Mdb.Mdb) *MongoStore {
	return &MongoStore{db: db}
}

// FindConversationBetween looks up the conversation whose participant set
// is exactly {a, b}, regardless of insertion order.
func (s *MongoStore) FindConversationBetween(ctx context.Context, a, b primitive.ObjectID) (*Conversation, error) {
	filter := bson.M{"participants": bson.M{
		"$all":  []primitive.ObjectID{a, b},
		"$size": 2,
	}}

	var conv Conversation
	if err := s.db.Conversations().FindOne(ctx, filter).Decode(&conv); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch conversation: %w", err)
	}
	return &conv, nil
}

func (s *MongoStore) CreateConversation(ctx context.Context, a, b primitive.ObjectID) (*Conversation, error) {
	now := time.Now().UTC()
	conv := &Conversation{
		ID:           primitive.NewObjectID(),
		Participants: []primitive.ObjectID{a, b},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.db.Conversations().InsertOne(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

func (s *MongoStore) FindConversations(ctx context.Context, userID primitive.ObjectID, limit int) ([]Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}}).SetLimit(int64(limit))
	cursor, err := s.db.Conversations().Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conversations: %w", err)
	}
	defer cursor.Close(ctx)

	var results []Conversation
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}
	return results, nil
}

func (s *MongoStore) InsertMessage(ctx context.Context, msg *Message) error {
	now := time.Now().UTC()
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	msg.CreatedAt = now
	msg.UpdatedAt = now

	if _, err := s.db.Messages().InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// SetLastMessage refreshes the conversation's last-message snapshot and
// bumps updatedAt so the conversation list sorts it to the top.
func (s *MongoStore) SetLastMessage(ctx context.Context, conversationID primitive.ObjectID, last LastMessage) error {
	update := bson.M{"$set": bson.M{
		"lastMessage": last,
		"updatedAt":   time.Now().UTC(),
	}}
	if _, err := s.db.Conversations().UpdateOne(ctx, bson.M{"_id": conversationID}, update); err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	return nil
}

// FindMessages returns a page of messages newest first. A cursor narrows
// the page to messages created strictly before it.
func (s *MongoStore) FindMessages(ctx context.Context, conversationID primitive.ObjectID, before *time.Time, limit int) ([]Message, error) {
	filter := bson.M{"conversation": conversationID}
	if before != nil {
		filter["createdAt"] = bson.M{"$lt": *before}
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(int64(limit))
	cursor, err := s.db.Messages().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	defer cursor.Close(ctx)

	var results []Message
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return results, nil
}

func (s *MongoStore) CountUnread(ctx context.Context, conversationID, recipientID primitive.ObjectID) (int64, error) {
	filter := bson.M{
		"conversation": conversationID,
		"recipient":    recipientID,
		"readAt":       nil,
	}
	count, err := s.db.Messages().CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}

// MarkRead stamps readAt on every unread message addressed to the
// recipient in the conversation.
func (s *MongoStore) MarkRead(ctx context.Context, conversationID, recipientID primitive.ObjectID) error {
	filter := bson.M{
		"conversation": conversationID,
		"recipient":    recipientID,
		"readAt":       nil,
	}
	update := bson.M{"$set": bson.M{"readAt": time.Now().UTC()}}
	if _, err := s.db.Messages().UpdateMany(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}
	return nil
}
