package stories

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

var ErrNotFound = errors.New("story not found")

// Store is the persistence surface the stories controller needs.
type Store interface {
	Insert(ctx context.Context, story *Story) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*Story, error)
	FindActive(ctx context.Context, limit int) ([]Story, error)
	FindActiveByAuthor(ctx context.Context, authorID primitive.ObjectID) ([]Story, error)
	MarkViewed(ctx context.Context, storyID, viewerID primitive.ObjectID) (*Story, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// MongoStore implements Store on the stories collection.
type MongoStore struct {
	db *Mdb.Mdb
}

func NewMongoStore(db *Mdb.Mdb) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) Insert(ctx context.Context, story *Story) error {
	now := time.Now().UTC()
	if story.ID.IsZero() {
		story.ID = primitive.NewObjectID()
	}
	story.CreatedAt = now
	story.UpdatedAt = now
	story.ExpiresAt = now.Add(Lifetime)
	story.normalize()

	if _, err := s.db.Stories().InsertOne(ctx, story); err != nil {
		return fmt.Errorf("failed to insert story: %w", err)
	}
	return nil
}

func (s *MongoStore) FindByID(ctx context.Context, id primitive.ObjectID) (*Story, error) {
	var story Story
	if err := s.db.Stories().FindOne(ctx, bson.M{"_id": id}).Decode(&story); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch story: %w", err)
	}
	story.normalize()
	return &story, nil
}

func (s *MongoStore) FindActive(ctx context.Context, limit int) ([]Story, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(int64(limit))
	return s.find(ctx, bson.M{"expiresAt": bson.M{"$gt": time.Now().UTC()}}, opts)
}

func (s *MongoStore) FindActiveByAuthor(ctx context.Context, authorID primitive.ObjectID) ([]Story, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	filter := bson.M{
		"author":    authorID,
		"expiresAt": bson.M{"$gt": time.Now().UTC()},
	}
	return s.find(ctx, filter, opts)
}

func (s *MongoStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]Story, error) {
	cursor, err := s.db.Stories().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stories: %w", err)
	}
	defer cursor.Close(ctx)

	var results []Story
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode stories: %w", err)
	}
	for i := range results {
		results[i].normalize()
	}
	return results, nil
}

// MarkViewed adds the viewer to the story's viewer set. Existence and
// expiry are checked in the same atomic update: an expired or missing story
// yields ErrNotFound.
func (s *MongoStore) MarkViewed(ctx context.Context, storyID, viewerID primitive.ObjectID) (*Story, error) {
	filter := bson.M{
		"_id":       storyID,
		"expiresAt": bson.M{"$gt": time.Now().UTC()},
	}
	update := bson.M{"$addToSet": bson.M{"viewers": viewerID}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var story Story
	if err := s.db.Stories().FindOneAndUpdate(ctx, filter, update, opts).Decode(&story); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to mark story viewed: %w", err)
	}
	story.normalize()
	return &story, nil
}

func (s *MongoStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, err := s.db.Stories().DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete story: %w", err)
	}
	return nil
}
