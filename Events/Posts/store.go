package posts

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

var ErrNotFound = errors.New("post not found")

// Store is the persistence surface the posts controller needs.
type Store interface {
	Insert(ctx context.Context, post *Post) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*Post, error)
	FindPage(ctx context.Context, authors []primitive.ObjectID, before *time.Time, limit int) ([]Post, error)
	ToggleLike(ctx context.Context, postID, userID primitive.ObjectID) (*Post, error)
	AddComment(ctx context.Context, postID primitive.ObjectID, comment Comment) (*Post, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// MongoStore implements Store on the posts collection.
type MongoStore struct {
	db *Mdb.Mdb
}

func NewMongoStore(db *Mdb.Mdb) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) Insert(ctx context.Context, post *Post) error {
	now := time.Now().UTC()
	if post.ID.IsZero() {
		post.ID = primitive.NewObjectID()
	}
	post.CreatedAt = now
	post.UpdatedAt = now
	post.normalize()

	if _, err := s.db.Posts().InsertOne(ctx, post); err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

func (s *MongoStore) FindByID(ctx context.Context, id primitive.ObjectID) (*Post, error) {
	var post Post
	if err := s.db.Posts().FindOne(ctx, bson.M{"_id": id}).Decode(&post); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch post: %w", err)
	}
	post.normalize()
	return &post, nil
}

// FindPage returns up to limit posts by the given authors, newest first,
// strictly before the cursor when one is given. Callers fetch limit+1 to
// detect whether more pages exist.
func (s *MongoStore) FindPage(ctx context.Context, authors []primitive.ObjectID, before *time.Time, limit int) ([]Post, error) {
	filter := bson.M{"author": bson.M{"$in": authors}}
	if before != nil {
		filter["createdAt"] = bson.M{"$lt": *before}
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(int64(limit))
	cursor, err := s.db.Posts().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch posts: %w", err)
	}
	defer cursor.Close(ctx)

	var results []Post
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode posts: %w", err)
	}
	for i := range results {
		results[i].normalize()
	}
	return results, nil
}

// ToggleLike flips the caller's membership in the likes set and returns the
// updated post. Calling it twice restores the original state.
func (s *MongoStore) ToggleLike(ctx context.Context, postID, userID primitive.ObjectID) (*Post, error) {
	post, err := s.FindByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	update := bson.M{"$addToSet": bson.M{"likes": userID}}
	for _, id := range post.Likes {
		if id == userID {
			update = bson.M{"$pull": bson.M{"likes": userID}}
			break
		}
	}

	return s.findOneAndUpdate(ctx, postID, update)
}

func (s *MongoStore) AddComment(ctx context.Context, postID primitive.ObjectID, comment Comment) (*Post, error) {
	return s.findOneAndUpdate(ctx, postID, bson.M{
		"$push": bson.M{"comments": comment},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	})
}

func (s *MongoStore) findOneAndUpdate(ctx context.Context, postID primitive.ObjectID, update bson.M) (*Post, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var post Post
	if err := s.db.Posts().FindOneAndUpdate(ctx, bson.M{"_id": postID}, update, opts).Decode(&post); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update post: %w", err)
	}
	post.normalize()
	return &post, nil
}

func (s *MongoStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, err := s.db.Posts().DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	return nil
}
