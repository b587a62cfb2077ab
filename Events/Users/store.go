package users

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	Mdb "campusnet/Services/Mdb"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already in use")
)

// Store is the persistence surface the user and auth controllers need.
type Store interface {
	Insert(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, update ProfileUpdate) (*User, error)
	SetProfilePicture(ctx context.Context, id primitive.ObjectID, url string) (*User, error)
	Search(ctx context.Context, viewerID primitive.ObjectID, q string, limit int) ([]User, error)
	SetFollow(ctx context.Context, viewerID, targetID primitive.ObjectID, follow bool) error
	Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]Summary, error)
}

// MongoStore implements Store on the users collection.
type MongoStore struct {
	db *Mdb.Mdb
}

func NewMongoStore(db *Mdb.Mdb) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) Insert(ctx context.Context, user *User) error {
	now := time.Now().UTC()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	user.normalize()

	if _, err := s.db.Users().InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *MongoStore) FindByID(ctx context.Context, id primitive.ObjectID) (*User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*User, error) {
	var user User
	if err := s.db.Users().FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	user.normalize()
	return &user, nil
}

func (s *MongoStore) UpdateProfile(ctx context.Context, id primitive.ObjectID, update ProfileUpdate) (*User, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	assign := func(field string, value *string) {
		if value != nil {
			set[field] = *value
		}
	}
	assign("firstName", update.FirstName)
	assign("lastName", update.LastName)
	assign("profilePicture", update.ProfilePicture)
	assign("status", update.Status)
	assign("bio", update.Bio)
	assign("university", update.University)
	assign("major", update.Major)

	return s.findOneAndUpdate(ctx, id, bson.M{"$set": set})
}

func (s *MongoStore) SetProfilePicture(ctx context.Context, id primitive.ObjectID, url string) (*User, error) {
	return s.findOneAndUpdate(ctx, id, bson.M{
		"$set": bson.M{"profilePicture": url, "updatedAt": time.Now().UTC()},
	})
}

func (s *MongoStore) findOneAndUpdate(ctx context.Context, id primitive.ObjectID, update bson.M) (*User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user User
	if err := s.db.Users().FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	user.normalize()
	return &user, nil
}

func (s *MongoStore) Search(ctx context.Context, viewerID primitive.ObjectID, q string, limit int) ([]User, error) {
	filter := bson.M{"_id": bson.M{"$ne": viewerID}}
	if q != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"firstName": pattern},
			bson.M{"lastName": pattern},
			bson.M{"email": pattern},
			bson.M{"university": pattern},
			bson.M{"major": pattern},
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(int64(limit))
	cursor, err := s.db.Users().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer cursor.Close(ctx)

	var results []User
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	for i := range results {
		results[i].normalize()
	}
	return results, nil
}

// SetFollow adds or removes both sides of the follow relation as a pair of
// single-document updates. The pair is not wrapped in a transaction: a
// failure between the two writes leaves the graph asymmetric. This matches
// the behavior the API has always had; see DESIGN.md.
func (s *MongoStore) SetFollow(ctx context.Context, viewerID, targetID primitive.ObjectID, follow bool) error {
	op := "$pull"
	if follow {
		op = "$addToSet"
	}

	if _, err := s.db.Users().UpdateOne(ctx,
		bson.M{"_id": viewerID},
		bson.M{op: bson.M{"following": targetID}},
	); err != nil {
		return fmt.Errorf("failed to update following set: %w", err)
	}
	if _, err := s.db.Users().UpdateOne(ctx,
		bson.M{"_id": targetID},
		bson.M{op: bson.M{"followers": viewerID}},
	); err != nil {
		return fmt.Errorf("failed to update followers set: %w", err)
	}
	return nil
}

func (s *MongoStore) Summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]Summary, error) {
	summaries := make(map[primitive.ObjectID]Summary, len(ids))
	if len(ids) == 0 {
		return summaries, nil
	}

	opts := options.Find().SetProjection(bson.M{
		"firstName": 1, "lastName": 1, "profilePicture": 1, "status": 1,
	})
	cursor, err := s.db.Users().Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user summaries: %w", err)
	}
	defer cursor.Close(ctx)

	var results []Summary
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode user summaries: %w", err)
	}
	for _, summary := range results {
		summaries[summary.ID] = summary
	}
	return summaries, nil
}
