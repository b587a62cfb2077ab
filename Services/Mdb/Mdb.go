package mdb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mdb is the shared handle to the document database. It is constructed once
// in main and injected into the stores that need collections.
type Mdb struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// Connect opens a client, verifies the connection, and selects the database.
func Connect(ctx context.Context, uri, database string) (*Mdb, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	return &Mdb{Client: client, Database: client.Database(database)}, nil
}

func (m *Mdb) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

func (m *Mdb) Users() *mongo.Collection         { return m.Database.Collection("users") }
func (m *Mdb) Posts() *mongo.Collection         { return m.Database.Collection("posts") }
func (m *Mdb) Stories() *mongo.Collection       { return m.Database.Collection("stories") }
func (m *Mdb) Conversations() *mongo.Collection { return m.Database.Collection("conversations") }
func (m *Mdb) Messages() *mongo.Collection      { return m.Database.Collection("messages") }

// EnsureIndexes creates every index the queries rely on. Safe to run on
// every startup; Mongo treats existing identical indexes as a no-op.
func (m *Mdb) EnsureIndexes(ctx context.Context) error {
	indexes := []struct {
		collection *mongo.Collection
		models     []mongo.IndexModel
	}{
		{m.Users(), []mongo.IndexModel{
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		}},
		{m.Posts(), []mongo.IndexModel{
			{Keys: bson.D{{Key: "author", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		}},
		{m.Stories(), []mongo.IndexModel{
			// TTL sweep removes expired stories on the database's own
			// schedule; reads still filter on expiresAt.
			{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
			{Keys: bson.D{{Key: "author", Value: 1}, {Key: "createdAt", Value: -1}}},
		}},
		{m.Conversations(), []mongo.IndexModel{
			{Keys: bson.D{{Key: "participants", Value: 1}}},
			{Keys: bson.D{{Key: "updatedAt", Value: -1}}},
		}},
		{m.Messages(), []mongo.IndexModel{
			{Keys: bson.D{{Key: "conversation", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "recipient", Value: 1}, {Key: "readAt", Value: 1}}},
		}},
	}

	for _, set := range indexes {
		if _, err := set.collection.Indexes().CreateMany(ctx, set.models); err != nil {
			return fmt.Errorf("failed to create indexes for %s: %w", set.collection.Name(), err)
		}
	}
	return nil
}
