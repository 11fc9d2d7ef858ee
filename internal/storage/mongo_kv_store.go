package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoConnectTimeout = 10 * time.Second
	mongoKVCollection   = "kv_store"
)

type mongoKVDoc struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoKVStore implements KVStore on a MongoDB collection, one document per key.
type MongoKVStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoKVStore connects to uri and verifies the connection.
func NewMongoKVStore(ctx context.Context, uri, database string) (*MongoKVStore, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	return &MongoKVStore{
		client:     client,
		collection: client.Database(database).Collection(mongoKVCollection),
	}, nil
}

// Get returns the value stored under key, or def when no document exists.
func (s *MongoKVStore) Get(ctx context.Context, key, def string) (string, error) {
	var doc mongoKVDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return def, nil
	}
	if err != nil {
		return "", fmt.Errorf("reading key %q: %w", key, err)
	}
	return doc.Value, nil
}

// Set upserts the document for key.
func (s *MongoKVStore) Set(ctx context.Context, key, value string) error {
	doc := mongoKVDoc{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("writing key %q: %w", key, err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoKVStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
