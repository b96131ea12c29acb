package secret

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// secretDocument is one key in the secrets collection, keyed by name
type secretDocument struct {
	Name      string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStore reads the key from a MongoDB collection
type MongoStore struct {
	uri        string
	database   string
	collection string
}

// NewMongoStore creates a new MongoStore instance. The connection is opened
// per call since the key is read once at startup.
func NewMongoStore(uri, database, collection string) *MongoStore {
	return &MongoStore{
		uri:        uri,
		database:   database,
		collection: collection,
	}
}

func (s *MongoStore) withCollection(ctx context.Context, fn func(*mongo.Collection) error) error {
	if s.uri == "" {
		return fmt.Errorf("mongo URI not configured")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.uri))
	if err != nil {
		return fmt.Errorf("failed to connect to mongo: %w", err)
	}
	defer client.Disconnect(context.Background())

	return fn(client.Database(s.database).Collection(s.collection))
}

// GetSecret returns the value stored under name
func (s *MongoStore) GetSecret(ctx context.Context, name string) ([]byte, error) {
	var doc secretDocument
	err := s.withCollection(ctx, func(coll *mongo.Collection) error {
		return coll.FindOne(ctx, bson.M{"_id": name}).Decode(&doc)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("secret %s not found in %s.%s", name, s.database, s.collection)
	}
	if err != nil {
		return nil, err
	}
	return []byte(doc.Value), nil
}

// PutSecret upserts the value stored under name
func (s *MongoStore) PutSecret(ctx context.Context, name string, value []byte) error {
	return s.withCollection(ctx, func(coll *mongo.Collection) error {
		doc := secretDocument{Name: name, Value: string(value), UpdatedAt: time.Now().UTC()}
		_, err := coll.ReplaceOne(ctx, bson.M{"_id": name}, doc, options.Replace().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("failed to store secret %s: %w", name, err)
		}
		return nil
	})
}
