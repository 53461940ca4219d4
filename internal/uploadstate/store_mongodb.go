package uploadstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type mongoSessionDocument struct {
	TokenID   string `bson:"_id"`
	Status    string `bson:"status"`
	UpdatedAt int64  `bson:"updated_at"`
	Data      []byte `bson:"data"`
}

// MongoDBStore stores sessions in MongoDB.
type MongoDBStore struct {
	collection *mongo.Collection
}

// NewMongoDBStore creates collection indexes if needed.
func NewMongoDBStore(database *mongo.Database) (*MongoDBStore, error) {
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}

	coll := database.Collection("upload_sessions")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "updated_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}
	if _, err := coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return nil, fmt.Errorf("create upload_sessions indexes: %w", err)
	}

	return &MongoDBStore{collection: coll}, nil
}

// Get returns the session of tokenID.
func (s *MongoDBStore) Get(ctx context.Context, tokenID string) (*Session, error) {
	var doc mongoSessionDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": tokenID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find upload session: %w", err)
	}
	sess, err := deserializeSession(doc.Data)
	if err != nil {
		return nil, fmt.Errorf("decode upload session: %w", err)
	}
	return sess, nil
}

// Save inserts or replaces a session.
func (s *MongoDBStore) Save(ctx context.Context, sess *Session) error {
	if err := validate(sess); err != nil {
		return err
	}
	payload, err := serializeSession(sess)
	if err != nil {
		return err
	}
	doc := mongoSessionDocument{
		TokenID:   sess.TokenID,
		Status:    string(sess.Status),
		UpdatedAt: sess.UpdatedAt.UnixNano(),
		Data:      payload,
	}
	_, err = s.collection.ReplaceOne(ctx, bson.M{"_id": sess.TokenID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save upload session: %w", err)
	}
	return nil
}

// Delete removes the session of tokenID.
func (s *MongoDBStore) Delete(ctx context.Context, tokenID string) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": tokenID})
	if err != nil {
		return fmt.Errorf("delete upload session: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns sessions most recently updated first.
func (s *MongoDBStore) List(ctx context.Context, limit int) ([]*Session, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(normalizeLimit(limit)))
	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list upload sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*Session
	for cursor.Next(ctx) {
		var doc mongoSessionDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode upload session document: %w", err)
		}
		sess, err := deserializeSession(doc.Data)
		if err != nil {
			return nil, fmt.Errorf("decode upload session: %w", err)
		}
		out = append(out, sess)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate upload sessions: %w", err)
	}
	return out, nil
}

// Close is a no-op; the shared client is owned by storage.
func (s *MongoDBStore) Close() error {
	return nil
}
