package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nikhilbhutani/docchat/internal/apperr"
	"github.com/nikhilbhutani/docchat/internal/config"
	"github.com/nikhilbhutani/docchat/internal/models"
)

const collectionName = "sessions"

// Connect dials MongoDB and verifies the connection.
func Connect(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

type MongoStore struct {
	coll *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(collectionName)}
}

// EnsureIndexes creates the unique (user_id, session_id) index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "session_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create session index: %w", err)
	}
	return nil
}

func key(userID, sessionID string) bson.M {
	return bson.M{"user_id": userID, "session_id": sessionID}
}

func (s *MongoStore) Find(ctx context.Context, userID, sessionID string) (*models.Session, error) {
	var sess models.Session
	err := s.coll.FindOne(ctx, key(userID, sessionID)).Decode(&sess)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperr.NotFound("Session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &sess, nil
}

func (s *MongoStore) Ensure(ctx context.Context, userID, sessionID string) (*models.Session, error) {
	now := time.Now().UTC()
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var sess models.Session
	err := s.coll.FindOneAndUpdate(ctx, key(userID, sessionID), bson.M{
		"$setOnInsert": bson.M{
			"documents":  bson.A{},
			"messages":   bson.A{},
			"created_at": now,
			"updated_at": now,
		},
	}, opts).Decode(&sess)
	if err != nil {
		return nil, fmt.Errorf("ensure session: %w", err)
	}
	return &sess, nil
}

func (s *MongoStore) AppendDocument(ctx context.Context, userID, sessionID string, doc models.Document) (bool, error) {
	// The doc_id guard in the filter makes check-and-push a single atomic step.
	filter := key(userID, sessionID)
	filter["documents.doc_id"] = bson.M{"$ne": doc.DocID}

	res, err := s.coll.UpdateOne(ctx, filter, bson.M{
		"$push": bson.M{"documents": doc},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return false, fmt.Errorf("attach document: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

func (s *MongoStore) RemoveDocument(ctx context.Context, userID, sessionID, docID string) error {
	res, err := s.coll.UpdateOne(ctx, key(userID, sessionID), bson.M{
		"$pull": bson.M{"documents": bson.M{"doc_id": docID}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("detach document: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("Session not found")
	}
	return nil
}

func (s *MongoStore) AppendMessage(ctx context.Context, userID, sessionID string, msg models.ChatMessage) error {
	res, err := s.coll.UpdateOne(ctx, key(userID, sessionID), bson.M{
		"$push": bson.M{"messages": msg},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("Session not found")
	}
	return nil
}

func (s *MongoStore) ListByUser(ctx context.Context, userID string) ([]models.Session, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer cursor.Close(ctx)

	sessions := []models.Session{}
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	return sessions, nil
}

func (s *MongoStore) CountByUser(ctx context.Context, userID string) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}
