// Package mongodb adapts the crossref DocumentStore port to a MongoDB
// database via the official driver.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	crossref_out "github.com/replay-api/gameday-index/pkg/domain/crossref/ports/out"
)

// Store implements crossref_out.DocumentStore over one mongo database.
type Store struct {
	db *mongo.Database
}

// Connect dials the server, verifies connectivity and returns the store
// plus a disconnect func for the composition root to defer.
func Connect(ctx context.Context, uri, database string) (*Store, func(context.Context) error, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongodb: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return &Store{db: client.Database(database)}, client.Disconnect, nil
}

// NewStore wraps an already-connected database (tests, shared clients).
func NewStore(db *mongo.Database) *Store {
	return &Store{db: db}
}

var _ crossref_out.DocumentStore = (*Store)(nil)

// FindOne returns the matching document, (nil, nil) when absent.
func (s *Store) FindOne(ctx context.Context, collection string, filter bson.M) (bson.M, error) {
	var doc bson.M
	err := s.db.Collection(collection).FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Store) CountDocuments(ctx context.Context, collection string, filter bson.M) (int64, error) {
	return s.db.Collection(collection).CountDocuments(ctx, filter)
}

func (s *Store) Aggregate(ctx context.Context, collection string, pipeline []bson.M) ([]bson.M, error) {
	cursor, err := s.db.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *Store) ReplaceOne(ctx context.Context, collection string, filter bson.M, doc bson.M, upsert bool) error {
	_, err := s.db.Collection(collection).ReplaceOne(ctx, filter, doc,
		options.Replace().SetUpsert(upsert))
	return err
}

// BulkWrite applies the ops unordered: sibling updates proceed past
// individual failures, matching the best-effort consistency contract.
func (s *Store) BulkWrite(ctx context.Context, collection string, ops []crossref_out.UpdateOp) error {
	if len(ops) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, len(ops))
	for i, op := range ops {
		models[i] = mongo.NewUpdateOneModel().
			SetFilter(op.Filter).
			SetUpdate(op.Update).
			SetUpsert(op.Upsert)
	}
	_, err := s.db.Collection(collection).BulkWrite(ctx, models,
		options.BulkWrite().SetOrdered(false))
	return err
}

// HealthCheck verifies the database answers.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.Client().Ping(ctx, readpref.Primary())
}
