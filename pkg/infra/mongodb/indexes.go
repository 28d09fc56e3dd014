package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	crossref_entities "github.com/replay-api/gameday-index/pkg/domain/crossref/entities"
)

// EnsureAggregationIndexes creates the two unique indexes the aggregation
// collection's correctness relies on: (resourceType, externalKey) and
// (resourceType, gamedayId). Idempotent.
func (s *Store) EnsureAggregationIndexes(ctx context.Context, collection string) error {
	models := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: crossref_entities.FieldResourceType, Value: 1},
				{Key: crossref_entities.FieldExternalKey, Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_type_external_key"),
		},
		{
			Keys: bson.D{
				{Key: crossref_entities.FieldResourceType, Value: 1},
				{Key: crossref_entities.FieldGamedayID, Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_type_gameday_id"),
		},
	}
	if _, err := s.db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create aggregation indexes: %w", err)
	}
	return nil
}
