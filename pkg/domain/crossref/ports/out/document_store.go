// Package crossref_out declares the outbound ports of the cross-reference
// context. Adapters live under pkg/infra; the domain only sees these
// interfaces.
package crossref_out

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// UpdateOp is one element of a batched write: an update (or upsert) against
// a single document.
type UpdateOp struct {
	Filter bson.M
	Update bson.M
	Upsert bool
}

// DocumentStore is the storage contract the core assumes: a document
// database exposing per-collection lookups, counting, an aggregation
// pipeline primitive and batched writes.
//
// FindOne returns (nil, nil) when no document matches; every other failure
// is a transport/storage error surfaced verbatim.
type DocumentStore interface {
	FindOne(ctx context.Context, collection string, filter bson.M) (bson.M, error)
	CountDocuments(ctx context.Context, collection string, filter bson.M) (int64, error)
	Aggregate(ctx context.Context, collection string, pipeline []bson.M) ([]bson.M, error)
	ReplaceOne(ctx context.Context, collection string, filter bson.M, doc bson.M, upsert bool) error
	BulkWrite(ctx context.Context, collection string, ops []UpdateOp) error
}
