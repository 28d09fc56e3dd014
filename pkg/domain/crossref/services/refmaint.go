package crossref_services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	gameday "github.com/replay-api/gameday-index/pkg/domain"
	crossref_entities "github.com/replay-api/gameday-index/pkg/domain/crossref/entities"
	crossref_keys "github.com/replay-api/gameday-index/pkg/domain/crossref/keys"
	crossref_out "github.com/replay-api/gameday-index/pkg/domain/crossref/ports/out"
	"github.com/replay-api/gameday-index/pkg/metrics"
)

// ReferenceMaintainer keeps back-pointers on *other* aggregation records
// consistent with a freshly rebuilt record: removed references are pulled
// out of the neighbor's record, added references are upserted in.
type ReferenceMaintainer struct {
	store   crossref_out.DocumentStore
	aggColl string
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewReferenceMaintainer builds a maintainer over the aggregation
// collection.
func NewReferenceMaintainer(store crossref_out.DocumentStore, aggColl string, log *zap.Logger, m *metrics.Metrics) *ReferenceMaintainer {
	if aggColl == "" {
		aggColl = DefaultAggregationCollection
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReferenceMaintainer{store: store, aggColl: aggColl, log: log, metrics: m, now: time.Now}
}

// Diff compares the previous and fresh aggregation records of one entity and
// emits the update operations that keep referencing records consistent. old
// may be nil (first rebuild).
func (r *ReferenceMaintainer) Diff(old, fresh *crossref_entities.AggregationRecord) []crossref_out.UpdateOp {
	if fresh == nil {
		return nil
	}
	now := r.now().UTC()
	ownIDsField := crossref_entities.IDsField(fresh.ResourceType)
	ownKeysField := crossref_entities.KeysField(fresh.ResourceType)
	// The key entry is an array element, never an update-path segment:
	// external keys contain dots and would be split into nested documents.
	ownKeyEntry := bson.M{
		crossref_entities.PairKey:   fresh.ExternalKey,
		crossref_entities.PairValue: fresh.GamedayID,
	}

	var ops []crossref_out.UpdateOp
	for _, rt := range gameday.AllResourceTypes {
		oldKeys := map[string]string{}
		if old != nil {
			oldKeys = old.RefSetFor(rt).Keys
		}
		newKeys := fresh.RefSetFor(rt).Keys

		// The filter names the neighbor's type (rt), not the rebuilt
		// record's own type.
		for removed := range oldKeys {
			if _, still := newKeys[removed]; still {
				continue
			}
			ops = append(ops, crossref_out.UpdateOp{
				Filter: bson.M{
					crossref_entities.FieldResourceType: string(rt),
					crossref_entities.FieldExternalKey:  removed,
				},
				Update: bson.M{
					"$pull": bson.M{
						ownIDsField:  fresh.GamedayID,
						ownKeysField: bson.M{crossref_entities.PairKey: fresh.ExternalKey},
					},
					"$set": bson.M{crossref_entities.FieldLastUpdated: now},
				},
			})
		}

		for added, neighborID := range newKeys {
			if _, had := oldKeys[added]; had {
				continue
			}
			setOnInsert := bson.M{
				crossref_entities.FieldGamedayID: neighborID,
			}
			// Identity replicas are only inferable from simple keys.
			if !compoundTypes[rt] {
				if ref, err := crossref_keys.ParseRef(added); err == nil {
					setOnInsert[crossref_entities.FieldExternalID] = ref.ID
					setOnInsert[crossref_entities.FieldExternalIDScope] = ref.Scope
				}
			}
			ops = append(ops, crossref_out.UpdateOp{
				Filter: bson.M{
					crossref_entities.FieldResourceType: string(rt),
					crossref_entities.FieldExternalKey:  added,
				},
				Update: bson.M{
					"$addToSet": bson.M{
						ownIDsField:  fresh.GamedayID,
						ownKeysField: ownKeyEntry,
					},
					"$set":         bson.M{crossref_entities.FieldLastUpdated: now},
					"$setOnInsert": setOnInsert,
				},
				Upsert: true,
			})
		}
	}
	return ops
}

// Apply runs the ops as one unordered batch. Individual failures are logged
// and counted; consistency is best-effort by contract.
func (r *ReferenceMaintainer) Apply(ctx context.Context, ops []crossref_out.UpdateOp) error {
	if len(ops) == 0 {
		return nil
	}
	if err := r.store.BulkWrite(ctx, r.aggColl, ops); err != nil {
		r.metrics.ObserveRefMaintFailure()
		r.log.Warn("back-pointer batch write failed", zap.Int("ops", len(ops)), zap.Error(err))
		return storageErr(err, "apply reference maintenance ops")
	}
	return nil
}
