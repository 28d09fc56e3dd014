package crossref_services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	gameday "github.com/replay-api/gameday-index/pkg/domain"
	crossref_entities "github.com/replay-api/gameday-index/pkg/domain/crossref/entities"
	crossref_out "github.com/replay-api/gameday-index/pkg/domain/crossref/ports/out"
)

func stageRecord(gamedayID string, eventKeys map[string]string) *crossref_entities.AggregationRecord {
	rec := &crossref_entities.AggregationRecord{
		ResourceType: gameday.ResourceStage,
		ExternalKey:  "s1[#]fifa",
		GamedayID:    gamedayID,
		Refs:         map[gameday.ResourceType]crossref_entities.RefSet{},
	}
	if len(eventKeys) > 0 {
		rec.Refs[gameday.ResourceEvent] = crossref_entities.NewRefSet(eventKeys)
	}
	return rec
}

func opForKey(ops []crossref_out.UpdateOp, externalKey string) (crossref_out.UpdateOp, bool) {
	for _, op := range ops {
		if op.Filter[crossref_entities.FieldExternalKey] == externalKey {
			return op, true
		}
	}
	return crossref_out.UpdateOp{}, false
}

func TestDiffEmitsAddAndRemoveOps(t *testing.T) {
	rm := NewReferenceMaintainer(newFakeStore(), "aggregations", nil, nil)
	fixed := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	rm.now = func() time.Time { return fixed }

	old := stageRecord("GS1", map[string]string{
		"e1[#]fifa": "GE1",
		"e3[#]fifa": "GE3",
	})
	fresh := stageRecord("GS1", map[string]string{
		"e1[#]fifa": "GE1",
		"e2[#]fifa": "GE2",
	})

	ops := rm.Diff(old, fresh)
	require.Len(t, ops, 2)

	removed, ok := opForKey(ops, "e3[#]fifa")
	require.True(t, ok)
	assert.False(t, removed.Upsert)
	assert.Equal(t, "event", removed.Filter[crossref_entities.FieldResourceType],
		"filter names the neighbor's type, not the rebuilt record's")
	assert.Equal(t, bson.M{
		"stageIds":  "GS1",
		"stageKeys": bson.M{"k": "s1[#]fifa"},
	}, removed.Update["$pull"])
	assert.Nil(t, removed.Update["$unset"])
	assert.Equal(t, bson.M{crossref_entities.FieldLastUpdated: fixed}, removed.Update["$set"])

	added, ok := opForKey(ops, "e2[#]fifa")
	require.True(t, ok)
	assert.True(t, added.Upsert)
	assert.Equal(t, "event", added.Filter[crossref_entities.FieldResourceType])
	assert.Equal(t, bson.M{
		"stageIds":  "GS1",
		"stageKeys": bson.M{"k": "s1[#]fifa", "v": "GS1"},
	}, added.Update["$addToSet"])
	assert.Equal(t, bson.M{crossref_entities.FieldLastUpdated: fixed}, added.Update["$set"])
	assert.Equal(t, bson.M{
		crossref_entities.FieldGamedayID:       "GE2",
		crossref_entities.FieldExternalID:      "e2",
		crossref_entities.FieldExternalIDScope: "fifa",
	}, added.Update["$setOnInsert"])
}

func TestDiffFirstRebuildUpsertsEverything(t *testing.T) {
	rm := NewReferenceMaintainer(newFakeStore(), "aggregations", nil, nil)

	fresh := stageRecord("GS1", map[string]string{"e1[#]fifa": "GE1"})
	ops := rm.Diff(nil, fresh)
	require.Len(t, ops, 1)
	assert.True(t, ops[0].Upsert)
}

// Compound keys carry no single identity pair, so the stub upsert for a
// compound neighbor seeds the internal id only.
func TestDiffCompoundNeighborOmitsIdentityPair(t *testing.T) {
	rm := NewReferenceMaintainer(newFakeStore(), "aggregations", nil, nil)

	fresh := stageRecord("GS1", nil)
	fresh.Refs[gameday.ResourceRanking] = crossref_entities.NewRefSet(map[string]string{
		"s1[#]fifa[s-t]t9[#]fifa[dt]d[rk]1": "GR1",
	})

	ops := rm.Diff(nil, fresh)
	require.Len(t, ops, 1)
	assert.Equal(t, bson.M{crossref_entities.FieldGamedayID: "GR1"}, ops[0].Update["$setOnInsert"])
}

func TestDiffNoChangesNoOps(t *testing.T) {
	rm := NewReferenceMaintainer(newFakeStore(), "aggregations", nil, nil)
	rec := stageRecord("GS1", map[string]string{"e1[#]fifa": "GE1"})
	assert.Empty(t, rm.Diff(rec, rec))
}

func TestApplyWritesBackPointers(t *testing.T) {
	store := newFakeStore()
	store.insert("aggregations", bson.M{
		crossref_entities.FieldResourceType: "event",
		crossref_entities.FieldExternalKey:  "e3[#]fifa",
		crossref_entities.FieldGamedayID:    "GE3",
		"stageIds":                          []any{"GS1"},
		"stageKeys":                         crossref_entities.KeyPairs(map[string]string{"s1[#]fifa": "GS1"}),
	})
	rm := NewReferenceMaintainer(store, "aggregations", nil, nil)

	old := stageRecord("GS1", map[string]string{"e3[#]fifa": "GE3"})
	fresh := stageRecord("GS1", map[string]string{"e2[#]fifa": "GE2"})
	require.NoError(t, rm.Apply(context.Background(), rm.Diff(old, fresh)))

	stale, err := store.FindOne(context.Background(), "aggregations",
		bson.M{crossref_entities.FieldExternalKey: "e3[#]fifa"})
	require.NoError(t, err)
	require.NotNil(t, stale)
	assert.Empty(t, crossref_entities.StringSlice(stale["stageIds"]))
	assert.NotContains(t, crossref_entities.KeyMap(stale["stageKeys"]), "s1[#]fifa")

	created, err := store.FindOne(context.Background(), "aggregations",
		bson.M{crossref_entities.FieldExternalKey: "e2[#]fifa"})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "GE2", created[crossref_entities.FieldGamedayID])
	assert.Equal(t, "e2", created[crossref_entities.FieldExternalID])
	assert.Equal(t, []string{"GS1"}, crossref_entities.StringSlice(created["stageIds"]))
	assert.Equal(t, "GS1", crossref_entities.KeyMap(created["stageKeys"])["s1[#]fifa"])
}

// Ranking and keyMoment keys embed ISO timestamps, so a back-pointer entry
// for them carries dots. The entry must survive as one key, not as a nested
// document split at every dot.
func TestApplyKeepsDottedKeysIntact(t *testing.T) {
	store := newFakeStore()
	rm := NewReferenceMaintainer(store, "aggregations", nil, nil)
	ctx := context.Background()

	dotted := "s1[#]fifa[s-t]t9[#]fifa[dt]2026-06-01T10:00:00.000Z[rk]1"
	fresh := &crossref_entities.AggregationRecord{
		ResourceType: gameday.ResourceRanking,
		ExternalKey:  dotted,
		GamedayID:    "GR1",
		Refs: map[gameday.ResourceType]crossref_entities.RefSet{
			gameday.ResourceTeam: crossref_entities.NewRefSet(map[string]string{"t9[#]fifa": "GT9"}),
		},
	}
	require.NoError(t, rm.Apply(ctx, rm.Diff(nil, fresh)))

	team, err := store.FindOne(ctx, "aggregations",
		bson.M{crossref_entities.FieldExternalKey: "t9[#]fifa"})
	require.NoError(t, err)
	require.NotNil(t, team)
	assert.Equal(t, "GR1", crossref_entities.KeyMap(team["rankingKeys"])[dotted])
	assert.Equal(t, []string{"GR1"}, crossref_entities.StringSlice(team["rankingIds"]))

	gone := &crossref_entities.AggregationRecord{
		ResourceType: gameday.ResourceRanking,
		ExternalKey:  dotted,
		GamedayID:    "GR1",
		Refs:         map[gameday.ResourceType]crossref_entities.RefSet{},
	}
	require.NoError(t, rm.Apply(ctx, rm.Diff(fresh, gone)))

	team, err = store.FindOne(ctx, "aggregations",
		bson.M{crossref_entities.FieldExternalKey: "t9[#]fifa"})
	require.NoError(t, err)
	assert.NotContains(t, crossref_entities.KeyMap(team["rankingKeys"]), dotted)
	assert.Empty(t, crossref_entities.StringSlice(team["rankingIds"]))
}

func TestApplySurfacesStorageError(t *testing.T) {
	store := newFakeStore()
	store.failOn["aggregations"] = assert.AnError
	rm := NewReferenceMaintainer(store, "aggregations", nil, nil)

	err := rm.Apply(context.Background(), rm.Diff(nil, stageRecord("GS1", map[string]string{"e1[#]fifa": "GE1"})))
	assert.Equal(t, gameday.CodeStorageError, gameday.CodeOf(err))
}

func TestApplyNoOpsNoWrite(t *testing.T) {
	store := newFakeStore()
	store.failOn["aggregations"] = assert.AnError
	rm := NewReferenceMaintainer(store, "aggregations", nil, nil)
	assert.NoError(t, rm.Apply(context.Background(), nil))
}
