// Package crossref_entities defines the documents and request/response
// shapes of the cross-reference index: the materialized aggregation record,
// home-document identity fields, fetch requests, routes and projections.
package crossref_entities

import (
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	gameday "github.com/replay-api/gameday-index/pkg/domain"
)

// Aggregation record field names shared with the storage layer.
const (
	FieldResourceType    = "resourceType"
	FieldExternalKey     = "externalKey"
	FieldGamedayID       = "gamedayId"
	FieldExternalID      = "_externalId"
	FieldExternalIDScope = "_externalIdScope"
	FieldName            = "name"
	FieldLastUpdated     = "lastUpdated"
)

// IDsField returns the aggregation-record field holding the id set for a
// neighbor type, e.g. "stageIds".
func IDsField(rt gameday.ResourceType) string {
	return string(rt) + "Ids"
}

// KeysField returns the aggregation-record field holding the
// externalKey->gamedayId entries for a neighbor type, e.g. "stageKeys".
func KeysField(rt gameday.ResourceType) string {
	return string(rt) + "Keys"
}

// Key entries are stored as an array of {k, v} pair documents, not as a map:
// external keys contain dots (ISO timestamps in keyMoment and ranking keys),
// and a dotted map key inside a $set/$unset path would be split into nested
// documents by the storage engine.
const (
	PairKey   = "k"
	PairValue = "v"
)

// RefSet is the per-neighbor-type materialization inside an aggregation
// record: the deduplicated internal ids plus the externalKey->id lookup.
// Invariant: IDs is exactly the value set of Keys.
type RefSet struct {
	IDs  []string
	Keys map[string]string
}

// NewRefSet builds a RefSet from an externalKey->gamedayId map, deriving the
// id list (sorted for stable storage layout).
func NewRefSet(keys map[string]string) RefSet {
	seen := make(map[string]bool, len(keys))
	ids := make([]string, 0, len(keys))
	for _, id := range keys {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return RefSet{IDs: ids, Keys: keys}
}

// AggregationRecord is the materialized one-hop neighborhood of a single
// entity, keyed uniquely by (ResourceType, ExternalKey).
type AggregationRecord struct {
	ResourceType    gameday.ResourceType
	ExternalKey     string
	GamedayID       string
	ExternalID      string
	ExternalIDScope string
	Name            string
	LastUpdated     time.Time

	// Refs holds one RefSet per neighbor type that has at least one entry.
	Refs map[gameday.ResourceType]RefSet
}

// RefSetFor returns the neighbor set for rt, empty when absent.
func (r *AggregationRecord) RefSetFor(rt gameday.ResourceType) RefSet {
	if r == nil {
		return RefSet{}
	}
	return r.Refs[rt]
}

// ToDocument flattens the record into its storage layout: identity fields
// plus "<type>Ids" / "<type>Keys" pairs per populated neighbor type.
func (r *AggregationRecord) ToDocument() bson.M {
	doc := bson.M{
		FieldResourceType:    string(r.ResourceType),
		FieldExternalKey:     r.ExternalKey,
		FieldGamedayID:       r.GamedayID,
		FieldExternalID:      r.ExternalID,
		FieldExternalIDScope: r.ExternalIDScope,
		FieldName:            r.Name,
		FieldLastUpdated:     r.LastUpdated,
	}
	for rt, set := range r.Refs {
		if len(set.Keys) == 0 {
			continue
		}
		ids := make([]any, len(set.IDs))
		for i, id := range set.IDs {
			ids[i] = id
		}
		doc[IDsField(rt)] = ids
		doc[KeysField(rt)] = KeyPairs(set.Keys)
	}
	return doc
}

// RecordFromDocument rebuilds an AggregationRecord from its storage layout.
// Unknown fields are ignored; neighbor fields are recognized by the
// "<type>Keys" suffix against the fixed type set.
func RecordFromDocument(doc bson.M) *AggregationRecord {
	if doc == nil {
		return nil
	}
	rec := &AggregationRecord{
		ResourceType:    gameday.ResourceType(asString(doc[FieldResourceType])),
		ExternalKey:     asString(doc[FieldExternalKey]),
		GamedayID:       asString(doc[FieldGamedayID]),
		ExternalID:      asString(doc[FieldExternalID]),
		ExternalIDScope: asString(doc[FieldExternalIDScope]),
		Name:            asString(doc[FieldName]),
		Refs:            make(map[gameday.ResourceType]RefSet),
	}
	if t, ok := doc[FieldLastUpdated].(time.Time); ok {
		rec.LastUpdated = t
	}
	for _, rt := range gameday.AllResourceTypes {
		raw, ok := doc[KeysField(rt)]
		if !ok {
			continue
		}
		keys := KeyMap(raw)
		if len(keys) == 0 {
			continue
		}
		rec.Refs[rt] = NewRefSet(keys)
	}
	return rec
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// KeyPairs flattens an externalKey->gamedayId map into its stored pair-array
// layout, sorted by key for a stable document shape.
func KeyPairs(keys map[string]string) []any {
	ks := make([]string, 0, len(keys))
	for k := range keys {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	pairs := make([]any, len(ks))
	for i, k := range ks {
		pairs[i] = bson.M{PairKey: k, PairValue: keys[k]}
	}
	return pairs
}

// KeyMap rebuilds the externalKey->gamedayId map from a stored pair array,
// tolerating the element decodings the driver produces.
func KeyMap(v any) map[string]string {
	var arr []any
	switch t := v.(type) {
	case []any:
		arr = t
	case bson.A:
		arr = t
	default:
		return nil
	}
	out := make(map[string]string, len(arr))
	for _, item := range arr {
		var m bson.M
		switch p := item.(type) {
		case bson.M:
			m = p
		case map[string]any:
			m = bson.M(p)
		case bson.D:
			m = bson.M{}
			for _, e := range p {
				m[e.Key] = e.Value
			}
		default:
			continue
		}
		k, _ := m[PairKey].(string)
		val, _ := m[PairValue].(string)
		if k != "" {
			out[k] = val
		}
	}
	return out
}

// StringSlice coerces a stored array into []string, tolerating the bson
// decodings the driver produces.
func StringSlice(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, raw := range vals {
			if s, ok := raw.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case bson.A:
		out := make([]string, 0, len(vals))
		for _, raw := range vals {
			if s, ok := raw.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
