package crossref_entities

import (
	"go.mongodb.org/mongo-driver/bson"

	gameday "github.com/replay-api/gameday-index/pkg/domain"
	crossref_keys "github.com/replay-api/gameday-index/pkg/domain/crossref/keys"
)

// Home-document field names every collection shares. Reference fields are
// per-edge and declared in the graph package.
const (
	DocID              = "_id"
	DocResourceType    = "resourceType"
	DocExternalID      = "_externalId"
	DocExternalIDScope = "_externalIdScope"
	DocName            = "name"
	DocLastName        = "lastName"
	DocDateTime        = "dateTime"
	DocStart           = "start"
	DocRank            = "rank"
	DocType            = "type"
	DocSubType         = "subType"
	DocDateTimeLabel   = "dateTimeLabel"
)

// DocString reads a string field off a raw home document.
func DocString(doc bson.M, field string) string {
	s, _ := doc[field].(string)
	return s
}

// DocRef reads the external identity pair of a raw home document.
func DocRef(doc bson.M) crossref_keys.Ref {
	return crossref_keys.Ref{
		ID:    DocString(doc, DocExternalID),
		Scope: DocString(doc, DocExternalIDScope),
	}
}

// EmbeddedRef reads an embedded reference pair ({_externalId,
// _externalIdScope} subdocument) from a field value.
func EmbeddedRef(v any) (crossref_keys.Ref, bool) {
	var m bson.M
	switch t := v.(type) {
	case bson.M:
		m = t
	case map[string]any:
		m = bson.M(t)
	case bson.D:
		m = bson.M{}
		for _, e := range t {
			m[e.Key] = e.Value
		}
	default:
		return crossref_keys.Ref{}, false
	}
	ref := crossref_keys.Ref{ID: DocString(m, DocExternalID), Scope: DocString(m, DocExternalIDScope)}
	if ref.ID == "" {
		return crossref_keys.Ref{}, false
	}
	return ref, true
}

// EmbeddedRefs reads a reference field that may hold one pair or an array of
// pairs, in document order.
func EmbeddedRefs(v any) []crossref_keys.Ref {
	if ref, ok := EmbeddedRef(v); ok {
		return []crossref_keys.Ref{ref}
	}
	var arr []any
	switch t := v.(type) {
	case []any:
		arr = t
	case bson.A:
		arr = t
	default:
		return nil
	}
	refs := make([]crossref_keys.Ref, 0, len(arr))
	for _, item := range arr {
		if ref, ok := EmbeddedRef(item); ok {
			refs = append(refs, ref)
		}
	}
	return refs
}

// ChangeEvent is the writer-side notification consumed from the event
// ingress: a single entity changed, optionally cascading when the entity is
// a root.
type ChangeEvent struct {
	ResourceType gameday.ResourceType `json:"resourceType"`
	ExternalKey  string               `json:"externalKey"`
	Cascade      bool                 `json:"cascade,omitempty"`
}
