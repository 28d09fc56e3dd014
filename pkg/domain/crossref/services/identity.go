// Package crossref_services implements the cross-reference domain services:
// the aggregation-record builder, bidirectional reference maintenance, the
// cascade orchestrator and the read-side planner + fetch composer.
package crossref_services

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	gameday "github.com/replay-api/gameday-index/pkg/domain"
	crossref_entities "github.com/replay-api/gameday-index/pkg/domain/crossref/entities"
	crossref_keys "github.com/replay-api/gameday-index/pkg/domain/crossref/keys"
)

// compoundTypes have multi-part external keys derived from several document
// fields instead of the plain _externalId pair.
var compoundTypes = map[gameday.ResourceType]bool{
	gameday.ResourceRanking:   true,
	gameday.ResourceStaff:     true,
	gameday.ResourceKeyMoment: true,
}

func extIDFilter(prefix string, ref crossref_keys.Ref) bson.M {
	idField, scopeField := crossref_entities.DocExternalID, crossref_entities.DocExternalIDScope
	if prefix != "" {
		idField = prefix + "." + idField
		scopeField = prefix + "." + scopeField
	}
	return bson.M{idField: ref.ID, scopeField: ref.Scope}
}

func mergeFilters(dst bson.M, src bson.M) bson.M {
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// filterForKey builds the home-collection filter locating the document of
// type rt with the given external key.
func filterForKey(rt gameday.ResourceType, externalKey string) (bson.M, error) {
	switch rt {
	case gameday.ResourceRanking:
		k, err := crossref_keys.ParseRankingKey(externalKey)
		if err != nil {
			return nil, err
		}
		filter := bson.M{
			crossref_entities.DocDateTimeLabel: k.DateTimeLabel,
			crossref_entities.DocRank:          k.Rank,
		}
		mergeFilters(filter, extIDFilter(string(k.SubjectType), k.Subject))
		mergeFilters(filter, extIDFilter(string(k.ParticipantType), k.Participant))
		return filter, nil
	case gameday.ResourceStaff:
		k, err := crossref_keys.ParseStaffKey(externalKey)
		if err != nil {
			return nil, err
		}
		filter := extIDFilter(string(gameday.ResourceSportsPerson), k.Person)
		mergeFilters(filter, extIDFilter(string(k.AffiliationType), k.Affiliation))
		return filter, nil
	case gameday.ResourceKeyMoment:
		k, err := crossref_keys.ParseKeyMomentKey(externalKey)
		if err != nil {
			return nil, err
		}
		filter := bson.M{
			crossref_entities.DocDateTime: k.DateTime,
			crossref_entities.DocType:     k.Type,
			crossref_entities.DocSubType:  k.SubType,
		}
		mergeFilters(filter, extIDFilter(string(gameday.ResourceEvent), k.Event))
		return filter, nil
	default:
		ref, err := crossref_keys.ParseRef(externalKey)
		if err != nil {
			return nil, err
		}
		return extIDFilter("", ref), nil
	}
}

// keyForDoc computes the external key of a home document of type rt. For
// compound types the key is assembled from the document's reference fields;
// a document missing them is malformed.
func keyForDoc(rt gameday.ResourceType, doc bson.M) (string, error) {
	malformed := func(why string) (string, error) {
		return "", gameday.NewError(gameday.CodeMalformedSource, why,
			"resourceType", string(rt), "docId", crossref_entities.DocString(doc, crossref_entities.DocID))
	}

	switch rt {
	case gameday.ResourceRanking:
		k := crossref_keys.RankingKey{
			DateTimeLabel: crossref_entities.DocString(doc, crossref_entities.DocDateTimeLabel),
			Rank:          asInt(doc[crossref_entities.DocRank]),
		}
		if ref, ok := crossref_entities.EmbeddedRef(doc[string(gameday.ResourceStage)]); ok {
			k.SubjectType, k.Subject = gameday.ResourceStage, ref
		} else if ref, ok := crossref_entities.EmbeddedRef(doc[string(gameday.ResourceEvent)]); ok {
			k.SubjectType, k.Subject = gameday.ResourceEvent, ref
		} else {
			return malformed("ranking document has neither stage nor event reference")
		}
		if ref, ok := crossref_entities.EmbeddedRef(doc[string(gameday.ResourceTeam)]); ok {
			k.ParticipantType, k.Participant = gameday.ResourceTeam, ref
		} else if ref, ok := crossref_entities.EmbeddedRef(doc[string(gameday.ResourceSportsPerson)]); ok {
			k.ParticipantType, k.Participant = gameday.ResourceSportsPerson, ref
		} else {
			return malformed("ranking document has neither team nor sportsPerson reference")
		}
		return k.Key()
	case gameday.ResourceStaff:
		person, ok := crossref_entities.EmbeddedRef(doc[string(gameday.ResourceSportsPerson)])
		if !ok {
			return malformed("staff document has no sportsPerson reference")
		}
		k := crossref_keys.StaffKey{SportsPerson: gameday.ResourceSportsPerson, Person: person}
		for _, aff := range []gameday.ResourceType{gameday.ResourceTeam, gameday.ResourceClub, gameday.ResourceNation} {
			if ref, ok := crossref_entities.EmbeddedRef(doc[string(aff)]); ok {
				k.AffiliationType, k.Affiliation = aff, ref
				break
			}
		}
		if k.AffiliationType == "" {
			return malformed("staff document has no team, club or nation reference")
		}
		return k.Key()
	case gameday.ResourceKeyMoment:
		event, ok := crossref_entities.EmbeddedRef(doc[string(gameday.ResourceEvent)])
		if !ok {
			return malformed("keyMoment document has no event reference")
		}
		k := crossref_keys.KeyMomentKey{
			DateTime: crossref_entities.DocString(doc, crossref_entities.DocDateTime),
			Event:    event,
			Type:     crossref_entities.DocString(doc, crossref_entities.DocType),
			SubType:  crossref_entities.DocString(doc, crossref_entities.DocSubType),
		}
		if k.DateTime == "" || k.Type == "" {
			return malformed("keyMoment document is missing dateTime or type")
		}
		return k.Key(), nil
	default:
		ref := crossref_entities.DocRef(doc)
		if ref.ID == "" || ref.Scope == "" {
			return malformed("document has no external id pair")
		}
		return ref.Key(), nil
	}
}

// displayName picks the record's display label: name, falling back to
// lastName for person-like documents, falling back to the external key.
func displayName(doc bson.M, externalKey string) string {
	if n := crossref_entities.DocString(doc, crossref_entities.DocName); n != "" {
		return n
	}
	if n := crossref_entities.DocString(doc, crossref_entities.DocLastName); n != "" {
		return n
	}
	return externalKey
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func typeKeyString(rt gameday.ResourceType, key string) string {
	return fmt.Sprintf("%s/%s", rt, key)
}
