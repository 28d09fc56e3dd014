package crossref_services

import (
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	gameday "github.com/replay-api/gameday-index/pkg/domain"
	crossref_entities "github.com/replay-api/gameday-index/pkg/domain/crossref/entities"
)

// namePredicate matches array elements by their "name" field: exact entries
// or prefix entries (written with a trailing '*').
type namePredicate struct {
	Exact    []string
	Prefixes []string
}

// fieldProjection is one parsed projection directive.
//
//	"a.b.c"                        -> Path ["a","b","c"], no predicate
//	"tags>foo>bar*"                -> Path ["tags"], predicate {foo | bar*}
//	"participants.team.tags>x"     -> Path ["participants","team","tags"],
//	                                  predicate over the team participants'
//	                                  tags
type fieldProjection struct {
	Path      []string
	Predicate *namePredicate
}

// participantDiscriminators maps the compound-path discriminator segment to
// the embedded reference field that identifies the participant variant.
var participantDiscriminators = map[string]string{
	"team": string(gameday.ResourceTeam),
	"sp":   string(gameday.ResourceSportsPerson),
}

// parseFieldProjection interprets one projection map key.
func parseFieldProjection(raw string) (fieldProjection, error) {
	parts := strings.Split(raw, ">")
	pathStr := strings.TrimSpace(parts[0])
	if pathStr == "" {
		return fieldProjection{}, gameday.NewError(gameday.CodeBadRequest,
			"projection key has an empty path", "key", raw, "reason", "malformedProjection")
	}
	fp := fieldProjection{Path: strings.Split(pathStr, ".")}

	if len(parts) == 1 {
		return fp, nil
	}
	pred := &namePredicate{}
	for _, name := range parts[1:] {
		name = strings.TrimSpace(name)
		if name == "" {
			return fieldProjection{}, gameday.NewError(gameday.CodeBadRequest,
				"projection key has an empty filter entry", "key", raw, "reason", "malformedProjection")
		}
		if strings.HasSuffix(name, "*") {
			prefix := strings.TrimSuffix(name, "*")
			if prefix == "" {
				return fieldProjection{}, gameday.NewError(gameday.CodeBadRequest,
					"projection prefix entry is empty", "key", raw, "reason", "malformedProjection")
			}
			pred.Prefixes = append(pred.Prefixes, prefix)
		} else {
			pred.Exact = append(pred.Exact, name)
		}
	}
	fp.Predicate = pred

	// Compound paths are either a bare array field or the
	// participants.<variant>.<array> form.
	switch len(fp.Path) {
	case 1:
	case 3:
		if _, ok := participantDiscriminators[fp.Path[1]]; !ok {
			return fieldProjection{}, gameday.NewError(gameday.CodeBadRequest,
				"unknown participant variant in projection key",
				"key", raw, "variant", fp.Path[1], "reason", "malformedProjection")
		}
	default:
		return fieldProjection{}, gameday.NewError(gameday.CodeBadRequest,
			"compound projection paths must be one or three segments deep",
			"key", raw, "reason", "malformedProjection")
	}
	return fp, nil
}

// nameMatchExpr builds the engine expression matching one array element's
// name against the predicate. elemVar is the pipeline variable (without $$).
func nameMatchExpr(elemVar string, pred *namePredicate) bson.M {
	nameRef := "$$" + elemVar + ".name"
	var terms []bson.M
	if len(pred.Exact) > 0 {
		exact := make([]any, len(pred.Exact))
		for i, e := range pred.Exact {
			exact[i] = e
		}
		terms = append(terms, bson.M{"$in": []any{nameRef, exact}})
	}
	for _, prefix := range pred.Prefixes {
		terms = append(terms, bson.M{"$eq": []any{
			bson.M{"$substrBytes": []any{nameRef, 0, len(prefix)}},
			prefix,
		}})
	}
	if len(terms) == 1 {
		return terms[0]
	}
	return bson.M{"$or": terms}
}

// filterArrayExpr keeps (keep=true) or removes (keep=false) the predicate
// matches of an array field expression.
func filterArrayExpr(inputExpr any, pred *namePredicate, keep bool) bson.M {
	cond := any(nameMatchExpr("tag", pred))
	if !keep {
		cond = bson.M{"$not": []any{cond}}
	}
	return bson.M{"$filter": bson.M{
		"input": bson.M{"$ifNull": []any{inputExpr, []any{}}},
		"as":    "tag",
		"cond":  cond,
	}}
}

// compoundTransformStage builds the $set stage applying one compound
// directive. keep selects inclusion (keep matches) vs exclusion (drop
// matches) semantics.
func compoundTransformStage(fp fieldProjection, keep bool) bson.M {
	if len(fp.Path) == 1 {
		field := fp.Path[0]
		return bson.M{"$set": bson.M{
			field: filterArrayExpr("$"+field, fp.Predicate, keep),
		}}
	}

	// participants.<variant>.<array>: map over the participant array and
	// rewrite only the elements of the requested variant, recognized by the
	// embedded reference pair they carry.
	arrayField, variant, tagField := fp.Path[0], fp.Path[1], fp.Path[2]
	discField := participantDiscriminators[variant]
	elemTag := "$$p." + tagField
	isVariant := bson.M{"$eq": []any{
		bson.M{"$type": "$$p." + discField + "." + crossref_entities.DocExternalID},
		"string",
	}}
	rewritten := bson.M{"$mergeObjects": []any{
		"$$p",
		bson.M{tagField: filterArrayExpr(elemTag, fp.Predicate, keep)},
	}}
	return bson.M{"$set": bson.M{
		arrayField: bson.M{"$map": bson.M{
			"input": bson.M{"$ifNull": []any{"$" + arrayField, []any{}}},
			"as":    "p",
			"in":    bson.M{"$cond": []any{isVariant, rewritten, "$$p"}},
		}},
	}}
}

// compileProjection turns the caller's projection maps for one resource type
// into an ordered pipeline-stage list. Evaluation order is fixed so
// exclusions can never be reintroduced:
//
//  1. exclusion transforms (array filters dropping matches)
//  2. inclusion transforms (array filters keeping matches)
//  3. inclusion projection (keep-list)
//  4. exclusion projection (remove-list) — exclusion wins
//
// The input maps are cloned upstream; this function never mutates them.
func compileProjection(p *crossref_entities.FieldProjections, rt gameday.ResourceType) ([]bson.M, error) {
	if p == nil {
		return nil, nil
	}

	exclSimple, exclCompound, err := collectDirectives(p.Exclusions, rt)
	if err != nil {
		return nil, err
	}
	inclSimple, inclCompound, err := collectDirectives(p.Inclusions, rt)
	if err != nil {
		return nil, err
	}

	var stages []bson.M
	for _, fp := range exclCompound {
		stages = append(stages, compoundTransformStage(fp, false))
	}
	for _, fp := range inclCompound {
		stages = append(stages, compoundTransformStage(fp, true))
	}
	if len(inclSimple) > 0 {
		proj := bson.M{}
		for _, fp := range inclSimple {
			proj[strings.Join(fp.Path, ".")] = 1
		}
		stages = append(stages, bson.M{"$project": proj})
	}
	if len(exclSimple) > 0 {
		proj := bson.M{}
		for _, fp := range exclSimple {
			proj[strings.Join(fp.Path, ".")] = 0
		}
		stages = append(stages, bson.M{"$project": proj})
	}
	return stages, nil
}

// collectDirectives merges the "all" block with the per-type block and
// splits simple from compound directives, in sorted key order for
// reproducible pipelines.
func collectDirectives(group map[string]map[string]bool, rt gameday.ResourceType) (simple, compound []fieldProjection, err error) {
	if group == nil {
		return nil, nil, nil
	}
	merged := map[string]bool{}
	for k, v := range group[crossref_entities.ProjectionScopeAll] {
		if v {
			merged[k] = true
		}
	}
	for k, v := range group[string(rt)] {
		if v {
			merged[k] = true
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fp, err := parseFieldProjection(k)
		if err != nil {
			return nil, nil, err
		}
		if fp.Predicate == nil {
			simple = append(simple, fp)
		} else {
			compound = append(compound, fp)
		}
	}
	return simple, compound, nil
}
