package crossref_services

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/errgroup"

	gameday "github.com/replay-api/gameday-index/pkg/domain"
	crossref_entities "github.com/replay-api/gameday-index/pkg/domain/crossref/entities"
	crossref_out "github.com/replay-api/gameday-index/pkg/domain/crossref/ports/out"
)

// traversal executes a planned step list against the materialized
// aggregation collection and exposes per-route final id-sets.
type traversal struct {
	store   crossref_out.DocumentStore
	aggColl string

	root    *crossref_entities.AggregationRecord
	rootIDs []string

	mu      sync.Mutex
	outputs map[string][]string // step key -> ordered deduplicated id-set
}

// loadRoot locates the root aggregation record, RootMissing when absent.
func loadRoot(ctx context.Context, store crossref_out.DocumentStore, aggColl string, rootType gameday.ResourceType, rootExternalKey string) (*crossref_entities.AggregationRecord, error) {
	doc, err := store.FindOne(ctx, aggColl, bson.M{
		crossref_entities.FieldResourceType: string(rootType),
		crossref_entities.FieldExternalKey:  rootExternalKey,
	})
	if err != nil {
		return nil, storageErr(err, "load root aggregation record")
	}
	if doc == nil {
		return nil, gameday.NewError(gameday.CodeRootMissing,
			"root aggregation record not found",
			"rootType", string(rootType), "rootExternalKey", rootExternalKey)
	}
	return crossref_entities.RecordFromDocument(doc), nil
}

func newTraversal(store crossref_out.DocumentStore, aggColl string, root *crossref_entities.AggregationRecord) *traversal {
	return &traversal{
		store:   store,
		aggColl: aggColl,
		root:    root,
		rootIDs: []string{root.GamedayID},
		outputs: map[string][]string{},
	}
}

// run executes the steps depth by depth. Steps of the same depth are
// independent of each other and run in parallel.
func (t *traversal) run(ctx context.Context, steps []Step) error {
	byDepth := map[int][]Step{}
	maxDepth := -1
	for _, s := range steps {
		byDepth[s.Depth] = append(byDepth[s.Depth], s)
		if s.Depth > maxDepth {
			maxDepth = s.Depth
		}
	}

	for depth := 0; depth <= maxDepth; depth++ {
		g, gctx := errgroup.WithContext(ctx)
		for _, step := range byDepth[depth] {
			step := step
			g.Go(func() error {
				ids, err := t.executeStep(gctx, step)
				if err != nil {
					return err
				}
				t.mu.Lock()
				t.outputs[step.Key] = ids
				t.mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

func (t *traversal) executeStep(ctx context.Context, step Step) ([]string, error) {
	targetType := gameday.ResourceType(step.Edge.To)

	if step.Depth == 0 {
		// Depth 0 reads the edge field straight off the root record.
		return t.root.RefSetFor(targetType).IDs, nil
	}

	t.mu.Lock()
	input, ok := t.outputs[step.DependsOnKey]
	t.mu.Unlock()
	if !ok {
		return nil, gameday.NewError(gameday.CodeInternalInvariant,
			"step depends on an unplanned output",
			"step", step.Key, "dependsOn", step.DependsOnKey)
	}
	if len(input) == 0 {
		return nil, nil
	}

	idsField := crossref_entities.IDsField(targetType)
	pipeline := []bson.M{
		{"$match": bson.M{
			crossref_entities.FieldResourceType: step.Edge.From,
			crossref_entities.FieldGamedayID:    bson.M{"$in": toAny(input)},
		}},
		{"$sort": bson.M{crossref_entities.FieldGamedayID: 1}},
		{"$project": bson.M{idsField: 1}},
	}
	docs, err := t.store.Aggregate(ctx, t.aggColl, pipeline)
	if err != nil {
		return nil, storageErr(err, "execute traversal step", "step", step.Key)
	}

	// Union in first-seen order: record order is pinned by the $sort above,
	// id order within a record by the stored (sorted) id list. This is what
	// makes budget slicing deterministic.
	seen := map[string]bool{}
	var out []string
	for _, doc := range docs {
		for _, id := range crossref_entities.StringSlice(doc[idsField]) {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out, nil
}

// finalIDs returns a route's final id-set: the output of its last hop, or
// the root's own id for an empty route.
func (t *traversal) finalIDs(route parsedRoute) []string {
	last := route.lastLabel()
	if last == "" {
		return t.rootIDs
	}
	return t.outputs[last]
}

// unionPerType unions route finals per target type, first-seen order across
// routes in request order.
func (t *traversal) unionPerType(routes []parsedRoute) map[gameday.ResourceType][]string {
	unions := map[gameday.ResourceType][]string{}
	seen := map[gameday.ResourceType]map[string]bool{}
	for _, route := range routes {
		if seen[route.to] == nil {
			seen[route.to] = map[string]bool{}
		}
		for _, id := range t.finalIDs(route) {
			if !seen[route.to][id] {
				seen[route.to][id] = true
				unions[route.to] = append(unions[route.to], id)
			}
		}
	}
	return unions
}

func toAny(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
