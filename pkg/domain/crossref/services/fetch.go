package crossref_services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	gameday "github.com/replay-api/gameday-index/pkg/domain"
	crossref_entities "github.com/replay-api/gameday-index/pkg/domain/crossref/entities"
	crossref_graph "github.com/replay-api/gameday-index/pkg/domain/crossref/graph"
	crossref_in "github.com/replay-api/gameday-index/pkg/domain/crossref/ports/in"
	crossref_out "github.com/replay-api/gameday-index/pkg/domain/crossref/ports/out"
	"github.com/replay-api/gameday-index/pkg/metrics"
)

// FetchService is the read-side planner and fetch composer: route
// derivation or validation, shared-prefix traversal, per-type union, budget
// enforcement, home-collection materialization and projection.
type FetchService struct {
	store    crossref_out.DocumentStore
	aggColl  string
	maxDepth int
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// NewFetchService wires the read side over the document store.
func NewFetchService(store crossref_out.DocumentStore, aggColl string, maxDepth int, log *zap.Logger, m *metrics.Metrics) *FetchService {
	if aggColl == "" {
		aggColl = DefaultAggregationCollection
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxRouteDepth
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FetchService{store: store, aggColl: aggColl, maxDepth: maxDepth, log: log, metrics: m}
}

var _ crossref_in.Fetcher = (*FetchService)(nil)

// Fetch answers one cross-collection fetch request. The read path surfaces
// the first fatal error and abandons the request; no writes occur.
func (s *FetchService) Fetch(ctx context.Context, req *crossref_entities.FetchRequest) (*crossref_entities.FetchResult, error) {
	started := time.Now()
	res, err := s.fetch(ctx, req)
	s.metrics.ObserveFetch(time.Since(started), string(gameday.CodeOf(err)))
	return res, err
}

func (s *FetchService) fetch(ctx context.Context, req *crossref_entities.FetchRequest) (*crossref_entities.FetchResult, error) {
	includeTypes, err := validateRequest(req)
	if err != nil {
		return nil, err
	}

	var routes []parsedRoute
	if len(req.Routes) > 0 {
		routes, err = parseExplicitRoutes(req.RootType, req.Routes)
	} else {
		routes, err = deriveRoutes(req.RootType, includeTypes, s.maxDepth)
	}
	if err != nil {
		return nil, err
	}
	if err := checkReachability(req.RootType, includeTypes, routes); err != nil {
		return nil, err
	}

	steps := planSteps(routes)
	s.metrics.ObservePlanDepth(maxPlanDepth(steps))

	root, err := loadRoot(ctx, s.store, s.aggColl, req.RootType, req.RootExternalKey)
	if err != nil {
		return nil, err
	}
	trav := newTraversal(s.store, s.aggColl, root)
	if err := trav.run(ctx, steps); err != nil {
		return nil, err
	}
	unions := trav.unionPerType(routes)

	outcome := applyBudget(req.RootType, includeTypes, req.Budget, unions)

	projections := req.FieldProjections.Clone()
	result := &crossref_entities.FetchResult{
		Root: crossref_entities.RootInfo{
			Type:        req.RootType,
			ExternalKey: req.RootExternalKey,
		},
		Results: map[gameday.ResourceType]*crossref_entities.TypeResult{},
	}

	for _, rt := range includeTypes {
		var ids []string
		if rt == req.RootType {
			if outcome.rootIncluded {
				ids = []string{root.GamedayID}
			}
		} else {
			ids = outcome.included[rt]
		}

		items, err := s.materialize(ctx, rt, ids, projections)
		if err != nil {
			return nil, err
		}
		overflow := outcome.overflow[rt]
		if rt == req.RootType && !outcome.rootIncluded {
			overflow = []string{root.GamedayID}
		}
		if overflow == nil {
			overflow = []string{}
		}
		s.metrics.ObserveOverflow(string(rt), len(overflow))
		result.Results[rt] = &crossref_entities.TypeResult{
			Items: items,
			Overflow: crossref_entities.Overflow{
				ResourceType: rt,
				OverflowIDs:  overflow,
			},
		}
	}
	return result, nil
}

// materialize fetches the included documents of one type from its home
// collection, applying the per-type default sort and the caller's
// projections.
func (s *FetchService) materialize(ctx context.Context, rt gameday.ResourceType, ids []string, projections *crossref_entities.FieldProjections) ([]bson.M, error) {
	if len(ids) == 0 {
		return []bson.M{}, nil
	}
	pipeline := []bson.M{
		{"$match": bson.M{crossref_entities.DocID: bson.M{"$in": toAny(ids)}}},
		{"$sort": defaultSort(rt)},
	}
	projStages, err := compileProjection(projections, rt)
	if err != nil {
		return nil, err
	}
	pipeline = append(pipeline, projStages...)

	docs, err := s.store.Aggregate(ctx, crossref_graph.CollectionOf(rt), pipeline)
	if err != nil {
		return nil, storageErr(err, "materialize home documents", "resourceType", string(rt))
	}
	if docs == nil {
		docs = []bson.M{}
	}
	return docs, nil
}

// defaultSort is the fixed per-type sort applied during home-collection
// fetch.
func defaultSort(rt gameday.ResourceType) bson.D {
	switch rt {
	case gameday.ResourceCompetition:
		return bson.D{{Key: crossref_entities.DocStart, Value: -1}, {Key: crossref_entities.DocID, Value: 1}}
	case gameday.ResourceEvent, gameday.ResourceKeyMoment:
		return bson.D{{Key: crossref_entities.DocDateTime, Value: -1}, {Key: crossref_entities.DocID, Value: 1}}
	case gameday.ResourceTeam, gameday.ResourceVenue, gameday.ResourceClub,
		gameday.ResourceNation, gameday.ResourceSGO:
		return bson.D{{Key: crossref_entities.DocName, Value: -1}, {Key: crossref_entities.DocID, Value: 1}}
	case gameday.ResourceSportsPerson, gameday.ResourceStaff:
		return bson.D{{Key: crossref_entities.DocLastName, Value: -1}, {Key: crossref_entities.DocID, Value: 1}}
	case gameday.ResourceRanking:
		return bson.D{
			{Key: "stage." + crossref_entities.DocExternalID, Value: -1},
			{Key: "event." + crossref_entities.DocExternalID, Value: -1},
			{Key: crossref_entities.DocRank, Value: -1},
			{Key: crossref_entities.DocID, Value: 1},
		}
	default:
		return bson.D{{Key: crossref_entities.DocID, Value: 1}}
	}
}

// validateRequest checks the request shape and returns the include types
// deduplicated in caller order.
func validateRequest(req *crossref_entities.FetchRequest) ([]gameday.ResourceType, error) {
	if req == nil {
		return nil, gameday.NewError(gameday.CodeBadRequest, "request is empty")
	}
	if !gameday.IsKnownResourceType(req.RootType) {
		return nil, gameday.NewError(gameday.CodeBadRequest, "root type is not a known type",
			"rootType", string(req.RootType))
	}
	if req.RootExternalKey == "" {
		return nil, gameday.NewError(gameday.CodeBadRequest, "root external key is missing")
	}
	if len(req.IncludeTypes) == 0 {
		return nil, gameday.NewError(gameday.CodeBadRequest, "include types are empty")
	}
	if req.Budget < 0 {
		return nil, gameday.NewError(gameday.CodeBadRequest, "budget must be non-negative",
			"budget", req.Budget)
	}

	seen := map[gameday.ResourceType]bool{}
	out := make([]gameday.ResourceType, 0, len(req.IncludeTypes))
	for _, rt := range req.IncludeTypes {
		if !gameday.IsKnownResourceType(rt) {
			return nil, gameday.NewError(gameday.CodeBadRequest, "include type is not a known type",
				"includeType", string(rt))
		}
		if seen[rt] {
			continue
		}
		seen[rt] = true
		out = append(out, rt)
	}
	return out, nil
}
