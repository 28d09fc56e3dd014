package crossref_services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	gameday "github.com/replay-api/gameday-index/pkg/domain"
	crossref_entities "github.com/replay-api/gameday-index/pkg/domain/crossref/entities"
	crossref_graph "github.com/replay-api/gameday-index/pkg/domain/crossref/graph"
	crossref_keys "github.com/replay-api/gameday-index/pkg/domain/crossref/keys"
	crossref_in "github.com/replay-api/gameday-index/pkg/domain/crossref/ports/in"
	crossref_out "github.com/replay-api/gameday-index/pkg/domain/crossref/ports/out"
	"github.com/replay-api/gameday-index/pkg/metrics"
)

// DefaultAggregationCollection is the materialized-index collection name
// used when configuration does not override it.
const DefaultAggregationCollection = "aggregations"

// neighborResolveConcurrency bounds parallel neighbor-type resolutions per
// rebuild.
const neighborResolveConcurrency = 4

// RebuildService is the aggregation-record builder (write path). Rebuild
// reads the source document, resolves every one-hop neighbor set, replaces
// the record wholesale and then applies best-effort back-pointer maintenance
// against referencing records.
type RebuildService struct {
	store    crossref_out.DocumentStore
	aggColl  string
	refMaint *ReferenceMaintainer
	log      *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	// handlers maps supported types to their rebuild entry; lookups outside
	// the table return the skip sentinel.
	handlers map[gameday.ResourceType]struct{}
	handlerM sync.RWMutex
}

// NewRebuildService wires a RebuildService over the document store. All
// twelve known resource types are registered.
func NewRebuildService(store crossref_out.DocumentStore, aggColl string, log *zap.Logger, m *metrics.Metrics) *RebuildService {
	if aggColl == "" {
		aggColl = DefaultAggregationCollection
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &RebuildService{
		store:    store,
		aggColl:  aggColl,
		log:      log,
		metrics:  m,
		now:      time.Now,
		handlers: make(map[gameday.ResourceType]struct{}, len(gameday.AllResourceTypes)),
	}
	for _, rt := range gameday.AllResourceTypes {
		s.handlers[rt] = struct{}{}
	}
	s.refMaint = NewReferenceMaintainer(store, aggColl, log, m)
	return s
}

var _ crossref_in.Rebuilder = (*RebuildService)(nil)

// Rebuild implements the write-path contract: rebuild(type, identity).
// Returns the fresh record, NotFound when the source document is missing, or
// the skip sentinel for unsupported types.
func (s *RebuildService) Rebuild(ctx context.Context, rt gameday.ResourceType, externalKey string) (*crossref_entities.AggregationRecord, error) {
	s.handlerM.RLock()
	_, supported := s.handlers[rt]
	s.handlerM.RUnlock()
	if !supported {
		return nil, gameday.ErrSkipRebuild
	}

	rec, err := s.buildRecord(ctx, rt, externalKey)
	if err != nil {
		s.observeRebuild(rt, err)
		return nil, err
	}

	keyFilter := bson.M{
		crossref_entities.FieldResourceType: string(rt),
		crossref_entities.FieldExternalKey:  externalKey,
	}
	oldDoc, err := s.store.FindOne(ctx, s.aggColl, keyFilter)
	if err != nil {
		s.observeRebuild(rt, err)
		return nil, storageErr(err, "load previous aggregation record")
	}
	old := crossref_entities.RecordFromDocument(oldDoc)

	// Neighbor sets for types rt has no outgoing edge to are back-pointers
	// maintained by the neighbors' own rebuilds; the wholesale replace must
	// not wipe them.
	if old != nil {
		owned := map[gameday.ResourceType]bool{}
		for _, e := range crossref_graph.OutgoingEdges(rt) {
			owned[e.To] = true
		}
		for nt, set := range old.Refs {
			if !owned[nt] && len(set.Keys) > 0 {
				rec.Refs[nt] = set
			}
		}
	}

	if err := s.store.ReplaceOne(ctx, s.aggColl, keyFilter, rec.ToDocument(), true); err != nil {
		s.observeRebuild(rt, err)
		return nil, storageErr(err, "replace aggregation record")
	}

	// Back-pointer maintenance is best-effort and non-transactional with the
	// replace above; failures are logged and the rebuild still succeeds.
	ops := s.refMaint.Diff(old, rec)
	if err := s.refMaint.Apply(ctx, ops); err != nil {
		s.log.Warn("reference maintenance incomplete",
			zap.String("resourceType", string(rt)),
			zap.String("externalKey", externalKey),
			zap.Error(err))
	}

	s.observeRebuild(rt, nil)
	return rec, nil
}

func (s *RebuildService) observeRebuild(rt gameday.ResourceType, err error) {
	switch {
	case err == nil:
		s.metrics.ObserveRebuild(string(rt), "completed")
	case errors.Is(err, gameday.ErrSkipRebuild):
		s.metrics.ObserveRebuild(string(rt), "skipped")
	default:
		s.metrics.ObserveRebuild(string(rt), "failed")
	}
}

// buildRecord produces the canonical aggregation record without writing it.
func (s *RebuildService) buildRecord(ctx context.Context, rt gameday.ResourceType, externalKey string) (*crossref_entities.AggregationRecord, error) {
	filter, err := filterForKey(rt, externalKey)
	if err != nil {
		return nil, err
	}
	src, err := s.store.FindOne(ctx, crossref_graph.CollectionOf(rt), filter)
	if err != nil {
		return nil, storageErr(err, "load source document")
	}
	if src == nil {
		return nil, gameday.NewError(gameday.CodeNotFound, "source document not found",
			"resourceType", string(rt), "externalKey", externalKey)
	}
	// An external key must identify exactly one home document; rebuilding
	// from an ambiguous source would materialize an arbitrary pick.
	n, err := s.store.CountDocuments(ctx, crossref_graph.CollectionOf(rt), filter)
	if err != nil {
		return nil, storageErr(err, "count source documents")
	}
	if n > 1 {
		return nil, gameday.NewError(gameday.CodeMalformedSource,
			"external key matches more than one source document",
			"resourceType", string(rt), "externalKey", externalKey, "matches", n)
	}
	gamedayID := crossref_entities.DocString(src, crossref_entities.DocID)
	if gamedayID == "" {
		return nil, gameday.NewError(gameday.CodeMalformedSource, "source document has no _id",
			"resourceType", string(rt), "externalKey", externalKey)
	}

	rec := &crossref_entities.AggregationRecord{
		ResourceType:    rt,
		ExternalKey:     externalKey,
		GamedayID:       gamedayID,
		ExternalID:      crossref_entities.DocString(src, crossref_entities.DocExternalID),
		ExternalIDScope: crossref_entities.DocString(src, crossref_entities.DocExternalIDScope),
		Name:            displayName(src, externalKey),
		LastUpdated:     s.now().UTC(),
		Refs:            make(map[gameday.ResourceType]crossref_entities.RefSet),
	}

	edges := crossref_graph.OutgoingEdges(rt)
	results := make([]map[string]string, len(edges))

	// Neighbor-type resolutions are independent of each other; run them with
	// bounded fan-out.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(neighborResolveConcurrency)
	for i, edge := range edges {
		i, edge := i, edge
		g.Go(func() error {
			keys, err := s.resolveNeighbors(gctx, src, edge)
			if err != nil {
				return err
			}
			results[i] = keys
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Two edges never share a (from, to) pair, so merging per target type is
	// a plain assignment union.
	for i, edge := range edges {
		if len(results[i]) == 0 {
			continue
		}
		if existing, ok := rec.Refs[edge.To]; ok {
			for k, v := range results[i] {
				existing.Keys[k] = v
			}
			rec.Refs[edge.To] = crossref_entities.NewRefSet(existing.Keys)
			continue
		}
		rec.Refs[edge.To] = crossref_entities.NewRefSet(results[i])
	}
	return rec, nil
}

// resolveNeighbors finds the one-hop neighbors along one edge and returns
// their externalKey -> gamedayId map.
func (s *RebuildService) resolveNeighbors(ctx context.Context, src bson.M, edge crossref_graph.Edge) (map[string]string, error) {
	var match bson.M
	switch edge.Mode {
	case crossref_graph.ResolveDirect:
		refs := crossref_entities.EmbeddedRefs(src[edge.DocField])
		if len(refs) == 0 {
			return nil, nil
		}
		ors := make([]bson.M, 0, len(refs))
		for _, ref := range refs {
			ors = append(ors, extIDFilter("", ref))
		}
		match = bson.M{"$or": ors}
	case crossref_graph.ResolveReverse:
		srcRef := crossref_entities.DocRef(src)
		if srcRef.ID == "" {
			return nil, gameday.NewError(gameday.CodeMalformedSource,
				"source document has no external id pair for reverse lookup",
				"edge", crossref_keys.EdgeLabel(edge.From, edge.Field, edge.To))
		}
		match = extIDFilter(edge.DocField, srcRef)
	default:
		return nil, gameday.NewError(gameday.CodeInternalInvariant, "unknown resolution mode",
			"edge", crossref_keys.EdgeLabel(edge.From, edge.Field, edge.To))
	}

	pipeline := []bson.M{
		{"$match": match},
		{"$project": neighborProjection(edge.To)},
	}
	docs, err := s.store.Aggregate(ctx, crossref_graph.CollectionOf(edge.To), pipeline)
	if err != nil {
		return nil, storageErr(err, "resolve neighbors",
			"edge", crossref_keys.EdgeLabel(edge.From, edge.Field, edge.To))
	}

	keys := make(map[string]string, len(docs))
	for _, doc := range docs {
		id := crossref_entities.DocString(doc, crossref_entities.DocID)
		if id == "" {
			continue
		}
		key, err := keyForDoc(edge.To, doc)
		if err != nil {
			// One malformed neighbor does not sink the whole record.
			s.log.Warn("skipping malformed neighbor document",
				zap.String("edge", crossref_keys.EdgeLabel(edge.From, edge.Field, edge.To)),
				zap.Error(err))
			continue
		}
		keys[key] = id
	}
	return keys, nil
}

// neighborProjection keeps only the identity fields needed to derive a
// neighbor's external key.
func neighborProjection(rt gameday.ResourceType) bson.M {
	p := bson.M{
		crossref_entities.DocID:              1,
		crossref_entities.DocExternalID:      1,
		crossref_entities.DocExternalIDScope: 1,
	}
	switch rt {
	case gameday.ResourceRanking:
		p[string(gameday.ResourceStage)] = 1
		p[string(gameday.ResourceEvent)] = 1
		p[string(gameday.ResourceTeam)] = 1
		p[string(gameday.ResourceSportsPerson)] = 1
		p[crossref_entities.DocDateTimeLabel] = 1
		p[crossref_entities.DocRank] = 1
	case gameday.ResourceStaff:
		p[string(gameday.ResourceSportsPerson)] = 1
		p[string(gameday.ResourceTeam)] = 1
		p[string(gameday.ResourceClub)] = 1
		p[string(gameday.ResourceNation)] = 1
	case gameday.ResourceKeyMoment:
		p[string(gameday.ResourceEvent)] = 1
		p[crossref_entities.DocDateTime] = 1
		p[crossref_entities.DocType] = 1
		p[crossref_entities.DocSubType] = 1
	}
	return p
}

func storageErr(err error, msg string, kv ...any) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return gameday.WrapError(gameday.CodeDeadline, err, msg, kv...)
	}
	return gameday.WrapError(gameday.CodeStorageError, err, msg, kv...)
}
