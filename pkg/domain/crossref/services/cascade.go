package crossref_services

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	gameday "github.com/replay-api/gameday-index/pkg/domain"
	crossref_entities "github.com/replay-api/gameday-index/pkg/domain/crossref/entities"
	crossref_in "github.com/replay-api/gameday-index/pkg/domain/crossref/ports/in"
	"github.com/replay-api/gameday-index/pkg/metrics"
)

// cascadePhases is the fixed per-type rebuild order of a transitive rebuild.
// It mirrors the natural fan-out of sports data so parents are rebuilt
// before the children harvested from them.
var cascadePhases = []gameday.ResourceType{
	gameday.ResourceSGO,
	gameday.ResourceStage,
	gameday.ResourceEvent,
	gameday.ResourceRanking,
	gameday.ResourceTeam,
	gameday.ResourceStaff,
	gameday.ResourceSportsPerson,
	gameday.ResourceClub,
	gameday.ResourceNation,
	gameday.ResourceVenue,
}

// harvestTargets says which downstream worklists a completed record of a
// given type feeds. Phase order guarantees every feeder phase runs before
// the fed one (sgo feeding itself is handled by draining the sgo worklist to
// exhaustion).
var harvestTargets = map[gameday.ResourceType][]gameday.ResourceType{
	gameday.ResourceCompetition: {gameday.ResourceSGO, gameday.ResourceStage},
	gameday.ResourceSGO:         {gameday.ResourceSGO},
	gameday.ResourceStage:       {gameday.ResourceEvent, gameday.ResourceRanking},
	gameday.ResourceEvent:       {gameday.ResourceRanking, gameday.ResourceTeam, gameday.ResourceVenue},
	gameday.ResourceTeam: {
		gameday.ResourceStaff, gameday.ResourceSportsPerson,
		gameday.ResourceClub, gameday.ResourceNation, gameday.ResourceVenue,
	},
	gameday.ResourceStaff: {gameday.ResourceSportsPerson, gameday.ResourceClub, gameday.ResourceNation},
}

// CascadeService rebuilds the transitive closure of aggregation records
// reachable from a root entity, in the fixed phase order, tracking
// attempted/completed/failed/skipped sets for the lifetime of the call.
type CascadeService struct {
	rebuilder crossref_in.Rebuilder
	log       *zap.Logger
	metrics   *metrics.Metrics
}

// NewCascadeService wires the orchestrator over a single-entity rebuilder.
func NewCascadeService(rebuilder crossref_in.Rebuilder, log *zap.Logger, m *metrics.Metrics) *CascadeService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CascadeService{rebuilder: rebuilder, log: log, metrics: m}
}

var _ crossref_in.CascadeRebuilder = (*CascadeService)(nil)

type cascadeState struct {
	attempted map[crossref_entities.TypeKey]bool
	worklists map[gameday.ResourceType][]string
	queued    map[crossref_entities.TypeKey]bool
	report    *crossref_entities.CascadeReport
}

func (st *cascadeState) enqueue(rt gameday.ResourceType, externalKey string) {
	tk := crossref_entities.TypeKey{ResourceType: rt, ExternalKey: externalKey}
	if st.queued[tk] {
		return
	}
	st.queued[tk] = true
	st.worklists[rt] = append(st.worklists[rt], externalKey)
}

// harvest pushes the relevant neighbor keys of a completed record onto the
// downstream worklists, in sorted key order for reproducible runs.
func (st *cascadeState) harvest(rec *crossref_entities.AggregationRecord) {
	for _, target := range harvestTargets[rec.ResourceType] {
		keys := rec.RefSetFor(target).Keys
		if len(keys) == 0 {
			continue
		}
		sorted := make([]string, 0, len(keys))
		for k := range keys {
			sorted = append(sorted, k)
		}
		sort.Strings(sorted)
		for _, k := range sorted {
			st.enqueue(target, k)
		}
	}
}

// RebuildTransitively rebuilds the root's aggregation record, then walks the
// reachable records phase by phase. Per-record failures are recorded and do
// not stop sibling work; only context cancellation aborts the cascade.
func (s *CascadeService) RebuildTransitively(ctx context.Context, rootType gameday.ResourceType, rootExternalKey string) (*crossref_entities.CascadeReport, error) {
	if rootType != gameday.ResourceCompetition {
		return nil, gameday.NewError(gameday.CodeBadRequest,
			"cascade rebuild roots must be competitions", "rootType", string(rootType))
	}

	st := &cascadeState{
		attempted: map[crossref_entities.TypeKey]bool{},
		worklists: map[gameday.ResourceType][]string{},
		queued:    map[crossref_entities.TypeKey]bool{},
		report: &crossref_entities.CascadeReport{
			Root: crossref_entities.TypeKey{ResourceType: rootType, ExternalKey: rootExternalKey},
		},
	}

	rootRec := s.rebuildOne(ctx, st, rootType, rootExternalKey)
	if rootRec == nil {
		// Without a root record there is nothing to walk.
		return st.report, nil
	}
	st.harvest(rootRec)

	for _, phase := range cascadePhases {
		// Worklists may grow while draining (sgo recursion); iterate by
		// index, not over a snapshot.
		for i := 0; i < len(st.worklists[phase]); i++ {
			if err := ctx.Err(); err != nil {
				return st.report, storageErr(err, "cascade aborted",
					"phase", string(phase))
			}
			key := st.worklists[phase][i]
			if rec := s.rebuildOne(ctx, st, phase, key); rec != nil {
				st.harvest(rec)
			}
		}
	}

	s.log.Info("cascade rebuild finished",
		zap.String("rootType", string(rootType)),
		zap.String("rootExternalKey", rootExternalKey),
		zap.Int("attempted", len(st.report.Attempted)),
		zap.Int("completed", len(st.report.Completed)),
		zap.Int("failed", len(st.report.Failed)),
		zap.Int("skipped", len(st.report.Skipped)))
	return st.report, nil
}

// rebuildOne runs one rebuild, classifies the outcome and returns the record
// when completed.
func (s *CascadeService) rebuildOne(ctx context.Context, st *cascadeState, rt gameday.ResourceType, externalKey string) *crossref_entities.AggregationRecord {
	tk := crossref_entities.TypeKey{ResourceType: rt, ExternalKey: externalKey}
	if st.attempted[tk] {
		return nil
	}
	st.attempted[tk] = true
	st.report.Attempted = append(st.report.Attempted, tk)

	rec, err := s.rebuilder.Rebuild(ctx, rt, externalKey)
	switch {
	case err == nil && rec != nil:
		st.report.Completed = append(st.report.Completed, tk)
		s.metrics.ObserveCascadeEntry(string(rt), "completed")
		return rec
	case errors.Is(err, gameday.ErrSkipRebuild):
		st.report.Skipped = append(st.report.Skipped, tk)
		s.metrics.ObserveCascadeEntry(string(rt), "skipped")
	default:
		st.report.Failed = append(st.report.Failed, tk)
		s.metrics.ObserveCascadeEntry(string(rt), "failed")
		s.log.Warn("cascade entry rebuild failed",
			zap.String("resourceType", string(rt)),
			zap.String("externalKey", externalKey),
			zap.Error(err))
	}
	return nil
}
