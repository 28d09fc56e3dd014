// Package crossref_in declares the inbound ports of the cross-reference
// context: what transports (HTTP handlers, event consumers) may ask of the
// domain services.
package crossref_in

import (
	"context"

	gameday "github.com/replay-api/gameday-index/pkg/domain"
	crossref_entities "github.com/replay-api/gameday-index/pkg/domain/crossref/entities"
)

// Rebuilder rebuilds the aggregation record of a single entity and applies
// back-pointer maintenance against referencing records.
type Rebuilder interface {
	Rebuild(ctx context.Context, rt gameday.ResourceType, externalKey string) (*crossref_entities.AggregationRecord, error)
}

// CascadeRebuilder rebuilds the transitive closure of aggregation records
// reachable from a root entity, in dependency order.
type CascadeRebuilder interface {
	RebuildTransitively(ctx context.Context, rootType gameday.ResourceType, rootExternalKey string) (*crossref_entities.CascadeReport, error)
}

// Fetcher answers read-side cross-collection fetch requests.
type Fetcher interface {
	Fetch(ctx context.Context, req *crossref_entities.FetchRequest) (*crossref_entities.FetchResult, error)
}
