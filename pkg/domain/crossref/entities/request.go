package crossref_entities

import (
	"go.mongodb.org/mongo-driver/bson"

	gameday "github.com/replay-api/gameday-index/pkg/domain"
)

// Route is a contiguous, simple path of edge labels from the request root to
// a target type. Key names the route for diagnostics; Via holds edge labels
// "from.field->to" in hop order.
type Route struct {
	Key string               `json:"key"`
	To  gameday.ResourceType `json:"to"`
	Via []string             `json:"via"`
}

// ProjectionScopeAll is the pseudo resource type applying a projection block
// to every fetched type.
const ProjectionScopeAll = "all"

// FieldProjections carries the caller's projection directives. Outer keys
// are "all" or a resource type name; inner keys are field paths (simple
// "a.b.c" or compound "tags>foo>bar*"), values are markers the source emits
// as true/1.
type FieldProjections struct {
	Inclusions map[string]map[string]bool `json:"inclusions,omitempty"`
	Exclusions map[string]map[string]bool `json:"exclusions,omitempty"`
}

// Clone deep-copies the projection maps so interpretation never mutates the
// caller's request.
func (p *FieldProjections) Clone() *FieldProjections {
	if p == nil {
		return nil
	}
	out := &FieldProjections{
		Inclusions: cloneProjectionGroup(p.Inclusions),
		Exclusions: cloneProjectionGroup(p.Exclusions),
	}
	return out
}

func cloneProjectionGroup(g map[string]map[string]bool) map[string]map[string]bool {
	if g == nil {
		return nil
	}
	out := make(map[string]map[string]bool, len(g))
	for scope, fields := range g {
		inner := make(map[string]bool, len(fields))
		for k, v := range fields {
			inner[k] = v
		}
		out[scope] = inner
	}
	return out
}

// FetchRequest is the read-side request: a root identity, the target types
// to materialize (order significant for budgeting), a global budget, and
// optional explicit routes and projections.
type FetchRequest struct {
	RootType         gameday.ResourceType   `json:"rootType"`
	RootExternalKey  string                 `json:"rootExternalKey"`
	IncludeTypes     []gameday.ResourceType `json:"includeTypes"`
	Budget           int                    `json:"budget"`
	Routes           []Route                `json:"routes,omitempty"`
	FieldProjections *FieldProjections      `json:"fieldProjections,omitempty"`
}

// Overflow lists the ids of one type that survived traversal but exceeded
// the budget; callers page them in follow-up requests.
type Overflow struct {
	ResourceType gameday.ResourceType `json:"resourceType"`
	OverflowIDs  []string             `json:"overflowIds"`
}

// TypeResult is the per-type slice of a fetch response.
type TypeResult struct {
	Items    []bson.M `json:"items"`
	Overflow Overflow `json:"overflow"`
}

// RootInfo echoes the request root in the response envelope.
type RootInfo struct {
	Type        gameday.ResourceType `json:"type"`
	ExternalKey string               `json:"externalKey"`
}

// FetchResult is the response envelope of a cross-collection fetch.
type FetchResult struct {
	Root    RootInfo                             `json:"root"`
	Results map[gameday.ResourceType]*TypeResult `json:"results"`
}
