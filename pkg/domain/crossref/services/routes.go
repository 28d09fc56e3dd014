package crossref_services

import (
	"fmt"
	"strings"

	gameday "github.com/replay-api/gameday-index/pkg/domain"
	crossref_entities "github.com/replay-api/gameday-index/pkg/domain/crossref/entities"
	crossref_graph "github.com/replay-api/gameday-index/pkg/domain/crossref/graph"
	crossref_keys "github.com/replay-api/gameday-index/pkg/domain/crossref/keys"
)

// DefaultMaxRouteDepth bounds automatic route discovery.
const DefaultMaxRouteDepth = 6

// Route-validation reason codes, embedded in BadRequest errors together with
// the zero-based hop index.
const (
	ReasonMissingKey        = "missingKey"
	ReasonEmptyVia          = "emptyVia"
	ReasonUnknownTarget     = "unknownTarget"
	ReasonBadEdgeLabel      = "badEdgeLabel"
	ReasonNonContiguousHop  = "nonContiguousHop"
	ReasonUnknownEdge       = "unknownEdge"
	ReasonDuplicateEdge     = "duplicateEdgeLabel"
	ReasonWrongFinalTarget  = "wrongFinalTarget"
	ReasonScopeRegime       = "scopeRegimeViolation"
	ReasonDuplicateRouteKey = "duplicateRouteKey"
)

// hop is one validated edge of a route path.
type hop struct {
	edge  crossref_graph.Edge
	label string
}

// parsedRoute is a validated route: contiguous, simple, ending at its
// declared target.
type parsedRoute struct {
	key  string
	to   gameday.ResourceType
	hops []hop
}

func (p parsedRoute) lastLabel() string {
	if len(p.hops) == 0 {
		return ""
	}
	return p.hops[len(p.hops)-1].label
}

// parseExplicitRoute validates one caller-provided route strictly. Every
// failure carries the hop index and a distinct reason; a revisited node is a
// CycleDetected error naming the node.
func parseExplicitRoute(rootType gameday.ResourceType, route crossref_entities.Route) (parsedRoute, error) {
	badReq := func(hopIdx int, reason, msg string, kv ...any) error {
		kv = append([]any{"routeKey", route.Key, "hop", hopIdx, "reason", reason}, kv...)
		return gameday.NewError(gameday.CodeBadRequest, msg, kv...)
	}

	if route.Key == "" {
		return parsedRoute{}, badReq(0, ReasonMissingKey, "route has no key")
	}
	if len(route.Via) == 0 {
		return parsedRoute{}, badReq(0, ReasonEmptyVia, "route has no hops")
	}
	if !gameday.IsKnownResourceType(route.To) {
		return parsedRoute{}, badReq(0, ReasonUnknownTarget, "route target is not a known type",
			"to", string(route.To))
	}

	rootScoped := crossref_graph.IsCompetitionScoped(rootType)
	visited := map[gameday.ResourceType]bool{rootType: true}
	usedLabels := map[string]bool{}
	prev := rootType
	hops := make([]hop, 0, len(route.Via))

	for i, label := range route.Via {
		from, field, to, err := crossref_keys.ParseEdgeLabel(label)
		if err != nil {
			return parsedRoute{}, badReq(i, ReasonBadEdgeLabel, "hop label is malformed", "label", label)
		}
		if from != prev {
			return parsedRoute{}, badReq(i, ReasonNonContiguousHop,
				"hop does not start where the previous one ended",
				"expectedFrom", string(prev), "from", string(from))
		}
		edge, ok := crossref_graph.FindEdge(from, field)
		if !ok || edge.To != to {
			return parsedRoute{}, badReq(i, ReasonUnknownEdge, "edge does not exist in the type graph",
				"label", label)
		}
		if !crossref_graph.HopAllowed(rootScoped, from, to) {
			return parsedRoute{}, badReq(i, ReasonScopeRegime, "hop violates the route scope regime",
				"label", label)
		}
		if usedLabels[label] {
			return parsedRoute{}, badReq(i, ReasonDuplicateEdge, "edge label repeats within the route",
				"label", label)
		}
		if visited[to] {
			return parsedRoute{}, gameday.NewError(gameday.CodeCycleDetected,
				"route revisits a node", "routeKey", route.Key, "hop", i, "node", string(to))
		}
		usedLabels[label] = true
		visited[to] = true
		prev = to
		hops = append(hops, hop{edge: edge, label: label})
	}

	if prev != route.To {
		return parsedRoute{}, badReq(len(route.Via)-1, ReasonWrongFinalTarget,
			"route does not end at its declared target",
			"declared", string(route.To), "actual", string(prev))
	}
	return parsedRoute{key: route.Key, to: route.To, hops: hops}, nil
}

// parseExplicitRoutes validates a route set, additionally rejecting
// duplicate route keys.
func parseExplicitRoutes(rootType gameday.ResourceType, routes []crossref_entities.Route) ([]parsedRoute, error) {
	seen := map[string]bool{}
	out := make([]parsedRoute, 0, len(routes))
	for _, r := range routes {
		p, err := parseExplicitRoute(rootType, r)
		if err != nil {
			return nil, err
		}
		if seen[p.key] {
			return nil, gameday.NewError(gameday.CodeBadRequest, "route key repeats",
				"routeKey", p.key, "reason", ReasonDuplicateRouteKey)
		}
		seen[p.key] = true
		out = append(out, p)
	}
	return out, nil
}

// candidatePath is a discovered simple path plus its score components.
type candidatePath struct {
	hops    []hop
	toggles int
	lexKey  string
}

// deriveRoutes synthesizes the single best route per include type: simple
// paths bounded by maxDepth, constrained by the scope regime, scored
// lexicographically by (scope toggles, hops, path string).
func deriveRoutes(rootType gameday.ResourceType, includeTypes []gameday.ResourceType, maxDepth int) ([]parsedRoute, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxRouteDepth
	}
	rootScoped := crossref_graph.IsCompetitionScoped(rootType)

	routes := make([]parsedRoute, 0, len(includeTypes))
	for _, target := range includeTypes {
		if target == rootType {
			// The root is materialized without traversal.
			continue
		}
		best := bestPath(rootType, target, rootScoped, maxDepth)
		if best == nil {
			return nil, gameday.NewError(gameday.CodeUnreachableAutoRoute,
				"no permissible route to target",
				"rootType", string(rootType), "target", string(target), "maxDepth", maxDepth)
		}
		routes = append(routes, parsedRoute{
			key:  fmt.Sprintf("auto-%s", target),
			to:   target,
			hops: best.hops,
		})
	}
	return routes, nil
}

// bestPath enumerates every simple, scope-permissible path rootType->target
// up to maxDepth hops and returns the argmin under (toggles, hops, lex), or
// nil when none exists.
func bestPath(rootType, target gameday.ResourceType, rootScoped bool, maxDepth int) *candidatePath {
	var best *candidatePath

	visited := map[gameday.ResourceType]bool{rootType: true}
	var path []hop

	var walk func(from gameday.ResourceType)
	walk = func(from gameday.ResourceType) {
		if len(path) >= maxDepth {
			return
		}
		for _, edge := range crossref_graph.OutgoingEdges(from) {
			if visited[edge.To] {
				continue
			}
			if !crossref_graph.HopAllowed(rootScoped, edge.From, edge.To) {
				continue
			}
			label := crossref_keys.EdgeLabel(edge.From, edge.Field, edge.To)
			path = append(path, hop{edge: edge, label: label})
			if edge.To == target {
				cand := snapshotCandidate(path)
				if best == nil || cand.less(best) {
					best = cand
				}
			} else {
				visited[edge.To] = true
				walk(edge.To)
				visited[edge.To] = false
			}
			path = path[:len(path)-1]
		}
	}
	walk(rootType)
	return best
}

func snapshotCandidate(path []hop) *candidatePath {
	hops := make([]hop, len(path))
	copy(hops, path)
	labels := make([]string, len(hops))
	toggles := 0
	for i, h := range hops {
		labels[i] = h.label
		if crossref_graph.IsCompetitionScoped(h.edge.From) != crossref_graph.IsCompetitionScoped(h.edge.To) {
			toggles++
		}
	}
	return &candidatePath{hops: hops, toggles: toggles, lexKey: strings.Join(labels, ",")}
}

func (c *candidatePath) less(other *candidatePath) bool {
	if c.toggles != other.toggles {
		return c.toggles < other.toggles
	}
	if len(c.hops) != len(other.hops) {
		return len(c.hops) < len(other.hops)
	}
	return c.lexKey < other.lexKey
}

// checkReachability verifies that every include type is reachable in the
// bare edge graph (UnreachableByGraph otherwise) and covered by at least one
// route (UnreachableByRoutes otherwise).
func checkReachability(rootType gameday.ResourceType, includeTypes []gameday.ResourceType, routes []parsedRoute) error {
	reachable := graphReachable(rootType)
	covered := map[gameday.ResourceType]bool{}
	for _, r := range routes {
		covered[r.to] = true
	}

	for _, t := range includeTypes {
		if t == rootType {
			continue
		}
		if !reachable[t] {
			return gameday.NewError(gameday.CodeUnreachableByGraph,
				"target type is not reachable from the root in the type graph",
				"rootType", string(rootType), "target", string(t))
		}
		if !covered[t] {
			return gameday.NewError(gameday.CodeUnreachableByRoutes,
				"no route targets the requested type",
				"rootType", string(rootType), "target", string(t))
		}
	}
	return nil
}

// graphReachable is a plain BFS over the typed edge graph, ignoring the
// scope regime (routes enforce it separately).
func graphReachable(rootType gameday.ResourceType) map[gameday.ResourceType]bool {
	seen := map[gameday.ResourceType]bool{rootType: true}
	queue := []gameday.ResourceType{rootType}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range crossref_graph.OutgoingEdges(cur) {
			if !seen[e.To] {
				seen[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	return seen
}
