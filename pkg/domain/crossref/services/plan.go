package crossref_services

import (
	"sort"

	crossref_keys "github.com/replay-api/gameday-index/pkg/domain/crossref/keys"
)

// Step is one planned traversal operation: exactly one per distinct edge
// label across all routes, so shared route prefixes are computed once.
type Step struct {
	Key          string // edge label "from.field->to"
	Edge         edgeRef
	Depth        int    // 0-based from the root
	DependsOnKey string // previous hop's label; empty at depth 0
	OutputName   string // stable hash-derived name of the step's id-set
}

type edgeRef struct {
	From  string
	Field string
	To    string
}

// planSteps unifies the routes into the deduplicated step list, sorted by
// (depth ASC, key ASC). When the same edge label occurs at different depths
// across routes, the shallowest occurrence wins, keeping the plan stable
// under permutation of the route set.
func planSteps(routes []parsedRoute) []Step {
	byKey := map[string]*Step{}

	for _, route := range routes {
		prevLabel := ""
		for depth, h := range route.hops {
			existing, ok := byKey[h.label]
			if !ok || depth < existing.Depth {
				byKey[h.label] = &Step{
					Key: h.label,
					Edge: edgeRef{
						From:  string(h.edge.From),
						Field: h.edge.Field,
						To:    string(h.edge.To),
					},
					Depth:        depth,
					DependsOnKey: prevLabel,
				}
			}
			prevLabel = h.label
		}
	}

	steps := make([]Step, 0, len(byKey))
	for _, s := range byKey {
		s.OutputName = crossref_keys.StepOutputName(s.Key, s.Depth)
		steps = append(steps, *s)
	}
	sort.Slice(steps, func(i, j int) bool {
		if steps[i].Depth != steps[j].Depth {
			return steps[i].Depth < steps[j].Depth
		}
		return steps[i].Key < steps[j].Key
	})
	return steps
}

// maxPlanDepth returns the deepest step depth plus one, zero for an empty
// plan.
func maxPlanDepth(steps []Step) int {
	max := 0
	for _, s := range steps {
		if s.Depth+1 > max {
			max = s.Depth + 1
		}
	}
	return max
}
