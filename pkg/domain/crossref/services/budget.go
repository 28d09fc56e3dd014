package crossref_services

import (
	gameday "github.com/replay-api/gameday-index/pkg/domain"
)

// budgetOutcome is the result of applying the global budget: per type, the
// ids to materialize and the ids returned as overflow for paging.
type budgetOutcome struct {
	included     map[gameday.ResourceType][]string
	overflow     map[gameday.ResourceType][]string
	rootIncluded bool
}

// applyBudget consumes the budget in request order: the root first when
// requested (one id, itself), then every include type in caller order.
// Within a type the union slice already carries deterministic first-seen
// traversal order, so the cut point is stable for a given plan.
func applyBudget(rootType gameday.ResourceType, includeTypes []gameday.ResourceType, budget int, unions map[gameday.ResourceType][]string) budgetOutcome {
	out := budgetOutcome{
		included: map[gameday.ResourceType][]string{},
		overflow: map[gameday.ResourceType][]string{},
	}
	remaining := budget

	rootRequested := false
	for _, t := range includeTypes {
		if t == rootType {
			rootRequested = true
			break
		}
	}
	if rootRequested && remaining > 0 {
		out.rootIncluded = true
		remaining--
	}

	for _, t := range includeTypes {
		if t == rootType {
			continue
		}
		union := unions[t]
		take := len(union)
		if take > remaining {
			take = remaining
		}
		out.included[t] = union[:take]
		out.overflow[t] = union[take:]
		remaining -= take
	}
	return out
}
