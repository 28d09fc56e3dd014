package crossref_services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gameday "github.com/replay-api/gameday-index/pkg/domain"
	crossref_entities "github.com/replay-api/gameday-index/pkg/domain/crossref/entities"
)

func mustParse(t *testing.T, root gameday.ResourceType, r crossref_entities.Route) parsedRoute {
	t.Helper()
	p, err := parseExplicitRoute(root, r)
	require.NoError(t, err)
	return p
}

// Four routes sharing the competition.stages prefix plan into exactly five
// steps: each distinct edge label is computed once.
func TestPlanStepsDeduplicatesSharedPrefixes(t *testing.T) {
	root := gameday.ResourceCompetition
	routes := []parsedRoute{
		mustParse(t, root, route("stages", gameday.ResourceStage, "competition.stages->stage")),
		mustParse(t, root, route("teams", gameday.ResourceTeam,
			"competition.stages->stage", "stage.events->event", "event.teams->team")),
		mustParse(t, root, route("venues", gameday.ResourceVenue,
			"competition.stages->stage", "stage.events->event", "event.venues->venue")),
		mustParse(t, root, route("rankings", gameday.ResourceRanking,
			"competition.stages->stage", "stage.rankings->ranking")),
	}

	steps := planSteps(routes)
	require.Len(t, steps, 5)

	keys := make([]string, len(steps))
	for i, s := range steps {
		keys[i] = s.Key
	}
	assert.Equal(t, []string{
		"competition.stages->stage",
		"stage.events->event",
		"stage.rankings->ranking",
		"event.teams->team",
		"event.venues->venue",
	}, keys, "sorted by (depth, key)")

	assert.Equal(t, []int{0, 1, 1, 2, 2}, depths(steps))
	assert.Empty(t, steps[0].DependsOnKey)
	assert.Equal(t, "competition.stages->stage", steps[1].DependsOnKey)
	assert.Equal(t, "stage.events->event", steps[3].DependsOnKey)
}

func TestPlanStepsStableUnderRoutePermutation(t *testing.T) {
	root := gameday.ResourceCompetition
	a := mustParse(t, root, route("teams", gameday.ResourceTeam,
		"competition.stages->stage", "stage.events->event", "event.teams->team"))
	b := mustParse(t, root, route("venues", gameday.ResourceVenue,
		"competition.stages->stage", "stage.events->event", "event.venues->venue"))

	assert.Equal(t,
		planSteps([]parsedRoute{a, b}),
		planSteps([]parsedRoute{b, a}))
}

// When two routes reach the same edge at different depths, the shallowest
// occurrence defines the step, whichever route comes first.
func TestPlanStepsShallowestDepthWins(t *testing.T) {
	deep := mustParse(t, gameday.ResourceCompetition, route("deep", gameday.ResourceEvent,
		"competition.stages->stage", "stage.events->event"))
	shallow := mustParse(t, gameday.ResourceStage, route("shallow", gameday.ResourceEvent,
		"stage.events->event"))

	for _, routes := range [][]parsedRoute{{deep, shallow}, {shallow, deep}} {
		steps := planSteps(routes)
		require.Len(t, steps, 2)
		last := steps[1]
		assert.Equal(t, "stage.events->event", last.Key)
		assert.Equal(t, 0, last.Depth)
		assert.Empty(t, last.DependsOnKey)
	}
}

func TestPlanStepOutputNamesAreDistinct(t *testing.T) {
	routes := []parsedRoute{
		mustParse(t, gameday.ResourceCompetition, route("teams", gameday.ResourceTeam,
			"competition.stages->stage", "stage.events->event", "event.teams->team")),
	}
	seen := map[string]bool{}
	for _, s := range planSteps(routes) {
		assert.NotEmpty(t, s.OutputName)
		assert.False(t, seen[s.OutputName], "output name %s repeats", s.OutputName)
		seen[s.OutputName] = true
	}
}

func TestMaxPlanDepth(t *testing.T) {
	assert.Equal(t, 0, maxPlanDepth(nil))
	routes := []parsedRoute{
		mustParse(t, gameday.ResourceCompetition, route("teams", gameday.ResourceTeam,
			"competition.stages->stage", "stage.events->event", "event.teams->team")),
	}
	assert.Equal(t, 3, maxPlanDepth(planSteps(routes)))
}

func depths(steps []Step) []int {
	out := make([]int, len(steps))
	for i, s := range steps {
		out[i] = s.Depth
	}
	return out
}
