package crossref_services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	gameday "github.com/replay-api/gameday-index/pkg/domain"
)

func TestApplyBudgetConsumesInRequestOrder(t *testing.T) {
	unions := map[gameday.ResourceType][]string{
		gameday.ResourceStage: {"s1", "s2", "s3"},
		gameday.ResourceEvent: {"e1", "e2", "e3", "e4"},
		gameday.ResourceTeam:  {"t1", "t2"},
		gameday.ResourceVenue: {"v1"},
	}
	include := []gameday.ResourceType{
		gameday.ResourceStage, gameday.ResourceEvent, gameday.ResourceTeam, gameday.ResourceVenue,
	}

	out := applyBudget(gameday.ResourceCompetition, include, 5, unions)

	assert.False(t, out.rootIncluded)
	assert.Equal(t, []string{"s1", "s2", "s3"}, out.included[gameday.ResourceStage])
	assert.Equal(t, []string{"e1", "e2"}, out.included[gameday.ResourceEvent])
	assert.Equal(t, []string{"e3", "e4"}, out.overflow[gameday.ResourceEvent])
	assert.Empty(t, out.included[gameday.ResourceTeam])
	assert.Equal(t, []string{"t1", "t2"}, out.overflow[gameday.ResourceTeam])
	assert.Empty(t, out.included[gameday.ResourceVenue])
	assert.Equal(t, []string{"v1"}, out.overflow[gameday.ResourceVenue])
}

// The root occupies one budget slot before any traversal type when it is
// itself requested.
func TestApplyBudgetChargesRootFirst(t *testing.T) {
	unions := map[gameday.ResourceType][]string{
		gameday.ResourceStage: {"s1", "s2", "s3", "s4"},
		gameday.ResourceEvent: {"e1", "e2"},
	}
	include := []gameday.ResourceType{
		gameday.ResourceCompetition, gameday.ResourceStage, gameday.ResourceEvent,
	}

	out := applyBudget(gameday.ResourceCompetition, include, 5, unions)

	assert.True(t, out.rootIncluded)
	assert.Equal(t, []string{"s1", "s2", "s3", "s4"}, out.included[gameday.ResourceStage])
	assert.Empty(t, out.included[gameday.ResourceEvent])
	assert.Equal(t, []string{"e1", "e2"}, out.overflow[gameday.ResourceEvent])
}

func TestApplyBudgetZeroExcludesRoot(t *testing.T) {
	out := applyBudget(gameday.ResourceCompetition,
		[]gameday.ResourceType{gameday.ResourceCompetition, gameday.ResourceStage},
		0,
		map[gameday.ResourceType][]string{gameday.ResourceStage: {"s1"}})

	assert.False(t, out.rootIncluded)
	assert.Empty(t, out.included[gameday.ResourceStage])
	assert.Equal(t, []string{"s1"}, out.overflow[gameday.ResourceStage])
}

// Budget conservation: per type included+overflow reproduces the union in
// order, and the total included never exceeds the budget.
func TestApplyBudgetConservation(t *testing.T) {
	unions := map[gameday.ResourceType][]string{
		gameday.ResourceStage:  {"s1", "s2"},
		gameday.ResourceEvent:  {"e1", "e2", "e3"},
		gameday.ResourceVenue:  {"v1", "v2", "v3", "v4"},
		gameday.ResourceSGO:    {"g1"},
		gameday.ResourceNation: nil,
	}
	include := []gameday.ResourceType{
		gameday.ResourceEvent, gameday.ResourceStage, gameday.ResourceVenue,
		gameday.ResourceSGO, gameday.ResourceNation,
	}

	for budget := 0; budget <= 12; budget++ {
		out := applyBudget(gameday.ResourceCompetition, include, budget, unions)
		total := 0
		for _, rt := range include {
			got := append(append([]string{}, out.included[rt]...), out.overflow[rt]...)
			assert.Equal(t, unions[rt], trimNilEmpty(got), "budget %d type %s", budget, rt)
			total += len(out.included[rt])
		}
		assert.LessOrEqual(t, total, budget, "budget %d", budget)
	}
}

func trimNilEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
