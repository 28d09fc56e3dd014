// Package gameday holds the domain vocabulary shared by every gameday-index
// context: resource types, scope classes and the coded error type.
package gameday

// ResourceType enumerates the entity types the index knows about. The set is
// fixed; unknown strings are rejected at the boundary.
type ResourceType string

const (
	ResourceCompetition  ResourceType = "competition"
	ResourceStage        ResourceType = "stage"
	ResourceEvent        ResourceType = "event"
	ResourceTeam         ResourceType = "team"
	ResourceVenue        ResourceType = "venue"
	ResourceClub         ResourceType = "club"
	ResourceSGO          ResourceType = "sgo"
	ResourceNation       ResourceType = "nation"
	ResourceSportsPerson ResourceType = "sportsPerson"
	ResourceStaff        ResourceType = "staff"
	ResourceRanking      ResourceType = "ranking"
	ResourceKeyMoment    ResourceType = "keyMoment"
)

// AllResourceTypes lists every known type in declaration order.
var AllResourceTypes = []ResourceType{
	ResourceCompetition,
	ResourceStage,
	ResourceEvent,
	ResourceTeam,
	ResourceVenue,
	ResourceClub,
	ResourceSGO,
	ResourceNation,
	ResourceSportsPerson,
	ResourceStaff,
	ResourceRanking,
	ResourceKeyMoment,
}

var knownTypes = func() map[ResourceType]bool {
	m := make(map[ResourceType]bool, len(AllResourceTypes))
	for _, rt := range AllResourceTypes {
		m[rt] = true
	}
	return m
}()

// IsKnownResourceType reports whether rt is part of the fixed type set.
func IsKnownResourceType(rt ResourceType) bool {
	return knownTypes[rt]
}
