// Package crossref_graph declares the fixed typed edge graph of the sports
// domain: which entity types reference which, under what field name, how the
// reference is resolved against home collections, and the competition-scope
// rules that constrain read-time traversal.
//
// Everything here is a static declaration. Traversal code consumes it as a
// read-only dependency and never mutates it.
package crossref_graph

import (
	gameday "github.com/replay-api/gameday-index/pkg/domain"
)

// ResolutionMode says how an edge's neighbors are found in storage.
type ResolutionMode int

const (
	// ResolveDirect: the source document embeds the neighbor references
	// under the edge's DocField.
	ResolveDirect ResolutionMode = iota
	// ResolveReverse: the target documents carry a reference back to the
	// source under DocField; neighbors are found by a reverse lookup keyed
	// on the source's external id pair.
	ResolveReverse
)

// Edge is one typed, labelled edge of the reference graph.
type Edge struct {
	From  gameday.ResourceType
	Field string
	To    gameday.ResourceType

	Mode ResolutionMode
	// DocField is the document field holding the reference pair(s): on the
	// source document for ResolveDirect, on the target documents for
	// ResolveReverse.
	DocField string
}

var edges = []Edge{
	{gameday.ResourceCompetition, "stages", gameday.ResourceStage, ResolveReverse, "competition"},
	{gameday.ResourceCompetition, "sgos", gameday.ResourceSGO, ResolveDirect, "sgos"},

	{gameday.ResourceStage, "events", gameday.ResourceEvent, ResolveReverse, "stages"},
	{gameday.ResourceStage, "rankings", gameday.ResourceRanking, ResolveReverse, "stage"},

	{gameday.ResourceEvent, "stages", gameday.ResourceStage, ResolveDirect, "stages"},
	{gameday.ResourceEvent, "teams", gameday.ResourceTeam, ResolveDirect, "teams"},
	{gameday.ResourceEvent, "venues", gameday.ResourceVenue, ResolveDirect, "venues"},
	{gameday.ResourceEvent, "rankings", gameday.ResourceRanking, ResolveReverse, "event"},
	{gameday.ResourceEvent, "keyMoments", gameday.ResourceKeyMoment, ResolveReverse, "event"},

	{gameday.ResourceTeam, "sportsPersons", gameday.ResourceSportsPerson, ResolveDirect, "sportsPersons"},
	{gameday.ResourceTeam, "staff", gameday.ResourceStaff, ResolveReverse, "team"},
	{gameday.ResourceTeam, "clubs", gameday.ResourceClub, ResolveDirect, "clubs"},
	{gameday.ResourceTeam, "nations", gameday.ResourceNation, ResolveDirect, "nations"},
	{gameday.ResourceTeam, "venues", gameday.ResourceVenue, ResolveDirect, "venues"},

	{gameday.ResourceStaff, "sportsPersons", gameday.ResourceSportsPerson, ResolveDirect, "sportsPerson"},
	{gameday.ResourceStaff, "teams", gameday.ResourceTeam, ResolveDirect, "team"},
	{gameday.ResourceStaff, "clubs", gameday.ResourceClub, ResolveDirect, "club"},
	{gameday.ResourceStaff, "nations", gameday.ResourceNation, ResolveDirect, "nation"},

	{gameday.ResourceVenue, "teams", gameday.ResourceTeam, ResolveReverse, "venues"},

	{gameday.ResourceClub, "nations", gameday.ResourceNation, ResolveDirect, "nations"},
	{gameday.ResourceClub, "venues", gameday.ResourceVenue, ResolveDirect, "venues"},

	{gameday.ResourceNation, "teams", gameday.ResourceTeam, ResolveReverse, "nations"},

	{gameday.ResourceSportsPerson, "clubs", gameday.ResourceClub, ResolveDirect, "clubs"},
	{gameday.ResourceSportsPerson, "nations", gameday.ResourceNation, ResolveDirect, "nations"},

	{gameday.ResourceRanking, "stages", gameday.ResourceStage, ResolveDirect, "stage"},
	{gameday.ResourceRanking, "events", gameday.ResourceEvent, ResolveDirect, "event"},
	{gameday.ResourceRanking, "teams", gameday.ResourceTeam, ResolveDirect, "team"},
	{gameday.ResourceRanking, "sportsPersons", gameday.ResourceSportsPerson, ResolveDirect, "sportsPerson"},

	{gameday.ResourceKeyMoment, "events", gameday.ResourceEvent, ResolveDirect, "event"},
	{gameday.ResourceKeyMoment, "teams", gameday.ResourceTeam, ResolveDirect, "team"},
	{gameday.ResourceKeyMoment, "sportsPersons", gameday.ResourceSportsPerson, ResolveDirect, "sportsPerson"},

	{gameday.ResourceSGO, "sgos", gameday.ResourceSGO, ResolveDirect, "sgos"},
	{gameday.ResourceSGO, "competitions", gameday.ResourceCompetition, ResolveReverse, "sgos"},
}

var outgoing = func() map[gameday.ResourceType][]Edge {
	m := make(map[gameday.ResourceType][]Edge)
	for _, e := range edges {
		m[e.From] = append(m[e.From], e)
	}
	return m
}()

// OutgoingEdges returns the declared edges leaving rt, in declaration order.
// The returned slice must not be mutated.
func OutgoingEdges(rt gameday.ResourceType) []Edge {
	return outgoing[rt]
}

// FindEdge looks up the edge (from, field) and reports whether it exists.
func FindEdge(from gameday.ResourceType, field string) (Edge, bool) {
	for _, e := range outgoing[from] {
		if e.Field == field {
			return e, true
		}
	}
	return Edge{}, false
}

var competitionScoped = map[gameday.ResourceType]bool{
	gameday.ResourceCompetition: true,
	gameday.ResourceStage:       true,
	gameday.ResourceEvent:       true,
	gameday.ResourceTeam:        true,
	gameday.ResourceStaff:       true,
	gameday.ResourceRanking:     true,
	gameday.ResourceKeyMoment:   true,
}

// IsCompetitionScoped reports whether rt belongs to the competition-scoped
// class. Non-competition-scoped types (venue, club, sgo, nation,
// sportsPerson) are shared across competitions.
func IsCompetitionScoped(rt gameday.ResourceType) bool {
	return competitionScoped[rt]
}

// HopAllowed applies the route scope regime: for competition-scoped roots a
// hop from a non-competition-scoped type into a competition-scoped one is
// forbidden (it would fan out into sibling competitions); for
// non-competition-scoped roots any hop between two competition-scoped types
// is forbidden.
func HopAllowed(rootCompetitionScoped bool, from, to gameday.ResourceType) bool {
	if rootCompetitionScoped {
		return IsCompetitionScoped(from) || !IsCompetitionScoped(to)
	}
	return !(IsCompetitionScoped(from) && IsCompetitionScoped(to))
}

var collections = map[gameday.ResourceType]string{
	gameday.ResourceCompetition:  "competitions",
	gameday.ResourceStage:        "stages",
	gameday.ResourceEvent:        "events",
	gameday.ResourceTeam:         "teams",
	gameday.ResourceVenue:        "venues",
	gameday.ResourceClub:         "clubs",
	gameday.ResourceSGO:          "sgos",
	gameday.ResourceNation:       "nations",
	gameday.ResourceSportsPerson: "sportsPersons",
	gameday.ResourceStaff:        "staff",
	gameday.ResourceRanking:      "rankings",
	gameday.ResourceKeyMoment:    "keyMoments",
}

// CollectionOf returns the home collection name for rt. Types outside the
// fixed set yield the empty string.
func CollectionOf(rt gameday.ResourceType) string {
	return collections[rt]
}
