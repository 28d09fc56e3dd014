package crossref_keys

import (
	"strconv"
	"strings"

	gameday "github.com/replay-api/gameday-index/pkg/domain"
)

// Ranking separators. The middle separator encodes which of the four ranking
// variants the key is: subject (stage or event) crossed with participant
// (team or sportsPerson).
const (
	SepRankStageTeam         = "[s-t]"
	SepRankStageSportsPerson = "[s-p]"
	SepRankEventTeam         = "[e-t]"
	SepRankEventSportsPerson = "[e-p]"
	SepRankLabel             = "[dt]"
	SepRankPosition          = "[rk]"
)

// Staff affiliation separators, one per affiliation kind.
const (
	SepStaffTeam   = "[t]"
	SepStaffClub   = "[c]"
	SepStaffNation = "[n]"
)

// RankingKey is the decomposed compound key of a ranking entry:
// {stage|event} x {team|sportsPerson} x dateTimeLabel x rank.
type RankingKey struct {
	SubjectType     gameday.ResourceType // stage or event
	Subject         Ref
	ParticipantType gameday.ResourceType // team or sportsPerson
	Participant     Ref
	DateTimeLabel   string
	Rank            int
}

func rankingVariantSep(subject, participant gameday.ResourceType) (string, bool) {
	switch {
	case subject == gameday.ResourceStage && participant == gameday.ResourceTeam:
		return SepRankStageTeam, true
	case subject == gameday.ResourceStage && participant == gameday.ResourceSportsPerson:
		return SepRankStageSportsPerson, true
	case subject == gameday.ResourceEvent && participant == gameday.ResourceTeam:
		return SepRankEventTeam, true
	case subject == gameday.ResourceEvent && participant == gameday.ResourceSportsPerson:
		return SepRankEventSportsPerson, true
	}
	return "", false
}

// Key renders the ranking key:
// subjectId[#]scope[s-t]participantId[#]scope[dt]label[rk]rank.
func (k RankingKey) Key() (string, error) {
	sep, ok := rankingVariantSep(k.SubjectType, k.ParticipantType)
	if !ok {
		return "", gameday.NewError(gameday.CodeBadCompoundKey,
			"ranking variant must be {stage|event} x {team|sportsPerson}",
			"subjectType", string(k.SubjectType), "participantType", string(k.ParticipantType))
	}
	return k.Subject.Key() + sep + k.Participant.Key() +
		SepRankLabel + k.DateTimeLabel + SepRankPosition + strconv.Itoa(k.Rank), nil
}

// ParseRankingKey decodes a ranking compound key, strictly. Any structural
// deviation yields BadCompoundKey; the parser never guesses.
func ParseRankingKey(key string) (RankingKey, error) {
	bad := func(why string) (RankingKey, error) {
		return RankingKey{}, gameday.NewError(gameday.CodeBadCompoundKey, why, "key", key)
	}

	head, tail, ok := strings.Cut(key, SepRankLabel)
	if !ok {
		return bad("ranking key has no date-time label separator")
	}
	label, rankStr, ok := strings.Cut(tail, SepRankPosition)
	if !ok || label == "" {
		return bad("ranking key has no rank separator")
	}
	rank, err := strconv.Atoi(rankStr)
	if err != nil {
		return bad("ranking key rank is not an integer")
	}

	var subjectType, participantType gameday.ResourceType
	var variantSep string
	for _, v := range []struct {
		sep      string
		subj, pt gameday.ResourceType
	}{
		{SepRankStageTeam, gameday.ResourceStage, gameday.ResourceTeam},
		{SepRankStageSportsPerson, gameday.ResourceStage, gameday.ResourceSportsPerson},
		{SepRankEventTeam, gameday.ResourceEvent, gameday.ResourceTeam},
		{SepRankEventSportsPerson, gameday.ResourceEvent, gameday.ResourceSportsPerson},
	} {
		if strings.Contains(head, v.sep) {
			variantSep, subjectType, participantType = v.sep, v.subj, v.pt
			break
		}
	}
	if variantSep == "" {
		return bad("ranking key has no variant separator")
	}

	subjKey, partKey, _ := strings.Cut(head, variantSep)
	subject, err := ParseRef(subjKey)
	if err != nil {
		return bad("ranking key subject is not id" + Sep + "scope")
	}
	participant, err := ParseRef(partKey)
	if err != nil {
		return bad("ranking key participant is not id" + Sep + "scope")
	}

	return RankingKey{
		SubjectType:     subjectType,
		Subject:         subject,
		ParticipantType: participantType,
		Participant:     participant,
		DateTimeLabel:   label,
		Rank:            rank,
	}, nil
}

// StaffKey is the decomposed compound key of a staff affiliation: a sports
// person attached to exactly one of team, club or nation.
type StaffKey struct {
	SportsPerson    gameday.ResourceType // always sportsPerson; kept for symmetry with RankingKey
	Person          Ref
	AffiliationType gameday.ResourceType // team, club or nation
	Affiliation     Ref
}

func staffSep(affiliation gameday.ResourceType) (string, bool) {
	switch affiliation {
	case gameday.ResourceTeam:
		return SepStaffTeam, true
	case gameday.ResourceClub:
		return SepStaffClub, true
	case gameday.ResourceNation:
		return SepStaffNation, true
	}
	return "", false
}

// Key renders the staff key: personId[#]scope[t]affiliationId[#]scope, with
// the middle separator naming the affiliation kind.
func (k StaffKey) Key() (string, error) {
	sep, ok := staffSep(k.AffiliationType)
	if !ok {
		return "", gameday.NewError(gameday.CodeBadCompoundKey,
			"staff affiliation must be team, club or nation",
			"affiliationType", string(k.AffiliationType))
	}
	return k.Person.Key() + sep + k.Affiliation.Key(), nil
}

// ParseStaffKey decodes a staff compound key, strictly.
func ParseStaffKey(key string) (StaffKey, error) {
	bad := func(why string) (StaffKey, error) {
		return StaffKey{}, gameday.NewError(gameday.CodeBadCompoundKey, why, "key", key)
	}

	var affType gameday.ResourceType
	var sep string
	for _, v := range []struct {
		sep string
		rt  gameday.ResourceType
	}{
		{SepStaffTeam, gameday.ResourceTeam},
		{SepStaffClub, gameday.ResourceClub},
		{SepStaffNation, gameday.ResourceNation},
	} {
		if strings.Contains(key, v.sep) {
			sep, affType = v.sep, v.rt
			break
		}
	}
	if sep == "" {
		return bad("staff key has no affiliation separator")
	}

	personKey, affKey, _ := strings.Cut(key, sep)
	person, err := ParseRef(personKey)
	if err != nil {
		return bad("staff key person is not id" + Sep + "scope")
	}
	aff, err := ParseRef(affKey)
	if err != nil {
		return bad("staff key affiliation is not id" + Sep + "scope")
	}

	return StaffKey{
		SportsPerson:    gameday.ResourceSportsPerson,
		Person:          person,
		AffiliationType: affType,
		Affiliation:     aff,
	}, nil
}

// KeyMomentKey is the decomposed compound key of a key moment within an
// event.
type KeyMomentKey struct {
	DateTime string // ISO-8601 timestamp of the moment
	Event    Ref
	Type     string
	SubType  string
}

// Key renders the key-moment key:
// isoDateTime[#]eventId[#]scope[#]type[#]subType.
func (k KeyMomentKey) Key() string {
	return strings.Join([]string{k.DateTime, k.Event.ID, k.Event.Scope, k.Type, k.SubType}, Sep)
}

// ParseKeyMomentKey decodes a key-moment compound key, strictly: exactly five
// separator-delimited parts, all non-empty except subType.
func ParseKeyMomentKey(key string) (KeyMomentKey, error) {
	parts := strings.Split(key, Sep)
	if len(parts) != 5 {
		return KeyMomentKey{}, gameday.NewError(gameday.CodeBadCompoundKey,
			"keyMoment key does not have five parts", "key", key, "parts", len(parts))
	}
	if parts[0] == "" || parts[1] == "" || parts[2] == "" || parts[3] == "" {
		return KeyMomentKey{}, gameday.NewError(gameday.CodeBadCompoundKey,
			"keyMoment key has empty components", "key", key)
	}
	return KeyMomentKey{
		DateTime: parts[0],
		Event:    Ref{ID: parts[1], Scope: parts[2]},
		Type:     parts[3],
		SubType:  parts[4],
	}, nil
}
