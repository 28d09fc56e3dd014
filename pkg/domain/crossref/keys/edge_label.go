package crossref_keys

import (
	"fmt"
	"regexp"

	gameday "github.com/replay-api/gameday-index/pkg/domain"
)

// EdgeLabel renders the canonical "from.field->to" name of a typed edge.
func EdgeLabel(from gameday.ResourceType, field string, to gameday.ResourceType) string {
	return fmt.Sprintf("%s.%s->%s", from, field, to)
}

var edgeLabelRe = regexp.MustCompile(`^([A-Za-z]+)\.([A-Za-z]+)->([A-Za-z]+)$`)

// ParseEdgeLabel decodes "from.field->to". The types are validated against
// the fixed type set; the field is validated against the graph by callers.
func ParseEdgeLabel(label string) (from gameday.ResourceType, field string, to gameday.ResourceType, err error) {
	m := edgeLabelRe.FindStringSubmatch(label)
	if m == nil {
		return "", "", "", gameday.NewError(gameday.CodeBadEdgeLabel,
			"edge label is not from.field->to", "label", label)
	}
	from, field, to = gameday.ResourceType(m[1]), m[2], gameday.ResourceType(m[3])
	if !gameday.IsKnownResourceType(from) {
		return "", "", "", gameday.NewError(gameday.CodeBadEdgeLabel,
			"unknown source type in edge label", "label", label, "from", string(from))
	}
	if !gameday.IsKnownResourceType(to) {
		return "", "", "", gameday.NewError(gameday.CodeBadEdgeLabel,
			"unknown target type in edge label", "label", label, "to", string(to))
	}
	return from, field, to, nil
}
