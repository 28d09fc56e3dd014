package crossref_entities

import (
	gameday "github.com/replay-api/gameday-index/pkg/domain"
)

// TypeKey identifies one aggregation record: a resource type plus its
// external key.
type TypeKey struct {
	ResourceType gameday.ResourceType `json:"resourceType"`
	ExternalKey  string               `json:"externalKey"`
}

// CascadeReport summarizes one transitive rebuild: every entry lands in
// exactly one of Completed, Failed or Skipped; Attempted is their union in
// attempt order.
type CascadeReport struct {
	Root      TypeKey   `json:"root"`
	Attempted []TypeKey `json:"attempted"`
	Completed []TypeKey `json:"completed"`
	Failed    []TypeKey `json:"failed"`
	Skipped   []TypeKey `json:"skipped"`
}
