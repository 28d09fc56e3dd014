// Package crossref_keys is the codec for the string identities the index
// lives on: simple external keys, the compound ranking/staff/keyMoment keys,
// edge labels, and the deterministic short hashes used to name planned
// traversal outputs.
//
// Separator byte sequences are fixed and must never occur inside ids, scopes
// or labels of the source data.
package crossref_keys

import (
	"strings"

	gameday "github.com/replay-api/gameday-index/pkg/domain"
)

// Sep joins an external id and its scope inside every key.
const Sep = "[#]"

// Ref is an external identity pair.
type Ref struct {
	ID    string
	Scope string
}

// Key renders the ref as "id[#]scope".
func (r Ref) Key() string {
	return r.ID + Sep + r.Scope
}

// IsZero reports whether the ref is empty.
func (r Ref) IsZero() bool {
	return r.ID == "" && r.Scope == ""
}

// ParseRef decodes a simple "id[#]scope" key.
func ParseRef(key string) (Ref, error) {
	id, scope, ok := strings.Cut(key, Sep)
	if !ok || id == "" || scope == "" || strings.Contains(scope, Sep) {
		return Ref{}, gameday.NewError(gameday.CodeBadCompoundKey,
			"external key is not id"+Sep+"scope", "key", key)
	}
	return Ref{ID: id, Scope: scope}, nil
}
