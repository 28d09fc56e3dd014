package crossref_keys

import (
	"fmt"
	"hash/fnv"
)

// ShortHash returns a stable 8-hex-digit non-cryptographic hash of s.
// FNV-1a, so plans carrying hashed names are reproducible across runs and
// hosts.
func ShortHash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}

// StepOutputName derives the stable name under which a planned traversal
// step publishes its id-set. Depth participates so the same edge label at
// different depths (impossible within one simple route, possible across
// routes) stays distinct.
func StepOutputName(edgeLabel string, depth int) string {
	return fmt.Sprintf("_ids_%d_%s", depth, ShortHash(fmt.Sprintf("%d:%s", depth, edgeLabel)))
}
