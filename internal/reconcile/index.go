package reconcile

import (
	"maps"
	"slices"

	"github.com/roach88/graphrecon/internal/ir"
)

// proposalIndex is the arena of a batch's proposals keyed by temporary id.
// Links reference their endpoints through it by id, never by pointer.
type proposalIndex struct {
	byID map[int]*ir.ProposedEntity
}

func newProposalIndex(proposals []*ir.ProposedEntity) *proposalIndex {
	idx := &proposalIndex{byID: make(map[int]*ir.ProposedEntity, len(proposals))}
	for _, p := range proposals {
		if p == nil {
			continue
		}
		if _, seen := idx.byID[p.TemporaryID]; !seen {
			idx.byID[p.TemporaryID] = p
		}
	}
	return idx
}

func (idx *proposalIndex) contains(temporaryID int) bool {
	_, ok := idx.byID[temporaryID]
	return ok
}

// flattenProposals returns every proposal of a batch, types visited in
// sorted order.
func flattenProposals(byType map[ir.VersionedURL][]*ir.ProposedEntity) []*ir.ProposedEntity {
	var out []*ir.ProposedEntity
	for _, typeID := range slices.Sorted(maps.Keys(byType)) {
		out = append(out, byType[typeID]...)
	}
	return out
}
