package reconcile

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/graphrecon/internal/ir"
)

// IssueKind categorizes a batch analysis finding.
type IssueKind string

const (
	IssueDuplicateTemporaryID IssueKind = "duplicate_temporary_id"
	IssueUnrequestedType      IssueKind = "unrequested_type"
	IssueMissingEndpoints     IssueKind = "missing_endpoints"
	IssueSelfReference        IssueKind = "self_reference"
	IssueLinkToLink           IssueKind = "link_to_link"
	IssueDanglingReference    IssueKind = "dangling_reference"
	IssueIdenticalProposal    IssueKind = "identical_proposal"
)

// Issue is a problem found in a batch before any storage call.
type Issue struct {
	Kind        IssueKind `json:"kind"`
	TemporaryID int       `json:"temporaryId"`
	Message     string    `json:"message"`
}

// String renders the issue for text output.
func (i Issue) String() string {
	return fmt.Sprintf("[%s] entity %d: %s", i.Kind, i.TemporaryID, i.Message)
}

// AnalyzeBatch statically checks a batch for proposals that cannot
// reconcile cleanly: reused temporary ids, links without endpoints, links
// pointing at themselves, at other links, or at ids absent from both the
// batch and prior results, and byte-identical proposals.
//
// types may be nil, in which case a proposal is a link when it names an
// endpoint. Issues are ordered by temporary id, then kind.
func AnalyzeBatch(
	proposalsByType map[ir.VersionedURL][]*ir.ProposedEntity,
	types map[ir.VersionedURL]ir.EntityTypeSchema,
	state *InferenceState,
) []Issue {
	var issues []Issue
	add := func(kind IssueKind, id int, format string, args ...any) {
		issues = append(issues, Issue{Kind: kind, TemporaryID: id, Message: fmt.Sprintf(format, args...)})
	}

	isLink := make(map[int]bool)
	seen := make(map[int]ir.VersionedURL)
	hashes := make(map[string]int)
	var links []*ir.ProposedEntity

	for _, typeID := range slices.Sorted(maps.Keys(proposalsByType)) {
		schema, requested := types[typeID]
		if types != nil && !requested {
			for _, p := range proposalsByType[typeID] {
				if p != nil {
					add(IssueUnrequestedType, p.TemporaryID, "entity type %s is not requested", typeID)
				}
			}
		}

		for _, p := range proposalsByType[typeID] {
			if p == nil {
				continue
			}
			if prevType, dup := seen[p.TemporaryID]; dup {
				add(IssueDuplicateTemporaryID, p.TemporaryID, "temporary id already used by a proposal of type %s", prevType)
				continue
			}
			seen[p.TemporaryID] = typeID

			link := p.IsLinkProposal()
			if requested {
				link = schema.IsLink
			}
			if link {
				isLink[p.TemporaryID] = true
				links = append(links, p)
			}

			typed := *p
			typed.EntityTypeID = typeID
			if hash, err := ir.ProposalHash(&typed); err == nil {
				if first, exists := hashes[hash]; exists {
					add(IssueIdenticalProposal, p.TemporaryID, "identical to proposal %d", first)
				} else {
					hashes[hash] = p.TemporaryID
				}
			}
		}
	}

	var prior map[int]PriorResult
	if state != nil {
		prior = state.ResultsByTemporaryID
	}

	for _, p := range links {
		if p.SourceEntityID == nil || p.TargetEntityID == nil {
			add(IssueMissingEndpoints, p.TemporaryID, "%s", MissingEndpointsMessage)
			continue
		}
		for _, end := range []struct {
			role Role
			id   int
		}{
			{RoleSource, *p.SourceEntityID},
			{RoleTarget, *p.TargetEntityID},
		} {
			switch {
			case end.id == p.TemporaryID:
				add(IssueSelfReference, p.TemporaryID, "%s references the link itself", end.role)
			case isLink[end.id]:
				add(IssueLinkToLink, p.TemporaryID, "%s %d is a link; links cannot connect links", end.role, end.id)
			default:
				_, inBatch := seen[end.id]
				_, inPrior := prior[end.id]
				if !inBatch && !inPrior {
					add(IssueDanglingReference, p.TemporaryID, "%s %d is not proposed and has no prior result", end.role, end.id)
				}
			}
		}
	}

	slices.SortStableFunc(issues, func(a, b Issue) int {
		return cmp.Or(cmp.Compare(a.TemporaryID, b.TemporaryID), cmp.Compare(a.Kind, b.Kind))
	})
	return issues
}
