package reconcile

import (
	"fmt"

	"github.com/roach88/graphrecon/internal/ir"
)

// Role names which end of a link an endpoint is.
type Role string

const (
	RoleSource Role = "source"
	RoleTarget Role = "target"
)

// MissingEndpointsMessage is the failure reason for a link proposal that
// lacks sourceEntityId or targetEntityId.
const MissingEndpointsMessage = "Link entities must have both a sourceEntityId and a targetEntityId."

// ResolutionFailure explains why a link endpoint could not be resolved.
type ResolutionFailure struct {
	Role        Role
	TemporaryID int
	Reason      string
}

// Error implements the error interface.
func (f *ResolutionFailure) Error() string {
	return f.Reason
}

// Resolver maps link endpoint temporary ids to persisted entities.
//
// It reads a frozen snapshot of the status map, so every link of a batch
// resolves against the same non-link results.
type Resolver struct {
	snapshot *StatusMap
	batch    *proposalIndex
	state    *InferenceState
}

// NewResolver creates a resolver over a status map snapshot. proposals is
// every proposal of the run, links included; state may be nil.
func NewResolver(snapshot *StatusMap, proposals []*ir.ProposedEntity, state *InferenceState) *Resolver {
	return newResolver(snapshot, newProposalIndex(proposals), state)
}

func newResolver(snapshot *StatusMap, batch *proposalIndex, state *InferenceState) *Resolver {
	if state == nil {
		state = &InferenceState{}
	}
	return &Resolver{snapshot: snapshot, batch: batch, state: state}
}

// Resolve returns the persisted entity for an endpoint.
func (r *Resolver) Resolve(role Role, temporaryID int) (*ir.Entity, *ResolutionFailure) {
	if entity, ok := r.snapshot.FindPersistedEntity(temporaryID); ok {
		return entity, nil
	}

	if upstream, failed := r.snapshot.Failure(temporaryID); failed {
		return nil, &ResolutionFailure{
			Role:        role,
			TemporaryID: temporaryID,
			Reason: fmt.Sprintf("Link entity could not be created - %s with temporary id %d failed to be created with reason: %s",
				role, temporaryID, upstream.FailureReason),
		}
	}

	// Only reachable for a link referencing another link of the same batch:
	// links are never in the snapshot.
	if r.batch.contains(temporaryID) {
		return nil, &ResolutionFailure{
			Role:        role,
			TemporaryID: temporaryID,
			Reason: fmt.Sprintf("%s with temporaryId %d was proposed but not created, and no creation error is recorded",
				role, temporaryID),
		}
	}

	return nil, &ResolutionFailure{
		Role:        role,
		TemporaryID: temporaryID,
		Reason:      fmt.Sprintf("%s with temporaryId %d not found in proposed entities", role, temporaryID),
	}
}

// ResolveEndpoints resolves both ends of a link proposal into link data.
// A proposal missing either endpoint fails without any lookup. Source is
// resolved before target; the first failure is returned.
func (r *Resolver) ResolveEndpoints(proposal *ir.ProposedEntity) (*ir.LinkData, *ResolutionFailure) {
	if proposal.SourceEntityID == nil || proposal.TargetEntityID == nil {
		return nil, &ResolutionFailure{
			TemporaryID: proposal.TemporaryID,
			Reason:      r.MissingEndpointsReason(proposal.TemporaryID),
		}
	}

	source, failure := r.Resolve(RoleSource, *proposal.SourceEntityID)
	if failure != nil {
		return nil, failure
	}
	target, failure := r.Resolve(RoleTarget, *proposal.TargetEntityID)
	if failure != nil {
		return nil, failure
	}

	return &ir.LinkData{
		LeftEntityID:  source.EntityID(),
		RightEntityID: target.EntityID(),
	}, nil
}

// MissingEndpointsReason renders the missing-endpoint failure, quoting the
// originally proposed endpoints when the inference state has a summary.
func (r *Resolver) MissingEndpointsReason(temporaryID int) string {
	summary, ok := r.state.Summary(temporaryID)
	if !ok {
		return MissingEndpointsMessage
	}
	return fmt.Sprintf("%s You originally proposed that entityId %d should have sourceEntityId %s and targetEntityId %s.",
		MissingEndpointsMessage, temporaryID, optionalID(summary.SourceEntityID), optionalID(summary.TargetEntityID))
}

func optionalID(id *int) string {
	if id == nil {
		return ""
	}
	return fmt.Sprintf("%d", *id)
}
