// Package reconcile implements the entity reconciliation pipeline.
//
// An inference process proposes a batch of entities and link entities,
// each tagged with a caller-assigned temporary id. Engine.ReconcileAndPersist
// reconciles the batch against the existing graph and persists it, placing
// every proposal into exactly one of four outcomes of the StatusMap:
//
//	CreationSuccesses  - created in storage
//	CreationFailures   - could not be created; carries a failure reason
//	UpdateCandidates   - an existing entity differs from the proposal
//	UnchangedEntities  - an existing entity already matches the proposal
//
// # Phases
//
// Non-link proposals are persisted first, all concurrently. Link proposals
// run second, also concurrently, and resolve their source and target
// temporary ids against a frozen snapshot of the first phase. A link can
// therefore never use another link of the same batch as an endpoint.
//
// # Failure policy
//
// Per-entity failures never abort the batch. Validation, query and create
// errors all become CreationFailures with the error message plus a trailing
// period as the failure reason. ReconcileAndPersist only returns an error
// for malformed call-level input (see RequestError).
package reconcile
