package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/graphrecon/internal/ir"
)

// Engine reconciles batches of proposed entities against a graph and
// persists them.
//
// Thread-safety model:
//   - ReconcileAndPersist: safe to call concurrently; each call owns its
//     StatusMap
//   - Within a call, each proposal is handled by exactly one goroutine that
//     writes only its own temporary id
type Engine struct {
	graph          GraphAPI
	logger         *slog.Logger
	maxConcurrency int
	metrics        *Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the log sink. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMaxConcurrency bounds the number of proposals processed at once
// within a phase. Zero or negative means unbounded.
func WithMaxConcurrency(n int) Option {
	return func(e *Engine) {
		e.maxConcurrency = n
	}
}

// WithMetrics records outcomes and storage calls on m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an Engine persisting through graph.
func New(graph GraphAPI, opts ...Option) *Engine {
	e := &Engine{
		graph:  graph,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Request is one reconciliation batch.
type Request struct {
	// ActorID performs every storage call.
	ActorID ir.AccountID

	// OwnedByID is the web created entities belong to, and the owner
	// duplicates are searched in.
	OwnedByID ir.OwnedByID

	// CreateAsDraft validates and creates entities as drafts.
	CreateAsDraft bool

	// ProposedEntitiesByType groups proposals by entity type.
	ProposedEntitiesByType map[ir.VersionedURL][]*ir.ProposedEntity

	// RequestedEntityTypes resolves every type appearing in
	// ProposedEntitiesByType. Link types have IsLink set.
	RequestedEntityTypes map[ir.VersionedURL]ir.EntityTypeSchema

	// InferenceState carries prior results and proposal summaries.
	// May be nil.
	InferenceState *InferenceState
}

func (e *Engine) checkRequest(req *Request) error {
	if e.graph == nil {
		return newRequestError(ErrCodeNoGraph, "engine has no graph API")
	}
	if req.OwnedByID == "" {
		return newRequestError(ErrCodeMissingOwner, "ownedById is required")
	}
	for _, typeID := range slices.Sorted(maps.Keys(req.ProposedEntitiesByType)) {
		schema, ok := req.RequestedEntityTypes[typeID]
		if !ok {
			return newRequestError(ErrCodeUnrequestedType, "entity type %s has proposals but was not requested", typeID)
		}
		if schema.ID != "" && schema.ID != typeID {
			return newRequestError(ErrCodeSchemaMismatch, "entity type %s is registered with schema %s", typeID, schema.ID)
		}
		for i, p := range req.ProposedEntitiesByType[typeID] {
			if p == nil {
				return newRequestError(ErrCodeNilProposal, "entity type %s: proposal %d is nil", typeID, i)
			}
		}
	}
	return nil
}

// ReconcileAndPersist reconciles every proposal of req and returns the
// completed status map.
//
// Non-link proposals are processed first, concurrently. Once all of them
// have settled, link proposals are processed concurrently against a
// snapshot of the non-link results. Per-proposal failures are recorded in
// the status map; the returned error is non-nil only for a *RequestError,
// in which case no storage call was made.
func (e *Engine) ReconcileAndPersist(ctx context.Context, req Request) (*StatusMap, error) {
	if err := e.checkRequest(&req); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		e.metrics.observeBatch(time.Since(start))
	}()

	state := req.InferenceState
	if state == nil {
		state = &InferenceState{}
	}

	graph := instrument(e.graph, e.metrics)
	run := &batchRun{
		req:     &req,
		graph:   graph,
		matcher: NewMatcher(graph, req.ActorID),
		logger:  e.logger,
		metrics: e.metrics,
		status:  NewStatusMap(state.ResultsByTemporaryID, e.logger),
	}

	var linkTypes []ir.VersionedURL
	entities := e.newGroup()
	for _, typeID := range slices.Sorted(maps.Keys(req.ProposedEntitiesByType)) {
		schema := req.RequestedEntityTypes[typeID]
		if schema.IsLink {
			linkTypes = append(linkTypes, typeID)
			continue
		}
		for _, proposal := range req.ProposedEntitiesByType[typeID] {
			entities.Go(func() error {
				run.persistEntity(ctx, typeID, &schema, proposal)
				return nil
			})
		}
	}
	// Tasks never return errors; Wait only joins them.
	_ = entities.Wait()

	run.resolver = newResolver(
		run.status.Snapshot(),
		newProposalIndex(flattenProposals(req.ProposedEntitiesByType)),
		state,
	)

	links := e.newGroup()
	for _, typeID := range linkTypes {
		for _, proposal := range req.ProposedEntitiesByType[typeID] {
			links.Go(func() error {
				run.persistLink(ctx, typeID, proposal)
				return nil
			})
		}
	}
	_ = links.Wait()

	summary := run.status.Summary()
	e.logger.Debug("reconciliation complete",
		"created", summary.Created,
		"creation_failed", summary.CreationFailed,
		"update_candidates", summary.UpdateCandidates,
		"unchanged", summary.Unchanged,
	)

	return run.status, nil
}

func (e *Engine) newGroup() *errgroup.Group {
	g := new(errgroup.Group)
	if e.maxConcurrency > 0 {
		g.SetLimit(e.maxConcurrency)
	}
	return g
}

// batchRun holds the state shared by the tasks of one ReconcileAndPersist
// call.
type batchRun struct {
	req      *Request
	graph    GraphAPI
	matcher  *Matcher
	resolver *Resolver
	logger   *slog.Logger
	metrics  *Metrics
	status   *StatusMap
}

// persistEntity drives a non-link proposal to its terminal outcome.
func (r *batchRun) persistEntity(ctx context.Context, typeID ir.VersionedURL, schema *ir.EntityTypeSchema, proposal *ir.ProposedEntity) {
	props := NormalizeProperties(schema, proposal, r.logger)

	existing, err := r.matcher.FindDuplicate(ctx, r.req.OwnedByID, typeID, props)
	if err != nil {
		r.fail(kindEntity, typeID, proposal, err)
		return
	}

	if existing != nil {
		if !IsMatch(existing.Properties, props) {
			r.recordCandidate(kindEntity, proposal, existing)
			return
		}
		r.logger.Info(
			fmt.Sprintf("Proposed entity %d exactly matches existing entity - continuing", proposal.TemporaryID),
			"temporary_id", proposal.TemporaryID,
			"entity_id", existing.EntityID(),
		)
		r.recordUnchanged(kindEntity, typeID, proposal, existing)
		return
	}

	entity, err := r.create(ctx, typeID, props)
	if err != nil {
		r.fail(kindEntity, typeID, proposal, err)
		return
	}
	r.recordSuccess(kindEntity, typeID, proposal, entity)
}

// persistLink drives a link proposal to its terminal outcome. Endpoints
// are resolved before any storage call.
func (r *batchRun) persistLink(ctx context.Context, typeID ir.VersionedURL, proposal *ir.ProposedEntity) {
	props := NormalizeProperties(nil, proposal, r.logger)

	linkData, failure := r.resolver.ResolveEndpoints(proposal)
	if failure != nil {
		r.logger.Warn(
			fmt.Sprintf("Link entity with temporary id %d could not be resolved: %s", proposal.TemporaryID, failure.Reason),
			"temporary_id", proposal.TemporaryID,
			"role", failure.Role,
			"endpoint_temporary_id", failure.TemporaryID,
		)
		r.recordFailure(kindLink, typeID, proposal, failure.Reason)
		return
	}

	if err := r.validate(ctx, typeID, props, linkData); err != nil {
		r.fail(kindLink, typeID, proposal, err)
		return
	}

	existing, err := r.matcher.FindDuplicateLink(ctx, *linkData)
	if err != nil {
		r.fail(kindLink, typeID, proposal, err)
		return
	}

	if existing != nil {
		if !IsMatch(existing.Properties, props) {
			r.recordCandidate(kindLink, proposal, existing)
		} else {
			r.recordUnchanged(kindLink, typeID, proposal, existing)
		}
		// Emitted for both branches, including differing links.
		r.logger.Info(
			fmt.Sprintf("Proposed link entity %d exactly matches existing entity - continuing", proposal.TemporaryID),
			"temporary_id", proposal.TemporaryID,
			"entity_id", existing.EntityID(),
		)
		return
	}

	md, err := r.graph.CreateEntity(ctx, r.req.ActorID, r.createRequest(typeID, props, linkData))
	if err != nil {
		r.fail(kindLink, typeID, proposal, err)
		return
	}
	r.recordSuccess(kindLink, typeID, proposal, ir.Entity{
		Metadata:   md,
		Properties: props,
		LinkData:   linkData,
	})
}

func (r *batchRun) validate(ctx context.Context, typeID ir.VersionedURL, props ir.Object, linkData *ir.LinkData) error {
	return r.graph.ValidateEntity(ctx, r.req.ActorID, ValidateEntityRequest{
		EntityTypeID: typeID,
		Properties:   props,
		LinkData:     linkData,
		Draft:        r.req.CreateAsDraft,
		Operations:   []string{ValidationOperationAll},
	})
}

func (r *batchRun) createRequest(typeID ir.VersionedURL, props ir.Object, linkData *ir.LinkData) CreateEntityRequest {
	return CreateEntityRequest{
		EntityTypeID:  typeID,
		OwnedByID:     r.req.OwnedByID,
		Properties:    props,
		LinkData:      linkData,
		Draft:         r.req.CreateAsDraft,
		Relationships: DefaultRelationships(),
	}
}

// create validates then creates a non-link entity.
func (r *batchRun) create(ctx context.Context, typeID ir.VersionedURL, props ir.Object) (ir.Entity, error) {
	if err := r.validate(ctx, typeID, props, nil); err != nil {
		return ir.Entity{}, err
	}
	md, err := r.graph.CreateEntity(ctx, r.req.ActorID, r.createRequest(typeID, props, nil))
	if err != nil {
		return ir.Entity{}, err
	}
	return ir.Entity{Metadata: md, Properties: props}, nil
}

// fail logs a storage error and records it as a creation failure.
func (r *batchRun) fail(kind string, typeID ir.VersionedURL, proposal *ir.ProposedEntity, err error) {
	what := "entity"
	if kind == kindLink {
		what = "link entity"
	}
	r.logger.Error(
		fmt.Sprintf("Creation of %s id %d failed with err: %v", what, proposal.TemporaryID, err),
		"temporary_id", proposal.TemporaryID,
		"entity_type_id", typeID,
		"error", err,
	)
	r.recordFailure(kind, typeID, proposal, FailureReason(err))
}

func (r *batchRun) recordFailure(kind string, typeID ir.VersionedURL, proposal *ir.ProposedEntity, reason string) {
	if r.status.RecordCreationFailure(proposal.TemporaryID, CreationFailure{
		EntityTypeID:   typeID,
		ProposedEntity: proposal,
		FailureReason:  reason,
	}) {
		r.metrics.observeOutcome(kind, OutcomeCreationFailed)
	}
}

func (r *batchRun) recordSuccess(kind string, typeID ir.VersionedURL, proposal *ir.ProposedEntity, entity ir.Entity) {
	if r.status.RecordCreationSuccess(proposal.TemporaryID, CreationSuccess{
		Entity:         entity,
		EntityTypeID:   typeID,
		ProposedEntity: proposal,
	}) {
		r.metrics.observeOutcome(kind, OutcomeCreated)
	}
}

func (r *batchRun) recordCandidate(kind string, proposal *ir.ProposedEntity, existing *ir.Entity) {
	if r.status.RecordUpdateCandidate(proposal.TemporaryID, UpdateCandidate{
		Entity:         *existing,
		ProposedEntity: proposal,
	}) {
		r.metrics.observeOutcome(kind, OutcomeUpdateCandidate)
	}
}

func (r *batchRun) recordUnchanged(kind string, typeID ir.VersionedURL, proposal *ir.ProposedEntity, existing *ir.Entity) {
	if r.status.RecordUnchanged(proposal.TemporaryID, MatchesExisting{
		Entity:         *existing,
		EntityTypeID:   typeID,
		ProposedEntity: proposal,
	}) {
		r.metrics.observeOutcome(kind, OutcomeUnchanged)
	}
}
