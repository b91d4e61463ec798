package testutil

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/roach88/graphrecon/internal/filter"
	"github.com/roach88/graphrecon/internal/ir"
	"github.com/roach88/graphrecon/internal/reconcile"
)

// Graph call methods recorded by RecordingGraph.
const (
	MethodValidate = "validateEntity"
	MethodCreate   = "createEntity"
	MethodQuery    = "queryEntities"
)

// Call is one recorded GraphAPI invocation.
type Call struct {
	Method   string
	ActorID  ir.AccountID
	Validate *reconcile.ValidateEntityRequest
	Create   *reconcile.CreateEntityRequest
	Query    *reconcile.QueryEntitiesRequest
}

// RecordingGraph is an in-memory reconcile.GraphAPI that records every call.
//
// Queries are evaluated with filter.Match over Existing plus everything the
// graph created. Hooks override individual operations; a nil hook means the
// default behaviour (validate succeeds, create assigns sequential ids).
//
// Thread-safety: safe for concurrent use via internal mutex.
type RecordingGraph struct {
	// Existing entities returned by matching queries.
	Existing []ir.Entity

	// ValidateHook, when set, decides the outcome of ValidateEntity.
	ValidateHook func(req reconcile.ValidateEntityRequest) error
	// CreateHook, when set, runs before the default create and may fail it.
	CreateHook func(req reconcile.CreateEntityRequest) error
	// QueryHook, when set, replaces in-memory filter evaluation.
	QueryHook func(req reconcile.QueryEntitiesRequest) ([]ir.Entity, error)

	mu      sync.Mutex
	calls   []Call
	created []ir.Entity
	ids     *SequentialIDs
}

// NewRecordingGraph creates a graph holding the given existing entities.
func NewRecordingGraph(existing ...ir.Entity) *RecordingGraph {
	return &RecordingGraph{
		Existing: existing,
		ids:      NewSequentialIDs(),
	}
}

var _ reconcile.GraphAPI = (*RecordingGraph)(nil)

// ValidateEntity implements reconcile.GraphAPI.
func (g *RecordingGraph) ValidateEntity(ctx context.Context, actorID ir.AccountID, req reconcile.ValidateEntityRequest) error {
	g.record(Call{Method: MethodValidate, ActorID: actorID, Validate: &req})
	if err := ctx.Err(); err != nil {
		return err
	}
	if g.ValidateHook != nil {
		return g.ValidateHook(req)
	}
	return nil
}

// CreateEntity implements reconcile.GraphAPI.
func (g *RecordingGraph) CreateEntity(ctx context.Context, actorID ir.AccountID, req reconcile.CreateEntityRequest) (ir.EntityMetadata, error) {
	g.record(Call{Method: MethodCreate, ActorID: actorID, Create: &req})
	if err := ctx.Err(); err != nil {
		return ir.EntityMetadata{}, err
	}
	if g.CreateHook != nil {
		if err := g.CreateHook(req); err != nil {
			return ir.EntityMetadata{}, err
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	meta := ir.EntityMetadata{
		RecordID: ir.EntityRecordID{
			EntityID:  ir.NewEntityID(req.OwnedByID, ir.EntityUUID(g.ids.Generate())),
			EditionID: g.ids.Generate(),
		},
		EntityTypeID: req.EntityTypeID,
		Draft:        req.Draft,
		CreatedAt:    Epoch,
	}
	g.created = append(g.created, ir.Entity{
		Metadata:   meta,
		Properties: req.Properties.Clone(),
		LinkData:   req.LinkData,
	})
	return meta, nil
}

// QueryEntities implements reconcile.GraphAPI.
func (g *RecordingGraph) QueryEntities(ctx context.Context, actorID ir.AccountID, req reconcile.QueryEntitiesRequest) ([]ir.Entity, error) {
	g.record(Call{Method: MethodQuery, ActorID: actorID, Query: &req})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.QueryHook != nil {
		return g.QueryHook(req)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var out []ir.Entity
	for _, pool := range [][]ir.Entity{g.Existing, g.created} {
		for i := range pool {
			e := &pool[i]
			if e.Metadata.Draft && !req.IncludeDrafts {
				continue
			}
			if asOf := req.TemporalAxes.AsOf; asOf != nil && e.Metadata.CreatedAt.After(*asOf) {
				continue
			}
			if filter.Match(req.Filter, e) {
				out = append(out, *e)
			}
		}
	}
	return out, nil
}

func (g *RecordingGraph) record(c Call) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, c)
}

// Calls returns a copy of every recorded call, in arrival order.
func (g *RecordingGraph) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.calls)
}

// CallsTo returns the recorded calls of one method.
func (g *RecordingGraph) CallsTo(method string) []Call {
	var out []Call
	for _, c := range g.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// CreateRequests returns the payloads of every CreateEntity call.
func (g *RecordingGraph) CreateRequests() []reconcile.CreateEntityRequest {
	var out []reconcile.CreateEntityRequest
	for _, c := range g.CallsTo(MethodCreate) {
		out = append(out, *c.Create)
	}
	return out
}

// ValidateRequests returns the payloads of every ValidateEntity call.
func (g *RecordingGraph) ValidateRequests() []reconcile.ValidateEntityRequest {
	var out []reconcile.ValidateEntityRequest
	for _, c := range g.CallsTo(MethodValidate) {
		out = append(out, *c.Validate)
	}
	return out
}

// ExistingEntity builds a persisted entity for seeding a RecordingGraph.
func ExistingEntity(owner ir.OwnedByID, uuid string, typeID ir.VersionedURL, props ir.Object) ir.Entity {
	return ir.Entity{
		Metadata: ir.EntityMetadata{
			RecordID: ir.EntityRecordID{
				EntityID:  ir.NewEntityID(owner, ir.EntityUUID(uuid)),
				EditionID: uuid + "-edition",
			},
			EntityTypeID: typeID,
			CreatedAt:    Epoch.Add(-time.Hour),
		},
		Properties: props,
	}
}
