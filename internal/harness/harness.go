package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/roach88/graphrecon/internal/batch"
	"github.com/roach88/graphrecon/internal/compiler"
	"github.com/roach88/graphrecon/internal/graphstore"
	"github.com/roach88/graphrecon/internal/ir"
	"github.com/roach88/graphrecon/internal/reconcile"
	"github.com/roach88/graphrecon/internal/testutil"
)

// Identity used for scenario batches that do not name their own.
const (
	DefaultActorID   = "harness-actor"
	DefaultOwnedByID = "harness-web"
)

// Harness holds the per-scenario execution state.
type Harness struct {
	store  *graphstore.Store
	result *Result
	mu     sync.Mutex
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
// 1. Create a fresh in-memory store
// 2. Compile the scenario's CUE types and register them
// 3. Create setup entities
// 4. Reconcile the batch with a tracing store and a captured log
// 5. Evaluate assertions
//
// An error is returned when the scenario cannot be executed at all;
// assertion failures are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()
	clock := testutil.NewDeterministicClock()

	st, err := graphstore.Open(":memory:",
		graphstore.WithIDGenerator(testutil.NewSequentialIDs()),
		graphstore.WithClock(clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{store: st, result: NewResult()}

	if err := h.registerTypes(ctx, scenario.Types); err != nil {
		return nil, err
	}

	prior, err := h.executeSetup(ctx, scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	req, err := scenario.Batch.Request(ctx, st, batch.Defaults{
		ActorID:   DefaultActorID,
		OwnedByID: DefaultOwnedByID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if len(prior) > 0 {
		if req.InferenceState == nil {
			req.InferenceState = &reconcile.InferenceState{}
		}
		if req.InferenceState.ResultsByTemporaryID == nil {
			req.InferenceState.ResultsByTemporaryID = make(map[int]reconcile.PriorResult, len(prior))
		}
		for id, entity := range prior {
			req.InferenceState.ResultsByTemporaryID[id] = reconcile.PriorResult{Entity: entity}
		}
	}

	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	}))

	eng := reconcile.New(&tracingGraph{graph: st, h: h},
		reconcile.WithLogger(logger),
		reconcile.WithMaxConcurrency(1),
	)

	status, err := eng.ReconcileAndPersist(ctx, req)
	h.result.Log = splitLines(logBuf.String())

	result := h.result
	switch {
	case err != nil:
		var reqErr *reconcile.RequestError
		if !errors.As(err, &reqErr) {
			return nil, fmt.Errorf("reconcile: %w", err)
		}
		result.RequestError = string(reqErr.Code)
		if scenario.ExpectRequestError == "" {
			result.AddError(fmt.Sprintf("unexpected request error: %v", err))
		} else if scenario.ExpectRequestError != result.RequestError {
			result.AddError(fmt.Sprintf("expected request error %s, got %v", scenario.ExpectRequestError, err))
		}
		return result, nil
	case scenario.ExpectRequestError != "":
		result.AddError(fmt.Sprintf("expected request error %s, batch was accepted", scenario.ExpectRequestError))
	}
	result.Status = status

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// registerTypes compiles the CUE type directory into the store.
func (h *Harness) registerTypes(ctx context.Context, dir string) error {
	loaded, errs := compiler.LoadDir(dir, compiler.LoadModeCollectAll)
	if len(errs) > 0 {
		return fmt.Errorf("failed to compile types: %w", errors.Join(errs...))
	}
	for _, schema := range loaded.Types {
		if err := h.store.RegisterEntityType(ctx, schema); err != nil {
			return err
		}
	}
	return nil
}

// executeSetup creates setup entities in order and returns those exposed
// as prior results.
func (h *Harness) executeSetup(ctx context.Context, scenario *Scenario) (map[int]ir.Entity, error) {
	prior := make(map[int]ir.Entity)
	owner := scenario.Batch.OwnedByID
	if owner == "" {
		owner = DefaultOwnedByID
	}

	for i, step := range scenario.Setup {
		props, err := ir.ObjectFromGo(step.Properties)
		if err != nil {
			return nil, fmt.Errorf("setup[%d]: %w", i, err)
		}

		stepOwner := owner
		if step.OwnedByID != "" {
			stepOwner = step.OwnedByID
		}

		meta, err := h.store.CreateEntity(ctx, DefaultActorID, reconcile.CreateEntityRequest{
			EntityTypeID:  ir.VersionedURL(step.EntityTypeID),
			OwnedByID:     ir.OwnedByID(stepOwner),
			Properties:    props,
			Draft:         step.Draft,
			Relationships: reconcile.DefaultRelationships(),
		})
		if err != nil {
			return nil, fmt.Errorf("setup[%d]: %w", i, err)
		}

		if step.Archived {
			if err := h.store.ArchiveEntity(ctx, meta.RecordID.EntityID); err != nil {
				return nil, fmt.Errorf("setup[%d]: %w", i, err)
			}
			meta.Archived = true
		}

		if step.PriorResult != nil {
			prior[*step.PriorResult] = ir.Entity{Metadata: meta, Properties: props}
		}
	}
	return prior, nil
}

func (h *Harness) trace(method string, typeID ir.VersionedURL, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	event := TraceEvent{
		Seq:          int64(len(h.result.Trace) + 1),
		Method:       method,
		EntityTypeID: string(typeID),
	}
	if err != nil {
		event.Error = err.Error()
	}
	h.result.AddTrace(event)
}

// tracingGraph records every storage call the engine makes.
type tracingGraph struct {
	graph reconcile.GraphAPI
	h     *Harness
}

func (g *tracingGraph) ValidateEntity(ctx context.Context, actorID ir.AccountID, req reconcile.ValidateEntityRequest) error {
	err := g.graph.ValidateEntity(ctx, actorID, req)
	g.h.trace("validate", req.EntityTypeID, err)
	return err
}

func (g *tracingGraph) CreateEntity(ctx context.Context, actorID ir.AccountID, req reconcile.CreateEntityRequest) (ir.EntityMetadata, error) {
	meta, err := g.graph.CreateEntity(ctx, actorID, req)
	g.h.trace("create", req.EntityTypeID, err)
	return meta, err
}

func (g *tracingGraph) QueryEntities(ctx context.Context, actorID ir.AccountID, req reconcile.QueryEntitiesRequest) ([]ir.Entity, error) {
	entities, err := g.graph.QueryEntities(ctx, actorID, req)
	g.h.trace("query", "", err)
	return entities, err
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
