package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/graphrecon/internal/ir"
)

// Proposal kinds used as a metric label.
const (
	kindEntity = "entity"
	kindLink   = "link"
)

// Metrics records reconciliation outcomes and storage traffic.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	outcomes     *prometheus.CounterVec
	storageCalls *prometheus.CounterVec
	batchSeconds prometheus.Histogram
}

// NewMetrics creates the reconciliation collectors and registers them
// with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphrecon",
			Subsystem: "reconcile",
			Name:      "proposals_total",
			Help:      "Proposals reconciled, by kind and terminal outcome.",
		}, []string{"kind", "outcome"}),
		storageCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphrecon",
			Subsystem: "reconcile",
			Name:      "storage_calls_total",
			Help:      "Graph API calls issued, by method and result.",
		}, []string{"method", "result"}),
		batchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "graphrecon",
			Subsystem: "reconcile",
			Name:      "batch_duration_seconds",
			Help:      "Wall time of ReconcileAndPersist calls.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	for _, c := range []prometheus.Collector{m.outcomes, m.storageCalls, m.batchSeconds} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register reconcile metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) observeOutcome(kind string, outcome Outcome) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(kind, string(outcome)).Inc()
}

func (m *Metrics) observeBatch(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.batchSeconds.Observe(elapsed.Seconds())
}

func (m *Metrics) observeCall(method string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.storageCalls.WithLabelValues(method, result).Inc()
}

// instrumentedGraph counts calls passing through to the wrapped GraphAPI.
type instrumentedGraph struct {
	next    GraphAPI
	metrics *Metrics
}

func instrument(graph GraphAPI, m *Metrics) GraphAPI {
	if m == nil {
		return graph
	}
	return &instrumentedGraph{next: graph, metrics: m}
}

func (g *instrumentedGraph) ValidateEntity(ctx context.Context, actorID ir.AccountID, req ValidateEntityRequest) error {
	err := g.next.ValidateEntity(ctx, actorID, req)
	g.metrics.observeCall("validate", err)
	return err
}

func (g *instrumentedGraph) CreateEntity(ctx context.Context, actorID ir.AccountID, req CreateEntityRequest) (ir.EntityMetadata, error) {
	md, err := g.next.CreateEntity(ctx, actorID, req)
	g.metrics.observeCall("create", err)
	return md, err
}

func (g *instrumentedGraph) QueryEntities(ctx context.Context, actorID ir.AccountID, req QueryEntitiesRequest) ([]ir.Entity, error) {
	entities, err := g.next.QueryEntities(ctx, actorID, req)
	g.metrics.observeCall("query", err)
	return entities, err
}
