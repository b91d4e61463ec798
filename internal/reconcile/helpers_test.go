package reconcile_test

import (
	"bytes"
	"io"
	"log/slog"

	"github.com/roach88/graphrecon/internal/ir"
	"github.com/roach88/graphrecon/internal/reconcile"
)

const (
	personType   ir.VersionedURL = "https://example.com/@acme/types/entity-type/person/v/1"
	companyType  ir.VersionedURL = "https://example.com/@acme/types/entity-type/company/v/1"
	tagType      ir.VersionedURL = "https://example.com/@acme/types/entity-type/tag/v/1"
	worksForType ir.VersionedURL = "https://example.com/@acme/types/entity-type/works-for/v/1"

	nameKey  = "https://example.com/@acme/types/property-type/name/"
	ageKey   = "https://example.com/@acme/types/property-type/age/"
	sinceKey = "https://example.com/@acme/types/property-type/since/"

	owner ir.OwnedByID = "web-1"
	actor ir.AccountID = "actor-1"
)

func requestedTypes() map[ir.VersionedURL]ir.EntityTypeSchema {
	return map[ir.VersionedURL]ir.EntityTypeSchema{
		personType: {
			ID:    personType,
			Title: "Person",
			Properties: map[ir.BaseURL]ir.PropertySchema{
				nameKey: {Title: "Name", Type: ir.PropertyText},
				ageKey:  {Title: "Age", Type: ir.PropertyNumber},
				"name/": {Title: "Short name", Type: ir.PropertyText},
			},
		},
		companyType: {
			ID:    companyType,
			Title: "Company",
			Properties: map[ir.BaseURL]ir.PropertySchema{
				nameKey: {Title: "Name", Type: ir.PropertyText},
			},
		},
		tagType: {
			ID:         tagType,
			Title:      "Tag",
			Properties: map[ir.BaseURL]ir.PropertySchema{},
		},
		worksForType: {
			ID:    worksForType,
			Title: "Works For",
			Properties: map[ir.BaseURL]ir.PropertySchema{
				sinceKey: {Title: "Since", Type: ir.PropertyNumber},
			},
			IsLink: true,
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// captureLogger returns a logger writing text records into the buffer.
func captureLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

func newEngine(graph reconcile.GraphAPI, opts ...reconcile.Option) *reconcile.Engine {
	return reconcile.New(graph, append([]reconcile.Option{reconcile.WithLogger(discardLogger())}, opts...)...)
}

// batch groups proposals by their EntityTypeID.
func batch(proposals ...*ir.ProposedEntity) map[ir.VersionedURL][]*ir.ProposedEntity {
	out := make(map[ir.VersionedURL][]*ir.ProposedEntity)
	for _, p := range proposals {
		out[p.EntityTypeID] = append(out[p.EntityTypeID], p)
	}
	return out
}

func request(proposals ...*ir.ProposedEntity) reconcile.Request {
	return reconcile.Request{
		ActorID:                actor,
		OwnedByID:              owner,
		ProposedEntitiesByType: batch(proposals...),
		RequestedEntityTypes:   requestedTypes(),
	}
}

func person(id int, props ir.Object) *ir.ProposedEntity {
	return &ir.ProposedEntity{TemporaryID: id, EntityTypeID: personType, Properties: props}
}

func company(id int, props ir.Object) *ir.ProposedEntity {
	return &ir.ProposedEntity{TemporaryID: id, EntityTypeID: companyType, Properties: props}
}

func worksFor(id int, source, target *int, props ir.Object) *ir.ProposedEntity {
	return &ir.ProposedEntity{
		TemporaryID:    id,
		EntityTypeID:   worksForType,
		Properties:     props,
		SourceEntityID: source,
		TargetEntityID: target,
	}
}

// outcomeCount returns how many of the four maps hold the temporary id.
func outcomeCount(m *reconcile.StatusMap, id int) int {
	n := 0
	if _, ok := m.CreationSuccesses[id]; ok {
		n++
	}
	if _, ok := m.CreationFailures[id]; ok {
		n++
	}
	if _, ok := m.UpdateCandidates[id]; ok {
		n++
	}
	if _, ok := m.UnchangedEntities[id]; ok {
		n++
	}
	return n
}
