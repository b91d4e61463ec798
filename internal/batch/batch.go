// Package batch reads proposal batches from YAML and turns them into
// reconciliation requests.
package batch

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/graphrecon/internal/ir"
	"github.com/roach88/graphrecon/internal/reconcile"
)

// File is a batch of proposed entities as written on disk.
type File struct {
	// ActorID and OwnedByID may be left empty and supplied by configuration.
	ActorID   string `yaml:"actor_id,omitempty"`
	OwnedByID string `yaml:"owned_by_id,omitempty"`
	Draft     bool   `yaml:"draft,omitempty"`

	// TypesDir is a CUE entity type directory, relative to the batch file.
	TypesDir string `yaml:"types_dir,omitempty"`

	// RequestedTypes lists the types to resolve. When empty, every type
	// named by a proposal is requested.
	RequestedTypes []string `yaml:"requested_types,omitempty"`

	Proposals []Proposal `yaml:"proposals"`

	// PriorResults maps temporary ids from earlier batches to persisted
	// entity ids ("<ownedById>~<entityUuid>").
	PriorResults map[int]string `yaml:"prior_results,omitempty"`

	Summaries []Summary `yaml:"summaries,omitempty"`
}

// Proposal is one proposed entity or link.
type Proposal struct {
	EntityID       int            `yaml:"entity_id"`
	EntityTypeID   string         `yaml:"entity_type_id"`
	Properties     map[string]any `yaml:"properties,omitempty"`
	SourceEntityID *int           `yaml:"source_entity_id,omitempty"`
	TargetEntityID *int           `yaml:"target_entity_id,omitempty"`
}

// Summary is what inference originally claimed about a proposal.
type Summary struct {
	EntityID       int    `yaml:"entity_id"`
	EntityTypeID   string `yaml:"entity_type_id"`
	Summary        string `yaml:"summary,omitempty"`
	SourceEntityID *int   `yaml:"source_entity_id,omitempty"`
	TargetEntityID *int   `yaml:"target_entity_id,omitempty"`
}

// Load reads and parses a batch file. Unknown fields are rejected and a
// relative TypesDir is resolved against the file's directory.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if f.TypesDir != "" && !filepath.IsAbs(f.TypesDir) {
		f.TypesDir = filepath.Join(filepath.Dir(path), f.TypesDir)
	}
	return f, nil
}

// Parse decodes a batch document.
func Parse(data []byte) (*File, error) {
	var f File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid batch: %w", err)
	}
	return &f, nil
}

// Validate checks the fields Parse cannot check while decoding.
func (f *File) Validate() error {
	for i, p := range f.Proposals {
		if p.EntityTypeID == "" {
			return fmt.Errorf("proposals[%d]: entity_type_id is required", i)
		}
		if !ir.VersionedURL(p.EntityTypeID).Valid() {
			return fmt.Errorf("proposals[%d]: entity_type_id %q is not a versioned url", i, p.EntityTypeID)
		}
	}
	for id, entityID := range f.PriorResults {
		if _, err := ir.ParseEntityID(entityID); err != nil {
			return fmt.Errorf("prior_results[%d]: %w", id, err)
		}
	}
	return nil
}

// ProposalsByType converts the proposals, grouped by entity type in file
// order. Property values that are not valid (floats, for example) are
// errors.
func (f *File) ProposalsByType() (map[ir.VersionedURL][]*ir.ProposedEntity, error) {
	byType := make(map[ir.VersionedURL][]*ir.ProposedEntity)
	for i, p := range f.Proposals {
		props, err := ir.ObjectFromGo(p.Properties)
		if err != nil {
			return nil, fmt.Errorf("proposals[%d] (entity %d): %w", i, p.EntityID, err)
		}
		typeID := ir.VersionedURL(p.EntityTypeID)
		byType[typeID] = append(byType[typeID], &ir.ProposedEntity{
			TemporaryID:    p.EntityID,
			EntityTypeID:   typeID,
			Properties:     props,
			SourceEntityID: p.SourceEntityID,
			TargetEntityID: p.TargetEntityID,
		})
	}
	return byType, nil
}

// TypeIDs returns the requested type ids, sorted.
func (f *File) TypeIDs() []ir.VersionedURL {
	set := make(map[ir.VersionedURL]bool)
	if len(f.RequestedTypes) > 0 {
		for _, id := range f.RequestedTypes {
			set[ir.VersionedURL(id)] = true
		}
	} else {
		for _, p := range f.Proposals {
			set[ir.VersionedURL(p.EntityTypeID)] = true
		}
	}
	ids := make([]ir.VersionedURL, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Source resolves the stored types and entities a batch refers to.
// Implemented by graphstore.Store.
type Source interface {
	EntityType(ctx context.Context, id ir.VersionedURL) (ir.EntityTypeSchema, error)
	GetEntity(ctx context.Context, id ir.EntityID) (ir.Entity, error)
}

// Request builds the reconciliation request for the batch. Identity fields
// left empty in the file are taken from defaults.
func (f *File) Request(ctx context.Context, src Source, defaults Defaults) (reconcile.Request, error) {
	byType, err := f.ProposalsByType()
	if err != nil {
		return reconcile.Request{}, err
	}

	types := make(map[ir.VersionedURL]ir.EntityTypeSchema)
	for _, id := range f.TypeIDs() {
		schema, err := src.EntityType(ctx, id)
		if err != nil {
			return reconcile.Request{}, fmt.Errorf("resolving requested type: %w", err)
		}
		types[id] = schema
	}

	state, err := f.InferenceState(ctx, src)
	if err != nil {
		return reconcile.Request{}, err
	}

	req := reconcile.Request{
		ActorID:                ir.AccountID(firstNonEmpty(f.ActorID, defaults.ActorID)),
		OwnedByID:              ir.OwnedByID(firstNonEmpty(f.OwnedByID, defaults.OwnedByID)),
		CreateAsDraft:          f.Draft || defaults.Draft,
		ProposedEntitiesByType: byType,
		RequestedEntityTypes:   types,
		InferenceState:         state,
	}
	return req, nil
}

// Defaults supplies identity settings a batch file leaves empty.
type Defaults struct {
	ActorID   string
	OwnedByID string
	Draft     bool
}

// InferenceState loads prior results from src and copies the summaries.
// Returns nil when the file has neither.
func (f *File) InferenceState(ctx context.Context, src Source) (*reconcile.InferenceState, error) {
	if len(f.PriorResults) == 0 && len(f.Summaries) == 0 {
		return nil, nil
	}

	state := &reconcile.InferenceState{
		ResultsByTemporaryID: make(map[int]reconcile.PriorResult, len(f.PriorResults)),
	}
	for id, entityID := range f.PriorResults {
		entity, err := src.GetEntity(ctx, ir.EntityID(entityID))
		if err != nil {
			return nil, fmt.Errorf("prior result for entity %d: %w", id, err)
		}
		state.ResultsByTemporaryID[id] = reconcile.PriorResult{Entity: entity}
	}
	state.ProposedEntitySummaries = f.summaries()
	return state, nil
}

// StaticState is InferenceState without a store: prior results are
// reported as present but carry only their entity id. Used for analysis.
func (f *File) StaticState() *reconcile.InferenceState {
	state := &reconcile.InferenceState{
		ResultsByTemporaryID: make(map[int]reconcile.PriorResult, len(f.PriorResults)),
	}
	for id, entityID := range f.PriorResults {
		var entity ir.Entity
		entity.Metadata.RecordID.EntityID = ir.EntityID(entityID)
		state.ResultsByTemporaryID[id] = reconcile.PriorResult{Entity: entity}
	}
	state.ProposedEntitySummaries = f.summaries()
	return state
}

func (f *File) summaries() []reconcile.ProposedEntitySummary {
	out := make([]reconcile.ProposedEntitySummary, len(f.Summaries))
	for i, s := range f.Summaries {
		out[i] = reconcile.ProposedEntitySummary{
			EntityID:       s.EntityID,
			EntityTypeID:   ir.VersionedURL(s.EntityTypeID),
			Summary:        s.Summary,
			SourceEntityID: s.SourceEntityID,
			TargetEntityID: s.TargetEntityID,
		}
	}
	return out
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
