package reconcile

import (
	"log/slog"
	"maps"
	"sync"

	"github.com/roach88/graphrecon/internal/ir"
)

// Operation names the storage operation an outcome refers to.
type Operation string

const (
	OperationCreate                  Operation = "create"
	OperationAlreadyExistsAsProposed Operation = "already-exists-as-proposed"
)

// Status is the terminal status of a proposal.
type Status string

const (
	StatusSuccess         Status = "success"
	StatusFailure         Status = "failure"
	StatusUpdateCandidate Status = "update-candidate"
)

// Outcome names the status map bucket a temporary id landed in.
type Outcome string

const (
	OutcomeCreated         Outcome = "created"
	OutcomeCreationFailed  Outcome = "creation_failed"
	OutcomeUpdateCandidate Outcome = "update_candidate"
	OutcomeUnchanged       Outcome = "unchanged"
)

// CreationSuccess records a newly created entity.
type CreationSuccess struct {
	Entity         ir.Entity          `json:"entity"`
	EntityTypeID   ir.VersionedURL    `json:"entityTypeId"`
	ProposedEntity *ir.ProposedEntity `json:"proposedEntity"`
	Operation      Operation          `json:"operation"`
	Status         Status             `json:"status"`
}

// CreationFailure records a proposal that could not be created.
type CreationFailure struct {
	EntityTypeID   ir.VersionedURL    `json:"entityTypeId"`
	ProposedEntity *ir.ProposedEntity `json:"proposedEntity"`
	FailureReason  string             `json:"failureReason"`
	Operation      Operation          `json:"operation"`
	Status         Status             `json:"status"`
}

// UpdateCandidate records an existing entity that differs from the proposal.
// The update is not applied; confirming it is up to the caller.
type UpdateCandidate struct {
	Entity         ir.Entity          `json:"entity"`
	ProposedEntity *ir.ProposedEntity `json:"proposedEntity"`
	Status         Status             `json:"status"`
}

// MatchesExisting records an existing entity that already matches the
// proposal. No write was performed.
type MatchesExisting struct {
	Entity         ir.Entity          `json:"entity"`
	EntityTypeID   ir.VersionedURL    `json:"entityTypeId"`
	ProposedEntity *ir.ProposedEntity `json:"proposedEntity"`
	Operation      Operation          `json:"operation"`
	Status         Status             `json:"status"`
}

// PriorResult is an entity resolved by an earlier phase of the wider
// inference workflow.
type PriorResult struct {
	Entity ir.Entity `json:"entity"`
}

// ProposedEntitySummary is what the inference process originally claimed
// about a proposal, kept for diagnostics.
type ProposedEntitySummary struct {
	EntityID       int             `json:"entityId"`
	EntityTypeID   ir.VersionedURL `json:"entityTypeId"`
	Summary        string          `json:"summary,omitempty"`
	SourceEntityID *int            `json:"sourceEntityId,omitempty"`
	TargetEntityID *int            `json:"targetEntityId,omitempty"`
}

// InferenceState is caller-supplied state from the wider workflow.
type InferenceState struct {
	ResultsByTemporaryID    map[int]PriorResult     `json:"resultsByTemporaryId"`
	ProposedEntitySummaries []ProposedEntitySummary `json:"proposedEntitySummaries"`
}

// Summary returns the summary recorded for a temporary id, if any.
func (s *InferenceState) Summary(temporaryID int) (ProposedEntitySummary, bool) {
	for _, summary := range s.ProposedEntitySummaries {
		if summary.EntityID == temporaryID {
			return summary, true
		}
	}
	return ProposedEntitySummary{}, false
}

// StatusMap accumulates the outcome of every proposal, keyed by temporary id.
//
// Each temporary id is written at most once across the four maps: the
// first writer wins and later writes are dropped and logged. The Record
// methods are safe for concurrent use; once ReconcileAndPersist has
// returned, the maps may be read directly.
type StatusMap struct {
	CreationSuccesses map[int]CreationSuccess `json:"creationSuccesses"`
	CreationFailures  map[int]CreationFailure `json:"creationFailures"`
	UpdateCandidates  map[int]UpdateCandidate `json:"updateCandidates"`
	UnchangedEntities map[int]MatchesExisting `json:"unchangedEntities"`

	mu     sync.Mutex
	prior  map[int]PriorResult
	logger *slog.Logger
}

// NewStatusMap creates an empty status map backed by the caller's prior
// results. A nil logger discards rejected-write diagnostics.
func NewStatusMap(prior map[int]PriorResult, logger *slog.Logger) *StatusMap {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &StatusMap{
		CreationSuccesses: make(map[int]CreationSuccess),
		CreationFailures:  make(map[int]CreationFailure),
		UpdateCandidates:  make(map[int]UpdateCandidate),
		UnchangedEntities: make(map[int]MatchesExisting),
		prior:             prior,
		logger:            logger,
	}
}

// outcomeLocked returns the bucket holding id. Caller holds mu.
func (m *StatusMap) outcomeLocked(id int) (Outcome, bool) {
	if _, ok := m.CreationSuccesses[id]; ok {
		return OutcomeCreated, true
	}
	if _, ok := m.CreationFailures[id]; ok {
		return OutcomeCreationFailed, true
	}
	if _, ok := m.UpdateCandidates[id]; ok {
		return OutcomeUpdateCandidate, true
	}
	if _, ok := m.UnchangedEntities[id]; ok {
		return OutcomeUnchanged, true
	}
	return "", false
}

// Outcome returns the bucket a temporary id was recorded in.
func (m *StatusMap) Outcome(temporaryID int) (Outcome, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomeLocked(temporaryID)
}

// claimLocked reports whether id is still unrecorded, logging the rejected
// write otherwise. Caller holds mu.
func (m *StatusMap) claimLocked(id int, want Outcome) bool {
	if got, taken := m.outcomeLocked(id); taken {
		m.logger.Error("temporary id already recorded; dropping second outcome",
			"temporary_id", id,
			"recorded", got,
			"dropped", want,
		)
		return false
	}
	return true
}

// RecordCreationSuccess records a created entity. Returns false if the id
// was already recorded.
func (m *StatusMap) RecordCreationSuccess(temporaryID int, s CreationSuccess) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.claimLocked(temporaryID, OutcomeCreated) {
		return false
	}
	s.Operation = OperationCreate
	s.Status = StatusSuccess
	m.CreationSuccesses[temporaryID] = s
	return true
}

// RecordCreationFailure records a failed proposal. Returns false if the id
// was already recorded.
func (m *StatusMap) RecordCreationFailure(temporaryID int, f CreationFailure) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.claimLocked(temporaryID, OutcomeCreationFailed) {
		return false
	}
	f.Operation = OperationCreate
	f.Status = StatusFailure
	m.CreationFailures[temporaryID] = f
	return true
}

// RecordUpdateCandidate records a differing existing entity. Returns false
// if the id was already recorded.
func (m *StatusMap) RecordUpdateCandidate(temporaryID int, c UpdateCandidate) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.claimLocked(temporaryID, OutcomeUpdateCandidate) {
		return false
	}
	c.Status = StatusUpdateCandidate
	m.UpdateCandidates[temporaryID] = c
	return true
}

// RecordUnchanged records a matching existing entity. Returns false if the
// id was already recorded.
func (m *StatusMap) RecordUnchanged(temporaryID int, u MatchesExisting) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.claimLocked(temporaryID, OutcomeUnchanged) {
		return false
	}
	u.Operation = OperationAlreadyExistsAsProposed
	u.Status = StatusSuccess
	m.UnchangedEntities[temporaryID] = u
	return true
}

// FindPersistedEntity returns the persisted entity for a temporary id.
// Lookup order: creation successes, update candidates, unchanged entities,
// then the caller's prior results.
func (m *StatusMap) FindPersistedEntity(temporaryID int) (*ir.Entity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.CreationSuccesses[temporaryID]; ok {
		return &s.Entity, true
	}
	if c, ok := m.UpdateCandidates[temporaryID]; ok {
		return &c.Entity, true
	}
	if u, ok := m.UnchangedEntities[temporaryID]; ok {
		return &u.Entity, true
	}
	if p, ok := m.prior[temporaryID]; ok {
		return &p.Entity, true
	}
	return nil, false
}

// Failure returns the recorded creation failure for a temporary id.
func (m *StatusMap) Failure(temporaryID int) (CreationFailure, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.CreationFailures[temporaryID]
	return f, ok
}

// Snapshot returns an independent copy of the map. The link phase resolves
// endpoints against a snapshot taken after the non-link phase.
func (m *StatusMap) Snapshot() *StatusMap {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &StatusMap{
		CreationSuccesses: maps.Clone(m.CreationSuccesses),
		CreationFailures:  maps.Clone(m.CreationFailures),
		UpdateCandidates:  maps.Clone(m.UpdateCandidates),
		UnchangedEntities: maps.Clone(m.UnchangedEntities),
		prior:             m.prior,
		logger:            m.logger,
	}
}

// StatusSummary counts proposals per outcome.
type StatusSummary struct {
	Created          int `json:"created"`
	CreationFailed   int `json:"creationFailed"`
	UpdateCandidates int `json:"updateCandidates"`
	Unchanged        int `json:"unchanged"`
}

// Total returns the number of recorded proposals.
func (s StatusSummary) Total() int {
	return s.Created + s.CreationFailed + s.UpdateCandidates + s.Unchanged
}

// Summary returns the per-outcome counts.
func (m *StatusMap) Summary() StatusSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return StatusSummary{
		Created:          len(m.CreationSuccesses),
		CreationFailed:   len(m.CreationFailures),
		UpdateCandidates: len(m.UpdateCandidates),
		Unchanged:        len(m.UnchangedEntities),
	}
}
