package ir

// ProposedEntity is a candidate entity (or link) awaiting reconciliation.
// TemporaryID is caller-assigned and unique within one batch; link
// endpoints reference other proposals by temporary id.
type ProposedEntity struct {
	TemporaryID    int          `json:"entityId"`
	EntityTypeID   VersionedURL `json:"entityTypeId"`
	Properties     Object       `json:"properties"`
	SourceEntityID *int         `json:"sourceEntityId,omitempty"`
	TargetEntityID *int         `json:"targetEntityId,omitempty"`
}

// IsLinkProposal reports whether the proposal names any link endpoint.
func (p *ProposedEntity) IsLinkProposal() bool {
	return p.SourceEntityID != nil || p.TargetEntityID != nil
}

// IntPtr returns a pointer to n. Handy for building link proposals.
func IntPtr(n int) *int {
	return &n
}
