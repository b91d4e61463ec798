package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainProposal = "graphrecon/proposal/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ProposalHash computes a content hash of a proposal, excluding its
// temporary id. Two proposals with the same type, properties and endpoints
// hash equal, which is how batch analysis spots repeated proposals.
func ProposalHash(p *ProposedEntity) (string, error) {
	props := p.Properties
	if props == nil {
		props = Object{}
	}
	obj := Object{
		"entity_type_id": String(p.EntityTypeID),
		"properties":     props,
	}
	if p.SourceEntityID != nil {
		obj["source_entity_id"] = Int(*p.SourceEntityID)
	}
	if p.TargetEntityID != nil {
		obj["target_entity_id"] = Int(*p.TargetEntityID)
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ProposalHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainProposal, canonical), nil
}
