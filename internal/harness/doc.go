// Package harness runs reconciliation scenarios against a fresh in-memory
// graph store.
//
// A scenario is a YAML file naming a CUE type directory, entities to create
// before the run, one proposal batch and a list of assertions:
//
//	name: link_resolution
//	types: ../types
//	batch:
//	  owned_by_id: web-1
//	  proposals:
//	    - entity_id: 1
//	      entity_type_id: https://example.com/@acme/types/entity-type/person/v/1
//	      properties: {...}
//	assertions:
//	  - type: outcome
//	    entity_id: 1
//	    outcome: created
//
// Every scenario gets its own ":memory:" database, sequential entity ids and
// a deterministic clock, and the engine runs with a concurrency limit of one.
// The status map, the trace of storage calls and the log are therefore
// identical on every run, which makes outcomes suitable for golden file
// comparison (see RunWithGolden).
package harness
