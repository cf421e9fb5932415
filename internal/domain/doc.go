// Package domain defines the core domain types for the echelon reporting hierarchy.
//
// This package contains the entities shared by the data service and by the
// client-side aggregation core: teams arranged in a command tree, the raw
// observations each team files, and the bullet points that summarize them.
//
// # Core Types
//
// Team is a unit in the command tree. The parent relation forms a forest;
// teams without a parent are roots.
//
// RawData is a single observation (a SITREP, for instance) owned by exactly
// one team. It is always a provenance leaf.
//
// BulletPoint is a derived summary line produced by a team. In the hierarchy
// view it carries its child bullet points inline; the same bullet point can
// appear under several parents, so provenance is a DAG rather than a tree.
//
// BulletPointDetails is the id-referencing form of a bullet point used for
// provenance expansion, and ProvenanceNode is the client-built expansion of
// one bullet point down to its raw-data leaves.
//
// CCIR (Commander's Critical Information Requirement) is a keyword set a team
// uses to scope summary regeneration.
//
// # Errors
//
// Error carries one of four kinds (NotFound, RequestFailed, CycleDetected,
// InvalidInput). Sentinels of each kind match with errors.Is.
//
// # Design Principles
//
// - Relationships are id references, never object pointers
// - No database or transport dependencies
// - Snapshots are values; callers replace them, never patch them
package domain
