// Package provenance reconstructs the provenance tree of a bullet point.
//
// The data service only hands out BulletPointDetails, which reference child
// bullet points and raw data by id. A Reconstructor fetches every reachable
// bullet point exactly once into an arena keyed by bp_id, checks the arena
// for cycles, and then expands it into a tree of domain.ProvenanceNode. A
// bullet point shared by several parents is fetched once and expanded under
// each of them.
package provenance
