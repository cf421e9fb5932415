// Package repository defines the data access interface for the echelon data
// service.
//
// The Store interface covers teams, raw data, CCIRs, bullet points and the
// provenance links between them. The implementation is in the sqlite
// subpackage.
//
// # SQLite Implementation
//
// The sqlite store runs SQLite in WAL mode with foreign keys enforced. It
// handles:
//
// - Creation and lookup of every entity
// - Bullet point creation together with its provenance links, in one transaction
// - Wholesale replacement of all bullet points by a regeneration plan
// - Idempotent seed import (teams and CCIRs upserted by id)
//
// # Testing
//
// The sqlite store is tested against in-memory databases.
package repository
