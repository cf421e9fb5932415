// Package coordinator keeps the client-side views of the reporting hierarchy
// consistent with the data service.
//
// A Coordinator owns one Cache holding the current hierarchy snapshot (the
// bullet-point forest plus the team tree) and a registry of open views:
// per-team summary views computed with the hierarchy scanner, and
// provenance views built on demand by a provenance.Reconstructor.
//
// Mutations (regenerate, invalidate, link, create) go to the DataService
// first. Only after the service accepts them is the snapshot discarded and
// re-fetched, team views recomputed and the affected provenance views marked
// stale. A failed mutation leaves every cache untouched. A failed re-fetch
// leaves the cache empty and every view stale, never half updated.
//
// Provenance views number each build. A build that finishes after a newer
// one was issued is discarded, so a slow response can never overwrite a
// fresher tree.
package coordinator
