// Package handler implements the HTTP API of the echelon data service.
//
// # Handlers
//
// Handler serves teams, raw data, CCIRs and bullet points from the report
// and summary services. NewRouter mounts it on a chi router together with
// the event stream and the metrics endpoint.
//
// # Response Format
//
// Success responses return JSON data with 200 or 201. Error responses
// return JSON with {error, details}; unknown ids map to 404, rejected input
// to 400, provenance cycles to 409 and everything else to 500.
//
// # Server-Sent Events
//
// The /events endpoint streams data service mutations so that coordinators
// can refresh their cached views without polling.
package handler
