// Package service implements the business logic of the echelon data service.
//
// This package sits between the HTTP handlers and the repository layer. It
// enforces the rules the store does not: provenance links may not close a
// cycle, invalidation cascades to ancestors when configured, and summary
// regeneration rebuilds every bullet point bottom-up through the command
// tree.
//
// # Services
//
// ReportService manages teams, raw data, CCIRs, bullet points and their
// provenance links, and serves the nested hierarchy views.
//
// SummaryService regenerates all summaries. Planning is a pure function of
// the team tree and raw data; the Summarizer decides the wording of each
// derived bullet point and the repository applies the plan in one
// transaction.
//
// # Event System
//
// Every mutation is published on the EventBus, which calls each subscriber
// synchronously. The SSE hub subscribes its Broadcast, so every mutation
// gets a stream id and connected clients can invalidate their cached views.
//
// # Design Principles
//
// - Services own business logic and validation
// - Repository interface for data access
// - Event-driven for real-time updates
// - Context-aware for cancellation and timeouts
package service
