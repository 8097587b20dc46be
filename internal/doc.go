// Package internal documents the placement coordination server internals.
//
// The internal tree is organized by responsibility:
// - domain: placement lifecycles, evidence review, and the event ledger
// - workflow: the typed state machine engine behind the lifecycles
// - storage: database access and repositories (pgx + Postgres)
// - jobs: the ledger append pipeline and queue workers (River)
// - authz, audit, config, metrics, ops, seed: shared infrastructure
//
// Code in internal/ is not meant for external import.
package internal
