// Package queue persists lab result work items in SQLite and exposes the
// operations the workflow engine uses to drive their lifecycle.
//
// The Store manages the database connection, schema initialization, stats
// queries, per-item claims with heartbeats, stale-claim recovery, and the
// Pending/InProgress -> Processed/Failed transitions. Items carry their
// measurement and history payloads plus the analysis JSON, risk, summary, and
// note path attached by a pass.
//
// Claims serialize passes per item: at most one pass analyzes a given id at a
// time. Schema changes bump the version in schema.go; users delete the
// database to adopt the new schema.
package queue
