// Package workflow runs triage passes over the work item queue.
//
// A pass is a small state machine: Start, Fetching, Deciding, Analyzing,
// Drafting, End. Fetching snapshots the actionable items once; items that
// arrive mid-pass wait for the next pass. Deciding is the only branch point
// and both the post-fetch and post-draft paths flow through it. Each item is
// claimed in the store, analyzed against the policy, drafted into a clinical
// note, and completed before the next one starts.
//
// Step failures never stop a pass: analysis failures become sentinel results
// and drafting failures become a degraded "note-failed" status. Only invariant
// violations (a queue that did not shrink by one, an id seen twice) end a
// pass early, and they are returned from Run wrapped with ErrInvariant.
//
// A file lock in the data directory keeps one pass per installation; per-item
// claims with heartbeats guard stores shared more widely.
package workflow
