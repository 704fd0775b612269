// Package ingest turns report batches into queue work items.
//
// Batches are YAML or JSON, either a bare list or a mapping with a "reports"
// key. Display statuses such as "In-progress" are normalized, and reports
// without an id receive a generated one. The demo batch embedded in the binary
// seeds a fresh install.
package ingest
