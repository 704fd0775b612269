// Package analysis turns one work item plus the current policy text into a
// validated judgment: risk level, matched policy tier, verbatim citation,
// findings, and summary.
//
// The step never returns an error. Policy, transport, timeout, and parse
// failures are converted into a sentinel "Unknown" Result so the workflow
// always advances; the failure kind travels on the result for logging and
// status labels.
package analysis
