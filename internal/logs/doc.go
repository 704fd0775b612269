// Package logs reads the labtriage log file for the CLI.
//
// Tail returns the last lines of the file or everything after a byte offset,
// optionally waiting for new lines in follow mode. A Filter narrows the output
// to one work item, one pass, or a minimum level, and understands both the
// console and JSON log formats.
package logs
