// Package main hosts the labtriage CLI entrypoint and command graph.
//
// The Cobra command tree loads configuration once, opens the queue store
// directly, and hands work to the workflow engine. Passes run in the
// foreground (run, analyze) or on an interval (watch); the remaining commands
// seed reports, inspect and repair the queue, export notes, and check that
// the environment is ready.
//
// Add behavior to the internal packages first and surface it here through a
// command or flag.
package main
