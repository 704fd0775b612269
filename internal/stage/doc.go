// Package stage holds the readiness records workflow components report to the
// doctor command.
package stage
