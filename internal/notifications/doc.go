// Package notifications delivers workflow events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when no topic is set. Each event type
// can be switched off individually; IsAlert decides which analysis results
// count as critical.
//
// All workflow code depends only on the Service interface.
package notifications
