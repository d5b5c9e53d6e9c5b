// Package api defines the JSON shapes served by the web layer and printed by
// the CLI, plus converters from queue, tracker and workflow models.
//
// DTOs use camelCase JSON tags. Every free-text reply from the web handlers
// is a Message so browser code can read a single "message" field.
package api
