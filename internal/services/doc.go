// Package services defines shared error markers and context helpers used by
// the queue, job runner and web layers.
//
// Context helpers stamp job IDs, stage ids, projects and correlation
// identifiers for logging. The error markers plus Wrap let callers classify
// failures with errors.Is regardless of which component produced them.
package services
