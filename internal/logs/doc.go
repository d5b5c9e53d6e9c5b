// Package logs tails job log files.
//
// A negative offset returns the last N complete lines; a non-negative offset
// returns every complete line written since. Callers pass the returned
// offset back to continue where they left off, and a positive Wait blocks
// until new output arrives. A trailing line without its newline is left for
// the next call so lines are never split.
package logs
