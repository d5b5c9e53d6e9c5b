// Package queue persists the global single-slot job queue.
//
// Entries are kept in arrival order and only the entry at the front may run.
// Job scripts append themselves when they start, wait until they reach the
// front, label the front entry with the stage they are executing and remove
// themselves when they finish, fail or are cancelled.
//
// Two backends implement Store: a CSV file (the default layout, readable by
// hand) and a SQLite database. Every mutation of the CSV backend is a locked
// read-modify-write with an atomic rename so concurrent job processes never
// observe a torn file.
package queue
