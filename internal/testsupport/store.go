package testsupport

import (
	"context"
	"testing"

	"interact/internal/config"
	"interact/internal/queue"
)

// QueueBackends lists every queue backend so tests can run against each.
var QueueBackends = []string{config.QueueBackendCSV, config.QueueBackendSQLite}

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// MustEnqueue appends a job to the store and fails the test on error.
func MustEnqueue(t testing.TB, store queue.Store, user, project string, jobID int) {
	t.Helper()

	if err := store.Enqueue(context.Background(), user, project, jobID); err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
}
