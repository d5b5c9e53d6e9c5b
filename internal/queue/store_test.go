package queue_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"interact/internal/queue"
	"interact/internal/testsupport"
)

func forEachBackend(t *testing.T, fn func(t *testing.T, store queue.Store)) {
	t.Helper()
	for _, backend := range testsupport.QueueBackends {
		t.Run(backend, func(t *testing.T) {
			cfg := testsupport.NewConfig(t, testsupport.WithQueueBackend(backend))
			fn(t, testsupport.MustOpenStore(t, cfg))
		})
	}
}

func TestEnqueuePreservesArrivalOrder(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store queue.Store) {
		ctx := context.Background()
		testsupport.MustEnqueue(t, store, "alice", "p1", 100)
		testsupport.MustEnqueue(t, store, "bob", "p2", 200)
		testsupport.MustEnqueue(t, store, "carol", "p3", 300)

		entries, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		got := make([]int, 0, len(entries))
		for _, e := range entries {
			got = append(got, e.TaskID)
			if e.Status != queue.StatusWaiting {
				t.Fatalf("expected new entries to wait, got %q", e.Status)
			}
		}
		if fmt.Sprint(got) != "[100 200 300]" {
			t.Fatalf("unexpected order %v", got)
		}

		if err := store.Dequeue(ctx, 100); err != nil {
			t.Fatalf("Dequeue: %v", err)
		}
		front, ok, err := store.Front(ctx)
		if err != nil || !ok || front != 200 {
			t.Fatalf("expected 200 at front after dequeue, got %d %v %v", front, ok, err)
		}
	})
}

func TestDequeueIsIdempotent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store queue.Store) {
		ctx := context.Background()
		testsupport.MustEnqueue(t, store, "alice", "p1", 1)
		testsupport.MustEnqueue(t, store, "bob", "p2", 2)

		if err := store.Dequeue(ctx, 1); err != nil {
			t.Fatalf("first dequeue: %v", err)
		}
		if err := store.Dequeue(ctx, 1); err != nil {
			t.Fatalf("second dequeue: %v", err)
		}
		if err := store.Dequeue(ctx, 999); err != nil {
			t.Fatalf("dequeue unknown: %v", err)
		}
		entries, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(entries) != 1 || entries[0].TaskID != 2 {
			t.Fatalf("unexpected entries %+v", entries)
		}
	})
}

func TestFrontOnEmptyQueue(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store queue.Store) {
		ctx := context.Background()
		if _, ok, err := store.Front(ctx); err != nil || ok {
			t.Fatalf("expected empty queue, got ok=%v err=%v", ok, err)
		}
		isFront, err := store.IsFront(ctx, 1)
		if err != nil || isFront {
			t.Fatalf("expected IsFront false on empty queue, got %v %v", isFront, err)
		}
	})
}

func TestSetRunningLabelOnlyAtFront(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store queue.Store) {
		ctx := context.Background()
		testsupport.MustEnqueue(t, store, "alice", "p1", 10)
		testsupport.MustEnqueue(t, store, "bob", "p2", 20)

		if err := store.SetRunningLabel(ctx, 20, "MSFragger"); !errors.Is(err, queue.ErrNotFront) {
			t.Fatalf("expected ErrNotFront, got %v", err)
		}
		if err := store.SetRunningLabel(ctx, 10, "MSFragger"); err != nil {
			t.Fatalf("SetRunningLabel: %v", err)
		}
		entry, ok, err := store.Lookup(ctx, 10)
		if err != nil || !ok {
			t.Fatalf("Lookup: %v %v", ok, err)
		}
		if entry.Status != "MSFragger" || !entry.Running() {
			t.Fatalf("unexpected front entry %+v", entry)
		}
		second, _, _ := store.Lookup(ctx, 20)
		if second.Status != queue.StatusWaiting || second.Running() {
			t.Fatalf("expected second entry to keep waiting, got %+v", second)
		}
	})
}

func TestContainsAllowsDuplicates(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store queue.Store) {
		ctx := context.Background()
		testsupport.MustEnqueue(t, store, "alice", "p1", 1)
		testsupport.MustEnqueue(t, store, "alice", "p1", 2)

		found, err := store.Contains(ctx, "alice", "p1")
		if err != nil || !found {
			t.Fatalf("expected alice/p1 to be queued: %v %v", found, err)
		}
		found, err = store.Contains(ctx, "alice", "p2")
		if err != nil || found {
			t.Fatalf("expected alice/p2 absent: %v %v", found, err)
		}
		entries, _ := store.List(ctx)
		if len(entries) != 2 {
			t.Fatalf("expected duplicate submission to append, got %d entries", len(entries))
		}
	})
}

func TestLookupAndClear(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store queue.Store) {
		ctx := context.Background()
		testsupport.MustEnqueue(t, store, "alice", "p1", 7)

		entry, ok, err := store.Lookup(ctx, 7)
		if err != nil || !ok || entry.User != "alice" || entry.Project != "p1" {
			t.Fatalf("unexpected lookup %+v %v %v", entry, ok, err)
		}
		if _, ok, err := store.Lookup(ctx, 8); err != nil || ok {
			t.Fatalf("expected missing job, got %v %v", ok, err)
		}
		if err := store.Clear(ctx); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		entries, err := store.List(ctx)
		if err != nil || len(entries) != 0 {
			t.Fatalf("expected empty queue after clear, got %+v %v", entries, err)
		}
	})
}

func TestConcurrentEnqueueKeepsEveryEntry(t *testing.T) {
	forEachBackend(t, func(t *testing.T, store queue.Store) {
		ctx := context.Background()
		const jobs = 20
		var wg sync.WaitGroup
		for i := 1; i <= jobs; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				if err := store.Enqueue(ctx, "user", fmt.Sprintf("p%d", id), id); err != nil {
					t.Errorf("Enqueue %d: %v", id, err)
				}
			}(i)
		}
		wg.Wait()

		entries, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(entries) != jobs {
			t.Fatalf("expected %d entries, got %d", jobs, len(entries))
		}
	})
}

func TestCSVLayout(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustEnqueue(t, store, "alice", "p1", 4242)

	if store.Path() != filepath.Join(cfg.LocksDir(), "inspireQueue.csv") {
		t.Fatalf("unexpected queue path %q", store.Path())
	}
	content := testsupport.ReadFile(t, store.Path())
	want := "user,project,taskID,status\nalice,p1,4242,waiting\n"
	if content != want {
		t.Fatalf("unexpected csv content:\n%s", content)
	}
}

func TestCSVRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inspireQueue.csv")
	if err := os.WriteFile(path, []byte("user,project,taskID,status\nalice,p1,notanumber,waiting\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := queue.NewCSVStore(path)
	_, err := store.List(context.Background())
	if err == nil || !strings.Contains(err.Error(), "invalid taskID") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestCSVEmptyFileIsEmptyQueue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inspireQueue.csv")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	store := queue.NewCSVStore(path)
	entries, err := store.List(context.Background())
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected empty queue, got %+v %v", entries, err)
	}
}

func TestSQLiteReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inspireQueue.db")
	store, err := queue.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := store.Enqueue(context.Background(), "alice", "p1", 5); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := queue.OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	front, ok, err := reopened.Front(context.Background())
	if err != nil || !ok || front != 5 {
		t.Fatalf("expected persisted entry, got %d %v %v", front, ok, err)
	}
}
