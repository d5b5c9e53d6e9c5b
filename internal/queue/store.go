package queue

import (
	"context"
	"fmt"
	"path/filepath"

	"interact/internal/config"
)

// Store is the persistent FIFO shared by every job process.
type Store interface {
	// Enqueue appends an entry with status waiting. Duplicate (user, project)
	// pairs are allowed.
	Enqueue(ctx context.Context, user, project string, jobID int) error
	// Dequeue removes the first entry for jobID. Removing an absent job is a no-op.
	Dequeue(ctx context.Context, jobID int) error
	// Front returns the job id at the head of the queue.
	Front(ctx context.Context) (int, bool, error)
	IsFront(ctx context.Context, jobID int) (bool, error)
	// SetRunningLabel sets the status of the front entry. It returns
	// ErrNotFront when jobID is not at the front.
	SetRunningLabel(ctx context.Context, jobID int, label string) error
	Contains(ctx context.Context, user, project string) (bool, error)
	List(ctx context.Context) ([]Entry, error)
	Lookup(ctx context.Context, jobID int) (Entry, bool, error)
	Clear(ctx context.Context) error
	// Path is the backing file; its directory is watched for changes.
	Path() string
	Close() error
}

const (
	csvFileName    = "inspireQueue.csv"
	sqliteFileName = "inspireQueue.db"
)

// Open selects the backend configured in queue.backend.
func Open(cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("open queue: config is nil")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	switch cfg.Queue.Backend {
	case config.QueueBackendSQLite:
		return OpenSQLite(filepath.Join(cfg.LocksDir(), sqliteFileName))
	case config.QueueBackendCSV, "":
		return NewCSVStore(filepath.Join(cfg.LocksDir(), csvFileName)), nil
	default:
		return nil, fmt.Errorf("open queue: unsupported backend %q", cfg.Queue.Backend)
	}
}

var (
	_ Store = (*CSVStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
