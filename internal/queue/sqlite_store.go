package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the queue in a SQLite database. Arrival order is the
// autoincrement sequence.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// OpenSQLite initializes or connects to the queue database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	// busy_timeout must apply to every pooled connection, not just the first.
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLiteStore{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Enqueue(ctx context.Context, user, project string, jobID int) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO queue_entries (user, project, task_id, status, enqueued_at) VALUES (?, ?, ?, ?, ?)`,
			user, project, jobID, StatusWaiting, time.Now().UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("enqueue: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) Dequeue(ctx context.Context, jobID int) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM queue_entries WHERE seq = (SELECT MIN(seq) FROM queue_entries WHERE task_id = ?)`,
			jobID,
		)
		if err != nil {
			return fmt.Errorf("dequeue: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) Front(ctx context.Context) (int, bool, error) {
	ctx = ensureContext(ctx)
	var id int
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx, `SELECT task_id FROM queue_entries ORDER BY seq LIMIT 1`).Scan(&id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("queue front: %w", err)
	}
	return id, true, nil
}

func (s *SQLiteStore) IsFront(ctx context.Context, jobID int) (bool, error) {
	front, ok, err := s.Front(ctx)
	if err != nil {
		return false, err
	}
	return ok && front == jobID, nil
}

func (s *SQLiteStore) SetRunningLabel(ctx context.Context, jobID int, label string) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin label tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var seq int64
		var front int
		err = tx.QueryRowContext(ctx, `SELECT seq, task_id FROM queue_entries ORDER BY seq LIMIT 1`).Scan(&seq, &front)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && front != jobID) {
			return ErrNotFront
		}
		if err != nil {
			return fmt.Errorf("read queue front: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE queue_entries SET status = ? WHERE seq = ?`, label, seq); err != nil {
			return fmt.Errorf("update label: %w", err)
		}
		return tx.Commit()
	})
}

func (s *SQLiteStore) Contains(ctx context.Context, user, project string) (bool, error) {
	ctx = ensureContext(ctx)
	var count int
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM queue_entries WHERE user = ? AND project = ?`, user, project,
		).Scan(&count)
	})
	if err != nil {
		return false, fmt.Errorf("queue contains: %w", err)
	}
	return count > 0, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Entry, error) {
	ctx = ensureContext(ctx)
	var entries []Entry
	err := retryOnBusy(ctx, func() error {
		entries = entries[:0]
		rows, err := s.db.QueryContext(ctx, `SELECT user, project, task_id, status FROM queue_entries ORDER BY seq`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var e Entry
			if err := rows.Scan(&e.User, &e.Project, &e.TaskID, &e.Status); err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	return entries, nil
}

func (s *SQLiteStore) Lookup(ctx context.Context, jobID int) (Entry, bool, error) {
	ctx = ensureContext(ctx)
	var e Entry
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT user, project, task_id, status FROM queue_entries WHERE task_id = ? ORDER BY seq LIMIT 1`, jobID,
		).Scan(&e.User, &e.Project, &e.TaskID, &e.Status)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("lookup job: %w", err)
	}
	return e, true, nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM queue_entries`); err != nil {
			return fmt.Errorf("clear queue: %w", err)
		}
		return nil
	})
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
