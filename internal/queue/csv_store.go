package queue

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"

	"interact/internal/fileutil"
)

var csvHeader = []string{"user", "project", "taskID", "status"}

// CSVStore keeps the queue in a four column CSV file.
type CSVStore struct {
	mu   sync.Mutex
	path string
}

// NewCSVStore returns a store backed by the CSV file at path. The file is
// created on first write.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

func (s *CSVStore) Path() string { return s.path }

func (s *CSVStore) Close() error { return nil }

func (s *CSVStore) Enqueue(ctx context.Context, user, project string, jobID int) error {
	return s.mutate(ctx, func(entries []Entry) ([]Entry, error) {
		return append(entries, Entry{User: user, Project: project, TaskID: jobID, Status: StatusWaiting}), nil
	})
}

func (s *CSVStore) Dequeue(ctx context.Context, jobID int) error {
	return s.mutate(ctx, func(entries []Entry) ([]Entry, error) {
		idx := indexOf(entries, jobID)
		if idx < 0 {
			return nil, errNoChange
		}
		return append(entries[:idx], entries[idx+1:]...), nil
	})
}

func (s *CSVStore) Front(ctx context.Context) (int, bool, error) {
	entries, err := s.List(ctx)
	if err != nil || len(entries) == 0 {
		return 0, false, err
	}
	return entries[0].TaskID, true, nil
}

func (s *CSVStore) IsFront(ctx context.Context, jobID int) (bool, error) {
	front, ok, err := s.Front(ctx)
	if err != nil {
		return false, err
	}
	return ok && front == jobID, nil
}

func (s *CSVStore) SetRunningLabel(ctx context.Context, jobID int, label string) error {
	return s.mutate(ctx, func(entries []Entry) ([]Entry, error) {
		if len(entries) == 0 || entries[0].TaskID != jobID {
			return nil, ErrNotFront
		}
		entries[0].Status = label
		return entries, nil
	})
}

func (s *CSVStore) Contains(ctx context.Context, user, project string) (bool, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.User == user && e.Project == project {
			return true, nil
		}
	}
	return false, nil
}

func (s *CSVStore) Lookup(ctx context.Context, jobID int) (Entry, bool, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return Entry{}, false, err
	}
	if idx := indexOf(entries, jobID); idx >= 0 {
		return entries[idx], true, nil
	}
	return Entry{}, false, nil
}

// List returns a snapshot of the queue. Reads take the lock too so they never
// observe a half-applied mutation from another process.
func (s *CSVStore) List(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var entries []Entry
	err := fileutil.WithLock(ctx, s.path, func() error {
		var readErr error
		entries, readErr = s.read()
		return readErr
	})
	return entries, err
}

func (s *CSVStore) Clear(ctx context.Context) error {
	return s.mutate(ctx, func([]Entry) ([]Entry, error) {
		return nil, nil
	})
}

var errNoChange = errors.New("no change")

func (s *CSVStore) mutate(ctx context.Context, fn func([]Entry) ([]Entry, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fileutil.WithLock(ctx, s.path, func() error {
		entries, err := s.read()
		if err != nil {
			return err
		}
		next, err := fn(entries)
		if errors.Is(err, errNoChange) {
			return nil
		}
		if err != nil {
			return err
		}
		return s.write(next)
	})
}

func (s *CSVStore) read() ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read queue: %w", err)
	}
	return decodeCSV(data)
}

func (s *CSVStore) write(entries []Entry) error {
	data, err := encodeCSV(entries)
	if err != nil {
		return err
	}
	if err := fileutil.AtomicWrite(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write queue: %w", err)
	}
	return nil
}

func decodeCSV(data []byte) ([]Entry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = len(csvHeader)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse queue: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	if !strings.EqualFold(strings.Join(records[0], ","), strings.Join(csvHeader, ",")) {
		return nil, fmt.Errorf("parse queue: unexpected header %v", records[0])
	}
	entries := make([]Entry, 0, len(records)-1)
	for i, rec := range records[1:] {
		id, err := strconv.Atoi(strings.TrimSpace(rec[2]))
		if err != nil {
			return nil, fmt.Errorf("parse queue: row %d: invalid taskID %q", i+1, rec[2])
		}
		entries = append(entries, Entry{User: rec[0], Project: rec[1], TaskID: id, Status: rec[3]})
	}
	return entries, nil
}

func encodeCSV(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, e := range entries {
		if err := w.Write([]string{e.User, e.Project, strconv.Itoa(e.TaskID), e.Status}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode queue: %w", err)
	}
	return buf.Bytes(), nil
}
