package tasks

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"interact/internal/fileutil"
)

// Status is the lifecycle state of one stage within a job.
type Status string

const (
	StatusQueued    Status = "Queued"
	StatusRunning   Status = "Running"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
	StatusSkipped   Status = "Skipped"
	StatusCancelled Status = "Job Cancelled"
)

// FileName is the tracker file inside a project home.
const FileName = "taskStatus.csv"

// ErrUnknownTask is returned when a result is reported for a stage the job
// does not run.
var ErrUnknownTask = errors.New("unknown task")

var csvHeader = []string{"taskId", "taskIndex", "taskName", "status"}

// Entry is one row of the tracker.
type Entry struct {
	TaskID    string `json:"taskId"`
	TaskIndex int    `json:"taskIndex"`
	TaskName  string `json:"taskName"`
	Status    Status `json:"status"`
}

// Path returns the tracker file for jobHome.
func Path(jobHome string) string {
	return filepath.Join(jobHome, FileName)
}

// Init writes every stage as Queued with a 1-based index, replacing any
// previous record for the job.
func Init(ctx context.Context, jobHome string, stages []Stage) error {
	entries := make([]Entry, 0, len(stages))
	for i, s := range stages {
		entries = append(entries, Entry{TaskID: s.ID, TaskIndex: i + 1, TaskName: s.Name, Status: StatusQueued})
	}
	return fileutil.WithLock(ctx, Path(jobHome), func() error {
		return write(jobHome, entries)
	})
}

// MarkStart sets the first stage to Running and returns it.
func MarkStart(ctx context.Context, jobHome string) (Entry, error) {
	var started Entry
	err := update(ctx, jobHome, func(entries []Entry) error {
		if len(entries) == 0 {
			return fmt.Errorf("mark start: %w: job has no stages", ErrUnknownTask)
		}
		entries[0].Status = StatusRunning
		started = entries[0]
		return nil
	})
	return started, err
}

// MarkResult records the outcome of taskID.
//
// Success completes the stage and starts the next. Failure of a blocking
// stage skips every later stage. Failure of a non-blocking stage is recorded
// and the next stage starts as if it had succeeded. The returned entry is the
// stage now Running, if any.
func MarkResult(ctx context.Context, jobHome, taskID string, succeeded bool) (Entry, bool, error) {
	var next Entry
	var hasNext bool
	err := update(ctx, jobHome, func(entries []Entry) error {
		idx := -1
		for i, e := range entries {
			if e.TaskID == taskID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: %q", ErrUnknownTask, taskID)
		}
		if !succeeded {
			entries[idx].Status = StatusFailed
			if IsBlocking(taskID) {
				for i := idx + 1; i < len(entries); i++ {
					entries[i].Status = StatusSkipped
				}
				return nil
			}
		} else {
			entries[idx].Status = StatusCompleted
		}
		if idx+1 < len(entries) {
			entries[idx+1].Status = StatusRunning
			next, hasNext = entries[idx+1], true
		}
		return nil
	})
	return next, hasNext, err
}

// MarkCancelled overwrites every stage with Job Cancelled.
func MarkCancelled(ctx context.Context, jobHome string) error {
	return update(ctx, jobHome, func(entries []Entry) error {
		for i := range entries {
			entries[i].Status = StatusCancelled
		}
		return nil
	})
}

// MarkAbandoned records that the job process died while a stage was
// running: the running stage fails and everything after it is skipped.
// It reports whether anything changed.
func MarkAbandoned(ctx context.Context, jobHome string) (bool, error) {
	changed := false
	err := update(ctx, jobHome, func(entries []Entry) error {
		for i, e := range entries {
			if e.Status != StatusRunning {
				continue
			}
			entries[i].Status = StatusFailed
			for j := i + 1; j < len(entries); j++ {
				entries[j].Status = StatusSkipped
			}
			changed = true
			return nil
		}
		return nil
	})
	return changed, err
}

// Read returns the tracker for jobHome. A missing file yields no entries.
func Read(ctx context.Context, jobHome string) ([]Entry, error) {
	if _, err := os.Stat(Path(jobHome)); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	var entries []Entry
	err := fileutil.WithLock(ctx, Path(jobHome), func() error {
		var readErr error
		entries, readErr = read(jobHome)
		return readErr
	})
	return entries, err
}

// Current returns the running entry, if any.
func Current(entries []Entry) (Entry, bool) {
	for _, e := range entries {
		if e.Status == StatusRunning {
			return e, true
		}
	}
	return Entry{}, false
}

// Summary classifies a finished or in-flight job from its entries.
type Summary struct {
	Total     int
	Completed int
	Failed    int
	Skipped   int
	Cancelled bool
	Running   bool
}

// Summarize counts entries by status.
func Summarize(entries []Entry) Summary {
	s := Summary{Total: len(entries)}
	for _, e := range entries {
		switch e.Status {
		case StatusCompleted:
			s.Completed++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		case StatusCancelled:
			s.Cancelled = true
		case StatusRunning:
			s.Running = true
		}
	}
	return s
}

func update(ctx context.Context, jobHome string, fn func([]Entry) error) error {
	return fileutil.WithLock(ctx, Path(jobHome), func() error {
		entries, err := read(jobHome)
		if err != nil {
			return err
		}
		if err := fn(entries); err != nil {
			return err
		}
		return write(jobHome, entries)
	})
}

func read(jobHome string) ([]Entry, error) {
	data, err := os.ReadFile(Path(jobHome))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read task status: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = len(csvHeader)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse task status: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	cols, err := headerIndex(records[0])
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(records)-1)
	for i, rec := range records[1:] {
		index, err := strconv.Atoi(strings.TrimSpace(rec[cols["taskIndex"]]))
		if err != nil {
			return nil, fmt.Errorf("parse task status: row %d: invalid taskIndex %q", i+1, rec[cols["taskIndex"]])
		}
		entries = append(entries, Entry{
			TaskID:    rec[cols["taskId"]],
			TaskIndex: index,
			TaskName:  rec[cols["taskName"]],
			Status:    Status(rec[cols["status"]]),
		})
	}
	return entries, nil
}

// headerIndex maps column names to positions; files written by older
// releases put taskIndex after taskName.
func headerIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, want := range csvHeader {
		if _, ok := cols[want]; !ok {
			return nil, fmt.Errorf("parse task status: missing column %q", want)
		}
	}
	return cols, nil
}

func write(jobHome string, entries []Entry) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range entries {
		if err := w.Write([]string{e.TaskID, strconv.Itoa(e.TaskIndex), e.TaskName, string(e.Status)}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode task status: %w", err)
	}
	if err := fileutil.AtomicWrite(Path(jobHome), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write task status: %w", err)
	}
	return nil
}
