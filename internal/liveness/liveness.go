package liveness

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"interact/internal/fileutil"
)

// State is the answer to "is this job's process alive".
type State string

const (
	// StateClear means no pid has been recorded for the job.
	StateClear State = "clear"
	// StateWaiting means the recorded process exists.
	StateWaiting State = "waiting"
	// StateDone means the recorded process is gone.
	StateDone State = "done"
)

// KindInspire is the pid record written by inSPIRE job scripts.
const KindInspire = "inspire"

// PIDPath returns the pid file for kind under jobHome.
func PIDPath(jobHome, kind string) string {
	return filepath.Join(jobHome, kind+"_pids.txt")
}

// WritePID records pid as the process for kind.
func WritePID(jobHome, kind string, pid int) error {
	if pid <= 0 {
		return fmt.Errorf("write pid: invalid pid %d", pid)
	}
	return fileutil.AtomicWrite(PIDPath(jobHome, kind), []byte(strconv.Itoa(pid)+"\n"), 0o644)
}

// ReadPIDs returns every pid recorded for kind. A missing file returns
// fs.ErrNotExist so callers can tell "never started" from "empty".
func ReadPIDs(jobHome, kind string) ([]int, error) {
	data, err := os.ReadFile(PIDPath(jobHome, kind))
	if err != nil {
		return nil, err
	}
	var pids []int
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("parse pid file %s: %q is not a pid", PIDPath(jobHome, kind), line)
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

// Alive reports whether the kernel still has a process with this pid.
// EPERM means the process exists but belongs to someone else.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// Status answers once, without retrying.
func Status(jobHome, kind string) (State, error) {
	pids, err := ReadPIDs(jobHome, kind)
	if errors.Is(err, fs.ErrNotExist) {
		return StateClear, nil
	}
	if err != nil {
		return "", err
	}
	if len(pids) == 0 {
		// The script truncates the file before writing its pid.
		return StateClear, nil
	}
	if Alive(pids[0]) {
		return StateWaiting, nil
	}
	return StateDone, nil
}

// Checker retries Status while the pid file is missing, to cover the gap
// between launching a job script and the script recording its pid.
type Checker struct {
	// Attempts is the number of extra checks after the first. Zero disables retries.
	Attempts int
	// Delay is the first wait; each following wait grows by Delay.
	Delay time.Duration
}

// Status returns StateClear only after every retry saw no pid file.
func (c Checker) Status(ctx context.Context, jobHome, kind string) (State, error) {
	state, err := Status(jobHome, kind)
	for attempt := 1; err == nil && state == StateClear && attempt <= c.Attempts; attempt++ {
		timer := time.NewTimer(time.Duration(attempt) * c.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
		state, err = Status(jobHome, kind)
	}
	return state, err
}

// JobID returns the first recorded pid, retrying like Status while the file
// is missing. It returns 0 when nothing was recorded.
func (c Checker) JobID(ctx context.Context, jobHome, kind string) (int, error) {
	if _, err := c.Status(ctx, jobHome, kind); err != nil {
		return 0, err
	}
	pids, err := ReadPIDs(jobHome, kind)
	if errors.Is(err, fs.ErrNotExist) || len(pids) == 0 {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return pids[0], nil
}
