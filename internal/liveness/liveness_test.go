package liveness

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// A pid above the kernel's pid_max ceiling can never be allocated.
const impossiblePID = 1 << 30

func TestStatus(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, home string)
		want  State
	}{
		{
			name:  "no pid file",
			setup: func(t *testing.T, home string) {},
			want:  StateClear,
		},
		{
			name: "current process",
			setup: func(t *testing.T, home string) {
				if err := WritePID(home, KindInspire, os.Getpid()); err != nil {
					t.Fatal(err)
				}
			},
			want: StateWaiting,
		},
		{
			name: "missing process",
			setup: func(t *testing.T, home string) {
				if err := WritePID(home, KindInspire, impossiblePID); err != nil {
					t.Fatal(err)
				}
			},
			want: StateDone,
		},
		{
			name: "empty pid file",
			setup: func(t *testing.T, home string) {
				if err := os.WriteFile(PIDPath(home, KindInspire), nil, 0o644); err != nil {
					t.Fatal(err)
				}
			},
			want: StateClear,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			home := t.TempDir()
			tc.setup(t, home)
			got, err := Status(home, KindInspire)
			if err != nil {
				t.Fatalf("Status: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestReadPIDsMultipleLines(t *testing.T) {
	home := t.TempDir()
	if err := os.WriteFile(filepath.Join(home, "inspire_pids.txt"), []byte("12\n 34 \n\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	pids, err := ReadPIDs(home, KindInspire)
	if err != nil {
		t.Fatalf("ReadPIDs: %v", err)
	}
	if len(pids) != 2 || pids[0] != 12 || pids[1] != 34 {
		t.Fatalf("unexpected pids %v", pids)
	}
}

func TestReadPIDsRejectsGarbage(t *testing.T) {
	home := t.TempDir()
	if err := os.WriteFile(PIDPath(home, KindInspire), []byte("not-a-pid\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Status(home, KindInspire); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestCheckerWaitsForLatePIDFile(t *testing.T) {
	home := t.TempDir()
	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = WritePID(home, KindInspire, os.Getpid())
	}()

	checker := Checker{Attempts: 5, Delay: 20 * time.Millisecond}
	got, err := checker.Status(context.Background(), home, KindInspire)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if got != StateWaiting {
		t.Fatalf("expected waiting after retry, got %q", got)
	}
}

func TestCheckerGivesUpAsClear(t *testing.T) {
	checker := Checker{Attempts: 2, Delay: time.Millisecond}
	got, err := checker.Status(context.Background(), t.TempDir(), KindInspire)
	if err != nil || got != StateClear {
		t.Fatalf("expected clear, got %q %v", got, err)
	}
}

func TestCheckerHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker := Checker{Attempts: 3, Delay: time.Second}
	if _, err := checker.Status(ctx, t.TempDir(), KindInspire); err == nil {
		t.Fatal("expected context error")
	}
}

func TestCheckerJobID(t *testing.T) {
	home := t.TempDir()
	checker := Checker{}
	id, err := checker.JobID(context.Background(), home, KindInspire)
	if err != nil || id != 0 {
		t.Fatalf("expected 0 without pid file, got %d %v", id, err)
	}
	if err := WritePID(home, KindInspire, 4242); err != nil {
		t.Fatal(err)
	}
	id, err = checker.JobID(context.Background(), home, KindInspire)
	if err != nil || id != 4242 {
		t.Fatalf("expected 4242, got %d %v", id, err)
	}
}

func TestAliveRejectsNonPositive(t *testing.T) {
	if Alive(0) || Alive(-1) {
		t.Fatal("non-positive pids must never be alive")
	}
	if !Alive(os.Getpid()) {
		t.Fatal("current process must be alive")
	}
}
