package workflow_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interact/internal/config"
	"interact/internal/liveness"
	"interact/internal/pipeline"
	"interact/internal/tasks"
	"interact/internal/testsupport"
	"interact/internal/workflow"
)

func TestSnapshotPhases(t *testing.T) {
	ctx := context.Background()
	self := os.Getpid()

	tests := []struct {
		name  string
		setup func(t *testing.T, h harness, home string)
		want  workflow.Phase
		pos   int
	}{
		{
			name:  "never run",
			setup: func(*testing.T, harness, string) {},
			want:  workflow.PhaseIdle,
			pos:   -1,
		},
		{
			name: "running at front",
			setup: func(t *testing.T, h harness, home string) {
				require.NoError(t, tasks.Init(ctx, home, tasks.Stages("prepare")))
				require.NoError(t, liveness.WritePID(home, liveness.KindInspire, self))
				testsupport.MustEnqueue(t, h.store, "alice", "p1", self)
			},
			want: workflow.PhaseRunning,
			pos:  0,
		},
		{
			name: "queued behind another job",
			setup: func(t *testing.T, h harness, home string) {
				require.NoError(t, tasks.Init(ctx, home, tasks.Stages("prepare")))
				require.NoError(t, liveness.WritePID(home, liveness.KindInspire, self))
				testsupport.MustEnqueue(t, h.store, "bob", "p9", 77)
				testsupport.MustEnqueue(t, h.store, "alice", "p1", self)
			},
			want: workflow.PhaseQueued,
			pos:  1,
		},
		{
			name: "finished with report",
			setup: func(t *testing.T, h harness, home string) {
				require.NoError(t, tasks.Init(ctx, home, tasks.Stages("prepare")))
				_, _, err := tasks.MarkResult(ctx, home, "prepare", true)
				require.NoError(t, err)
				require.NoError(t, liveness.WritePID(home, liveness.KindInspire, 1<<30))
				testsupport.WriteFile(t, filepath.Join(home, pipeline.OutputDirName, workflow.ReportFileName), "<html></html>")
			},
			want: workflow.PhaseReady,
			pos:  -1,
		},
		{
			name: "finished without report",
			setup: func(t *testing.T, h harness, home string) {
				require.NoError(t, tasks.Init(ctx, home, tasks.Stages("prepare", "report")))
				_, _, err := tasks.MarkResult(ctx, home, "prepare", false)
				require.NoError(t, err)
				require.NoError(t, liveness.WritePID(home, liveness.KindInspire, 1<<30))
			},
			want: workflow.PhaseFailed,
			pos:  -1,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, config.QueueBackendCSV)
			home := testsupport.NewProject(t, h.cfg, "alice", "p1")
			tc.setup(t, h, home)

			snap, err := h.coord.Snapshot(ctx, "alice", "p1")
			require.NoError(t, err)
			assert.Equal(t, tc.want, snap.Phase)
			assert.Equal(t, tc.pos, snap.Position)
		})
	}
}

func TestKeyOutputFollowsProteomeLayout(t *testing.T) {
	home := t.TempDir()
	assert.Equal(t, filepath.Join(home, pipeline.OutputDirName, workflow.ReportFileName), workflow.KeyOutput(home))

	require.NoError(t, os.MkdirAll(filepath.Join(home, pipeline.ProteomeSelectName), 0o755))
	assert.Equal(t, filepath.Join(home, pipeline.OutputDirName, "epitope", workflow.CandidatesFileName), workflow.KeyOutput(home))
	assert.True(t, workflow.SelectVisible(home))
}
