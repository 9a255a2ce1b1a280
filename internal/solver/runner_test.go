package solver

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/millrun/internal/domain"
)

func testConfig() domain.MillConfig {
	return domain.MillConfig{
		DiameterM:         5,
		LengthM:           7,
		RPM:               15,
		MediaFillFraction: 0.35,
		ParticleDensity:   3000,
		MediaDensity:      7800,
		SimTimeS:          0.1,
		TimestepS:         1e-4,
	}
}

const fakeDump = `ITEM: TIMESTEP
0
ITEM: NUMBER OF ATOMS
2
ITEM: BOX BOUNDS ff ff ff
-5 5
-5 5
-7 7
ITEM: ATOMS id x y z vx vy vz
1 0.5 -1 0 3 4 0
2 1.5 -2 0 0 1 0
ITEM: TIMESTEP
8
ITEM: NUMBER OF ATOMS
2
ITEM: BOX BOUNDS ff ff ff
-5 5
-5 5
-7 7
ITEM: ATOMS id x y z vx vy vz
1 0.6 -0.9 0 3 4 0
2 1.4 -2.1 0 0 2 0
`

// writeFakeSolver writes an executable shell script standing in for lmp.
func writeFakeSolver(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script solvers need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-lmp")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRunDryRunWhenSolverMissing(t *testing.T) {
	workspace := t.TempDir()
	runner, err := NewRunner(workspace, "definitely_missing_binary")
	require.NoError(t, err)

	result, err := runner.Run(testConfig())
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusDryRun, result.Status)
	assert.Len(t, result.RunID, 10)
	assert.Equal(t, filepath.Join(workspace, result.RunID), result.OutputDir)
	assert.Equal(t, "LIGGGHTS executable 'definitely_missing_binary' not found. Generated input deck only (dry-run mode).", result.Message)
	assert.Equal(t, []string{"definitely_missing_binary", "-in", result.InputFile}, result.Command)

	assert.Contains(t, readFile(t, result.InputFile), "units si")
	assert.Equal(t, result.Message+"\n", readFile(t, result.LogFile))

	assert.Equal(t, domain.ChargeSourceUnavailable, result.ChargeThrow.Source)
	assert.Equal(t, "Charge throw visualization requires a completed LIGGGHTS run.", result.ChargeThrow.Message)
	assert.Nil(t, result.ChargeThrow.FrameCount)
}

func TestRunCompletedWithDump(t *testing.T) {
	solver := writeFakeSolver(t, "echo \"LIGGGHTS running $2\"\ncat > charge_throw.dump <<'EOF'\n"+fakeDump+"EOF\nexit 0\n")
	runner, err := NewRunner(t.TempDir(), solver)
	require.NoError(t, err)

	result, err := runner.Run(testConfig())
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusCompleted, result.Status)
	assert.Equal(t, "LIGGGHTS exited with code 0.", result.Message)
	assert.Equal(t, []string{solver, "-in", result.InputFile}, result.Command)
	assert.Contains(t, readFile(t, result.LogFile), "LIGGGHTS running "+result.InputFile)

	require.Equal(t, domain.ChargeSourceLIGGGHTS, result.ChargeThrow.Source)
	require.NotNil(t, result.ChargeThrow.FrameCount)
	assert.Equal(t, 2, *result.ChargeThrow.FrameCount)
	require.Len(t, result.ChargeThrow.Trajectories, 2)
	assert.Equal(t, int64(1), result.ChargeThrow.Trajectories[0].ParticleID)
	assert.InDelta(t, 5.0, result.ChargeThrow.Trajectories[0].Points[0].Speed, 1e-12)
}

func TestRunFailedExitCapturesLog(t *testing.T) {
	solver := writeFakeSolver(t, "echo 'ERROR: lost atoms' >&2\nexit 3\n")
	runner, err := NewRunner(t.TempDir(), solver)
	require.NoError(t, err)

	result, err := runner.Run(testConfig())
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusFailed, result.Status)
	assert.Equal(t, "LIGGGHTS exited with code 3.", result.Message)
	assert.Contains(t, readFile(t, result.LogFile), "ERROR: lost atoms")
	assert.Equal(t, domain.ChargeSourceUnavailable, result.ChargeThrow.Source)
	assert.Equal(t, "No LIGGGHTS dump found. Check solver output/log file.", result.ChargeThrow.Message)
}

func TestRunStartFailureReportsMinusOne(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("exec format errors are POSIX specific")
	}
	path := filepath.Join(t.TempDir(), "broken-lmp")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0x01, 0x02, 0x03}, 0o755))

	runner, err := NewRunner(t.TempDir(), path)
	require.NoError(t, err)

	result, err := runner.Run(testConfig())
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusFailed, result.Status)
	assert.Equal(t, "LIGGGHTS exited with code -1.", result.Message)
	assert.Contains(t, readFile(t, result.LogFile), "failed to start")
}

func TestRunConflictOnExistingDirectory(t *testing.T) {
	runner, err := NewRunner(t.TempDir(), "definitely_missing_binary",
		WithRunIDGenerator(func() string { return "abcdef0123" }))
	require.NoError(t, err)

	_, err = runner.Run(testConfig())
	require.NoError(t, err)

	_, err = runner.Run(testConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunConflict)
}

func TestRunNotifiesObserver(t *testing.T) {
	solver := writeFakeSolver(t, "cat > charge_throw.dump <<'EOF'\n"+fakeDump+"EOF\n")

	var stages []domain.EventType
	var runIDs []string
	runner, err := NewRunner(t.TempDir(), solver, WithObserver(func(runID string, stage domain.EventType, detail map[string]any) {
		stages = append(stages, stage)
		runIDs = append(runIDs, runID)
		if stage == domain.EventTypeSolverExited {
			assert.Equal(t, 0, detail["exit_code"])
		}
	}))
	require.NoError(t, err)

	result, err := runner.Run(testConfig())
	require.NoError(t, err)

	assert.Equal(t, []domain.EventType{
		domain.EventTypeRunStarted,
		domain.EventTypeDeckWritten,
		domain.EventTypeSolverStarted,
		domain.EventTypeSolverExited,
		domain.EventTypeChargeThrowExtracted,
	}, stages)
	for _, id := range runIDs {
		assert.Equal(t, result.RunID, id)
	}
}

func TestNewRunnerCreatesWorkspace(t *testing.T) {
	workspace := filepath.Join(t.TempDir(), "nested", "runs")
	runner, err := NewRunner(workspace, "")
	require.NoError(t, err)

	info, err := os.Stat(workspace)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, DefaultCommand, runner.Command())
}

func TestRandomRunID(t *testing.T) {
	id := randomRunID()
	assert.Len(t, id, 10)
	assert.Empty(t, strings.Trim(id, "0123456789abcdef"))
	assert.NotEqual(t, id, randomRunID())
}
