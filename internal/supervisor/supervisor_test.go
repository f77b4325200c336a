package supervisor_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/specialistvlad/femloop/internal/config"
	"github.com/specialistvlad/femloop/internal/control"
	"github.com/specialistvlad/femloop/internal/lockfile"
	"github.com/specialistvlad/femloop/internal/monitor"
	"github.com/specialistvlad/femloop/internal/supervisor"
	"github.com/specialistvlad/femloop/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.RunConfiguration {
	t.Helper()
	exe := filepath.Join(t.TempDir(), "solver")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))
	return config.RunConfiguration{
		Executable:   exe,
		RunDir:       t.TempDir(),
		JobName:      "file",
		Processors:   4,
		ExtraFlags:   []string{"-smp"},
		MonitorWait:  10 * time.Millisecond,
		StartTimeout: 2 * time.Second,
		StartSleep:   5 * time.Millisecond,
		KillInterval: 20 * time.Millisecond,
	}
}

func TestArgs(t *testing.T) {
	cfg := config.RunConfiguration{Processors: 3, ExtraFlags: []string{"-p", "ansys"}}

	args := supervisor.Args(cfg, "/runs/a", "job")

	assert.Equal(t, []string{
		"-b",
		"-i", filepath.Join("/runs/a", "monitor.femloop"),
		"-o", filepath.Join("/runs/a", "femloop.log"),
		"-np", "3",
		"-j", "job",
		"-dir", "/runs/a",
		"-p", "ansys",
	}, args)
}

func TestStartAndKill(t *testing.T) {
	// --- Arrange ---
	ctx, _ := testutil.NewContext(t)
	cfg := testConfig(t)
	fake := &testutil.FakeSolver{}
	sup := supervisor.New(cfg, supervisor.WithLauncher(fake))

	// --- Act ---
	require.NoError(t, sup.Start(ctx))

	// --- Assert ---
	running, err := sup.IsRunning(ctx)
	require.NoError(t, err)
	assert.True(t, running)
	assert.Equal(t, 1, fake.Launches())
	assert.FileExists(t, filepath.Join(cfg.RunDir, monitor.ScriptFile))

	state, err := sup.Channel().Read()
	require.NoError(t, err)
	assert.Equal(t, control.State{}, state)

	cmd := fake.Commands()[0]
	assert.Equal(t, cfg.Executable, cmd.Path)
	assert.Contains(t, cmd.Args, "-smp")

	exited := sup.Exited()
	require.NotNil(t, exited)

	require.NoError(t, sup.Kill(ctx))

	running, err = sup.IsRunning(ctx)
	require.NoError(t, err)
	assert.False(t, running)
	assert.False(t, sup.Channel().Exists(), "the record is gone after a kill")
	assert.NoFileExists(t, lockfile.Path(cfg.RunDir, "file"))
	select {
	case <-exited:
	default:
		t.Fatal("process was not reaped")
	}
	assert.Nil(t, sup.Exited())
}

func TestStart_AlreadyRunningIsNoop(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	cfg := testConfig(t)
	fake := &testutil.FakeSolver{}
	sup := supervisor.New(cfg, supervisor.WithLauncher(fake))
	t.Cleanup(func() { _ = sup.Kill(ctx) })

	require.NoError(t, sup.Start(ctx))
	require.NoError(t, sup.Start(ctx))

	assert.Equal(t, 1, fake.Launches())
}

func TestStart_Timeout(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	cfg := testConfig(t)
	cfg.StartTimeout = 50 * time.Millisecond
	sup := supervisor.New(cfg, supervisor.WithLauncher(&testutil.FakeSolver{NoLock: true}))

	err := sup.Start(ctx)

	require.ErrorIs(t, err, supervisor.ErrNotStarted)
}

func TestStart_MissingExecutable(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	cfg := testConfig(t)
	cfg.Executable = filepath.Join(t.TempDir(), "missing")
	fake := &testutil.FakeSolver{}
	sup := supervisor.New(cfg, supervisor.WithLauncher(fake))

	err := sup.Start(ctx)

	require.Error(t, err)
	assert.True(t, config.IsConfigurationError(err))
	assert.Zero(t, fake.Launches(), "nothing is launched on configuration errors")
}

func TestStart_OverrideLockRemovesStaleFile(t *testing.T) {
	ctx, logs := testutil.NewContext(t)
	cfg := testConfig(t)
	cfg.OverrideLock = true
	require.NoError(t, os.WriteFile(lockfile.Path(cfg.RunDir, "file"), nil, 0o644))
	sup := supervisor.New(cfg, supervisor.WithLauncher(&testutil.FakeSolver{}))
	t.Cleanup(func() { _ = sup.Kill(ctx) })

	require.NoError(t, sup.Start(ctx))

	testutil.AssertLogged(t, logs, "Stale lock file removed.")
}

func TestIsRunning_AdoptsOtherJobName(t *testing.T) {
	// --- Arrange ---
	ctx, logs := testutil.NewContext(t)
	cfg := testConfig(t)
	lock, err := lockfile.Acquire(lockfile.Path(cfg.RunDir, "beam"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = lock.Release() })
	sup := supervisor.New(cfg)

	// --- Act ---
	running, err := sup.IsRunning(ctx)

	// --- Assert ---
	require.NoError(t, err)
	assert.True(t, running)
	assert.Equal(t, "beam", sup.JobName())
	testutil.AssertLogged(t, logs, "Solver is running under another job name.")
}

func TestKill_NothingRunning(t *testing.T) {
	ctx, _ := testutil.NewContext(t)
	sup := supervisor.New(testConfig(t))

	require.NoError(t, sup.Kill(ctx))
	require.NoError(t, sup.Kill(ctx))
}
