// Package supervisor owns the lifecycle of the external solver process:
// launching it with the monitor script, probing its liveness through the
// lock file and stopping it through the control record.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/specialistvlad/femloop/internal/config"
	"github.com/specialistvlad/femloop/internal/control"
	"github.com/specialistvlad/femloop/internal/ctxlog"
	"github.com/specialistvlad/femloop/internal/lockfile"
	"github.com/specialistvlad/femloop/internal/monitor"
)

// ErrNotStarted is returned when the solver's lock file does not become
// busy within the start timeout.
var ErrNotStarted = errors.New("supervisor: process did not start")

// Supervisor starts, checks and stops one solver instance.
type Supervisor struct {
	cfg      config.RunConfiguration
	launcher Launcher
	channel  *control.Channel

	mu      sync.Mutex
	jobName string
	proc    Process
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLauncher replaces the default os/exec launcher.
func WithLauncher(l Launcher) Option {
	return func(s *Supervisor) { s.launcher = l }
}

// New returns a Supervisor for cfg. Defaults are applied to cfg.
func New(cfg config.RunConfiguration, opts ...Option) *Supervisor {
	cfg = cfg.WithDefaults()
	s := &Supervisor{
		cfg:      cfg,
		launcher: &ExecLauncher{},
		channel:  control.NewChannel(cfg.RunDir),
		jobName:  cfg.JobName,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective run configuration.
func (s *Supervisor) Config() config.RunConfiguration {
	return s.cfg
}

// Channel returns the control record shared with the monitor.
func (s *Supervisor) Channel() *control.Channel {
	return s.channel
}

// JobName returns the job name currently believed to be in use. It differs
// from the configured one after IsRunning adopted another busy lock file.
func (s *Supervisor) JobName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobName
}

// Exited returns a channel closed when a process launched by this
// supervisor exits. It is nil, and never ready, when nothing was launched.
func (s *Supervisor) Exited() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proc == nil {
		return nil
	}
	return s.proc.Exited()
}

// IsRunning checks <job>.lock. When it is not busy, every *.lock in the run
// directory is checked and the first busy one is adopted as the job name.
func (s *Supervisor) IsRunning(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	held, err := lockfile.Held(lockfile.Path(s.cfg.RunDir, s.jobName))
	if err != nil {
		return false, err
	}
	if held {
		return true, nil
	}

	job, found, err := lockfile.FindHeld(s.cfg.RunDir)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	ctxlog.FromContext(ctx).Warn("Solver is running under another job name.", "configured", s.jobName, "found", job)
	s.jobName = job
	return true, nil
}

// Args returns the solver's command-line arguments for the given run
// directory and job name.
func Args(cfg config.RunConfiguration, runDir, job string) []string {
	args := []string{
		"-b",
		"-i", filepath.Join(runDir, monitor.ScriptFile),
		"-o", filepath.Join(runDir, monitor.LogFile),
		"-np", strconv.Itoa(cfg.Processors),
		"-j", job,
		"-dir", runDir,
	}
	return append(args, cfg.ExtraFlags...)
}

// Start launches the solver unless one is already running. It returns once
// the lock file is busy, or ErrNotStarted after StartTimeout.
func (s *Supervisor) Start(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	running, err := s.IsRunning(ctx)
	if err != nil {
		return err
	}
	if running {
		logger.Debug("Solver already running.", "job", s.JobName())
		return nil
	}

	if err := s.cfg.Validate(); err != nil {
		return err
	}
	runDir, err := filepath.Abs(s.cfg.RunDir)
	if err != nil {
		return config.Errorf("run_dir", "could not resolve run directory %q: %w", s.cfg.RunDir, err)
	}

	job := s.JobName()
	if s.cfg.OverrideLock {
		removed, err := lockfile.RemoveStale(lockfile.Path(runDir, job))
		if err != nil {
			return err
		}
		if removed {
			logger.Warn("Stale lock file removed.", "job", job)
		}
	}

	if _, err := monitor.Write(runDir, monitor.Params{
		Launcher:     monitor.LauncherFile,
		PollInterval: s.cfg.MonitorWait,
	}); err != nil {
		return err
	}
	if err := s.channel.Remove(); err != nil {
		return err
	}
	if err := s.channel.Store(control.State{}); err != nil {
		return err
	}

	cmd := Command{Path: s.cfg.Executable, Args: Args(s.cfg, runDir, job), Dir: runDir}
	logger.Info("Starting solver.", "command", cmd.String())
	proc, err := s.launcher.Launch(ctx, cmd)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.proc = proc
	s.mu.Unlock()

	if err := s.awaitStart(ctx, proc); err != nil {
		_ = proc.Terminate()
		return err
	}
	logger.Info("Solver started.", "job", s.JobName(), "pid", proc.Pid())
	return nil
}

func (s *Supervisor) awaitStart(ctx context.Context, proc Process) error {
	timeout := time.NewTimer(s.cfg.StartTimeout)
	defer timeout.Stop()
	ticker := time.NewTicker(s.cfg.StartSleep)
	defer ticker.Stop()

	for {
		running, err := s.IsRunning(ctx)
		if err != nil {
			return err
		}
		if running {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-proc.Exited():
			return fmt.Errorf("%w: solver exited during start", ErrNotStarted)
		case <-timeout.C:
			return fmt.Errorf("%w within %s", ErrNotStarted, s.cfg.StartTimeout)
		case <-ticker.C:
		}
	}
}

// Kill asks the monitor to stop, repeating the request every KillInterval
// until the lock file is released. It is a no-op when nothing runs. A
// process this supervisor launched is reaped, or terminated if it lingers.
func (s *Supervisor) Kill(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	var loopErr error
	for {
		running, err := s.IsRunning(ctx)
		if err != nil {
			loopErr = err
			break
		}
		if !running {
			break
		}
		if _, err := s.channel.Write(false, true); err != nil {
			loopErr = err
			break
		}
		logger.Debug("Kill requested.", "job", s.JobName())

		timer := time.NewTimer(s.cfg.KillInterval)
		select {
		case <-ctx.Done():
			loopErr = ctx.Err()
		case <-timer.C:
		}
		timer.Stop()
		if loopErr != nil {
			break
		}
	}

	s.reap(ctx, loopErr != nil)

	if loopErr != nil {
		return loopErr
	}
	if err := s.channel.Remove(); err != nil {
		return err
	}
	return nil
}

// reap waits for a launched process to exit, terminating it when force is
// set or when it outlives one KillInterval.
func (s *Supervisor) reap(ctx context.Context, force bool) {
	s.mu.Lock()
	proc := s.proc
	s.proc = nil
	s.mu.Unlock()
	if proc == nil {
		return
	}

	if !force {
		timer := time.NewTimer(s.cfg.KillInterval)
		defer timer.Stop()
		select {
		case <-proc.Exited():
			ctxlog.FromContext(ctx).Debug("Solver exited.", "pid", proc.Pid())
			return
		case <-timer.C:
		}
	}
	ctxlog.FromContext(ctx).Warn("Terminating solver process.", "pid", proc.Pid())
	if err := proc.Terminate(); err != nil {
		ctxlog.FromContext(ctx).Error("Could not terminate solver.", "pid", proc.Pid(), "error", err)
	}
}
