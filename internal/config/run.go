package config

import (
	"errors"
	"os"
	"time"
)

// Defaults applied by WithDefaults.
const (
	DefaultRunDir       = "workingdir"
	DefaultJobName      = "file"
	DefaultProcessors   = 2
	DefaultPollInterval = time.Second
	DefaultMonitorWait  = 500 * time.Millisecond
	DefaultStartTimeout = 30 * time.Second
	DefaultStartSleep   = time.Second
	DefaultKillInterval = time.Second
)

// RunConfiguration describes how the solver is launched and supervised. It
// is an immutable value; the job name corrected at runtime is tracked by the
// solver session, not here.
type RunConfiguration struct {
	// Executable is the solver binary.
	Executable string
	// RunDir holds the generated scripts, parameter files and lock file.
	RunDir string
	// JobName is the label under which the solver registers its lock file.
	JobName string
	// Processors is passed to the solver's processor-count flag.
	Processors int
	// ExtraFlags are appended to the launch command line as-is.
	ExtraFlags []string
	// OverrideLock removes a stale, unheld <job>.lock before launching.
	OverrideLock bool

	// PollInterval is the driver's wait between reads of the control record.
	PollInterval time.Duration
	// MonitorWait is the monitor script's wait between reads of the record.
	MonitorWait time.Duration
	// StartTimeout bounds the wait for the solver's lock file to appear.
	StartTimeout time.Duration
	// StartSleep is the liveness poll interval while starting.
	StartSleep time.Duration
	// KillInterval is the wait between kill commands while stopping.
	KillInterval time.Duration
	// DoneTimeout bounds a single solve. Zero waits without bound.
	DoneTimeout time.Duration
}

// WithDefaults returns a copy with every unset field filled in.
func (c RunConfiguration) WithDefaults() RunConfiguration {
	if c.RunDir == "" {
		c.RunDir = DefaultRunDir
	}
	if c.JobName == "" {
		c.JobName = DefaultJobName
	}
	if c.Processors <= 0 {
		c.Processors = DefaultProcessors
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MonitorWait <= 0 {
		c.MonitorWait = DefaultMonitorWait
	}
	if c.StartTimeout <= 0 {
		c.StartTimeout = DefaultStartTimeout
	}
	if c.StartSleep <= 0 {
		c.StartSleep = DefaultStartSleep
	}
	if c.KillInterval <= 0 {
		c.KillInterval = DefaultKillInterval
	}
	if c.DoneTimeout < 0 {
		c.DoneTimeout = 0
	}
	return c
}

// Validate checks that the executable and the run directory are usable. The
// default run directory is created when missing; any other missing folder is
// a ConfigurationError.
func (c RunConfiguration) Validate() error {
	if c.Executable == "" {
		return Errorf("executable", "no solver executable configured")
	}
	info, err := os.Stat(c.Executable)
	if err != nil {
		return Errorf("executable", "solver executable %q not found: %w", c.Executable, err)
	}
	if info.IsDir() {
		return Errorf("executable", "solver executable %q is a directory", c.Executable)
	}

	info, err = os.Stat(c.RunDir)
	switch {
	case errors.Is(err, os.ErrNotExist) && c.RunDir == DefaultRunDir:
		if err := os.MkdirAll(c.RunDir, 0o755); err != nil {
			return Errorf("run_dir", "could not create run directory %q: %w", c.RunDir, err)
		}
	case err != nil:
		return Errorf("run_dir", "could not access run directory %q: %w", c.RunDir, err)
	case !info.IsDir():
		return Errorf("run_dir", "run directory %q is not a directory", c.RunDir)
	}

	if c.JobName == "" {
		return Errorf("job_name", "job name must not be empty")
	}
	return nil
}
