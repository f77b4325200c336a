package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDefaults(t *testing.T) {
	c := RunConfiguration{Executable: "/bin/solver", DoneTimeout: -time.Second}.WithDefaults()

	assert.Equal(t, DefaultRunDir, c.RunDir)
	assert.Equal(t, DefaultJobName, c.JobName)
	assert.Equal(t, DefaultProcessors, c.Processors)
	assert.Equal(t, DefaultStartTimeout, c.StartTimeout)
	assert.Zero(t, c.DoneTimeout, "the done wait is unbounded unless configured")
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "solver")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))

	tests := []struct {
		name  string
		cfg   RunConfiguration
		field string
	}{
		{"ok", RunConfiguration{Executable: exe, RunDir: dir, JobName: "file"}, ""},
		{"no executable", RunConfiguration{RunDir: dir, JobName: "file"}, "executable"},
		{"missing executable", RunConfiguration{Executable: filepath.Join(dir, "nope"), RunDir: dir, JobName: "file"}, "executable"},
		{"executable is dir", RunConfiguration{Executable: dir, RunDir: dir, JobName: "file"}, "executable"},
		{"missing run dir", RunConfiguration{Executable: exe, RunDir: filepath.Join(dir, "nope"), JobName: "file"}, "run_dir"},
		{"run dir is file", RunConfiguration{Executable: exe, RunDir: exe, JobName: "file"}, "run_dir"},
		{"empty job", RunConfiguration{Executable: exe, RunDir: dir}, "job_name"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.field == "" {
				require.NoError(t, err)
				return
			}
			var ce *ConfigurationError
			require.True(t, errors.As(err, &ce), "expected a ConfigurationError, got %v", err)
			assert.Equal(t, tc.field, ce.Field)
			assert.True(t, IsConfigurationError(err))
		})
	}
}

func TestValidate_CreatesDefaultRunDir(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "solver")
	require.NoError(t, os.WriteFile(exe, nil, 0o755))
	t.Chdir(dir)

	err := RunConfiguration{Executable: exe, RunDir: DefaultRunDir, JobName: "file"}.Validate()

	require.NoError(t, err)
	info, err := os.Stat(filepath.Join(dir, DefaultRunDir))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
