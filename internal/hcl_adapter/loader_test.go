package hcl_adapter

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/specialistvlad/femloop/internal/config"
	"github.com/specialistvlad/femloop/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sessionHCL = `
solver {
  executable    = "${env.FEMLOOP_TEST_ANSYS}/bin/ansys241"
  run_dir       = "runs"
  job_name      = "beam"
  processors    = 8
  extra_flags   = ["-smp", "-m", "2048"]
  override_lock = true
  poll_interval = "250ms"
  done_timeout  = "10m"
}

model {
  main        = "cantilever.inp"
  extra_files = ["mesh.cdb"]
  location    = "models"
}

parameters {
  L   = 60
  b   = 4
  H   = 1.25
  MAT = "steel"
  NL  = true
}

history {
  series = [2, 3]
}

gradient {
  method   = "central"
  step     = 0.01
  only_for = ["B", "H"]
}

journal {
  path = "femloop.db"
}

status {
  port = 8089
}

progress {
  url = "http://localhost:3000/socket.io/"
}
`

func TestLoad_FullFile(t *testing.T) {
	// --- Arrange ---
	t.Setenv("FEMLOOP_TEST_ANSYS", "/opt/ansys")
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"session.hcl": sessionHCL})

	// --- Act ---
	m, err := NewLoader().Load(context.Background(), filepath.Join(dir, "session.hcl"))

	// --- Assert ---
	require.NoError(t, err)

	assert.Equal(t, "/opt/ansys/bin/ansys241", m.Run.Executable)
	assert.Equal(t, "runs", m.Run.RunDir)
	assert.Equal(t, "beam", m.Run.JobName)
	assert.Equal(t, 8, m.Run.Processors)
	assert.Equal(t, []string{"-smp", "-m", "2048"}, m.Run.ExtraFlags)
	assert.True(t, m.Run.OverrideLock)
	assert.Equal(t, 250*time.Millisecond, m.Run.PollInterval)
	assert.Equal(t, 10*time.Minute, m.Run.DoneTimeout)
	assert.Equal(t, config.DefaultStartTimeout, m.Run.StartTimeout, "unset durations keep their defaults")

	assert.Equal(t, config.ScriptConfig{Main: "cantilever.inp", ExtraFiles: []string{"mesh.cdb"}, Location: "models"}, m.Script)

	assert.Equal(t, []string{"L", "B", "H", "MAT", "NL"}, m.Parameters.Names(), "source order is kept")
	h, _ := m.Parameters.Get("h")
	assert.Equal(t, "1.25", h.String())
	mat, _ := m.Parameters.Get("MAT")
	assert.Equal(t, "steel", mat.String())
	nl, _ := m.Parameters.Get("NL")
	assert.Equal(t, "1", nl.String())

	assert.Equal(t, []int{2, 3}, m.History)
	assert.Equal(t, config.GradientConfig{Method: "central", Step: 0.01, OnlyFor: []string{"B", "H"}}, m.Gradient)
	assert.Equal(t, "femloop.db", m.Journal.Path)
	assert.Equal(t, 8089, m.Status.Port)
	assert.Equal(t, "http://localhost:3000/socket.io/", m.Progress.URL)
	assert.Equal(t, config.DefaultProgressEvent, m.Progress.Event)
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"a.hcl": `model { main = "m.inp" }`})

	m, err := NewLoader().Load(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, config.DefaultRunDir, m.Run.RunDir)
	assert.Equal(t, config.DefaultJobName, m.Run.JobName)
	assert.Equal(t, config.DefaultProcessors, m.Run.Processors)
	assert.Equal(t, config.DefaultGradientMethod, m.Gradient.Method)
	assert.Equal(t, config.DefaultGradientStep, m.Gradient.Step)
	assert.Equal(t, 0, m.Parameters.Len())
	assert.Zero(t, m.Status.Port)
}

func TestLoad_LaterFilesOverride(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"10-base.hcl": `
solver {
  executable = "/bin/solver"
  processors = 4
}
parameters {
  B = 1
  H = 2
}`,
		"20-override.hcl": `
solver {
  processors = 16
}
parameters {
  H = 3
  L = 5
}`,
	})

	m, err := NewLoader().Load(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, "/bin/solver", m.Run.Executable)
	assert.Equal(t, 16, m.Run.Processors)
	assert.Equal(t, []string{"B", "H", "L"}, m.Parameters.Names())
	h, _ := m.Parameters.Get("H")
	assert.Equal(t, "3", h.String())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantField string
	}{
		{"bad duration", `solver { poll_interval = "soon" }`, "solver.poll_interval"},
		{"zero step", `gradient { step = 0 }`, "gradient.step"},
		{"list parameter", `parameters { B = [1, 2] }`, "parameters.B"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			testutil.WriteFiles(t, dir, map[string]string{"bad.hcl": tc.content})

			_, err := NewLoader().Load(context.Background(), dir)

			require.Error(t, err)
			assert.True(t, config.IsConfigurationError(err))
			assert.Contains(t, err.Error(), tc.wantField)
		})
	}
}

func TestLoad_SyntaxError(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"broken.hcl": "solver {\n  processors = \n"})

	_, err := NewLoader().Load(context.Background(), dir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestLoad_MissingPath(t *testing.T) {
	_, err := NewLoader().Load(context.Background(), filepath.Join(t.TempDir(), "nope.hcl"))

	require.Error(t, err)
	assert.True(t, config.IsConfigurationError(err))
}
