package monitor

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_SubstitutesParams(t *testing.T) {
	out, err := Render(Params{Launcher: "main.femloop", PollInterval: 750 * time.Millisecond})
	require.NoError(t, err)

	script := string(out)
	assert.Contains(t, script, "/WAIT,0.75\n")
	assert.Contains(t, script, "/INPUT,main,femloop\n")
	assert.Contains(t, script, "/INPUT,par_in,femloop\n")
	assert.Contains(t, script, "PARSAV,ALL,par_out,femloop\n")
	assert.Contains(t, script, "*CREATE,femhist,mac\n")
}

func TestRender_Defaults(t *testing.T) {
	out, err := Render(Params{})
	require.NoError(t, err)
	assert.Contains(t, string(out), "/WAIT,0.5\n")
	assert.Contains(t, string(out), "/INPUT,main,femloop\n")
}

func TestWrite_IsDeterministic(t *testing.T) {
	dir := t.TempDir()
	p := Params{PollInterval: time.Second}

	path, err := Write(dir, p)
	require.NoError(t, err)
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = Write(dir, p)
	require.NoError(t, err)
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
