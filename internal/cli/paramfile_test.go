package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/femloop/internal/history"
	"github.com/specialistvlad/femloop/internal/params"
	"github.com/specialistvlad/femloop/internal/solver"
	"github.com/specialistvlad/femloop/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadParamsFile_KeepsDocumentOrder(t *testing.T) {
	// --- Arrange ---
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"p.yaml": `
zeta: 1
alpha: 2.5
mat: steel
nl: true
E: 2.1D5
`})

	// --- Act ---
	set, err := ReadParamsFile(filepath.Join(dir, "p.yaml"))

	// --- Assert ---
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"ZETA", "ALPHA", "MAT", "NL", "E"}, set.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	get := func(name string) params.Value {
		v, _ := set.Get(name)
		return v
	}
	assert.Equal(t, "2.5", get("alpha").String())
	assert.Equal(t, params.KindText, get("mat").Kind())
	assert.Equal(t, "1", get("nl").String())
	e, ok := get("E").Float64()
	require.True(t, ok)
	assert.Equal(t, 210000.0, e)
}

func TestReadParamsFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not a mapping", "- 1\n- 2\n"},
		{"nested value", "B:\n  x: 1\n"},
		{"null value", "B: ~\n"},
		{"syntax", "B: [1,\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			testutil.WriteFiles(t, dir, map[string]string{"p.yaml": tc.content})

			_, err := ReadParamsFile(filepath.Join(dir, "p.yaml"))

			assert.Error(t, err)
		})
	}
}

func TestReadParamsFile_Empty(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"p.yaml": ""})

	set, err := ReadParamsFile(filepath.Join(dir, "p.yaml"))

	require.NoError(t, err)
	assert.Zero(t, set.Len())
}

func TestWriteParamsFile_ReadsBackInOrder(t *testing.T) {
	set := params.New()
	set.Put("L", params.Int(60))
	set.Put("B", params.Number(0.25))
	set.Put("MAT", params.Text("true"))
	path := filepath.Join(t.TempDir(), "p.yaml")

	require.NoError(t, WriteParamsFile(path, set))
	got, err := ReadParamsFile(path)

	require.NoError(t, err)
	assert.Equal(t, []string{"L", "B", "MAT"}, got.Names())
	mat, _ := got.Get("MAT")
	assert.Equal(t, params.KindText, mat.Kind(), "quoted text is not read back as a bool")
}

func TestWriteSolveFile_History(t *testing.T) {
	// --- Arrange ---
	out := params.New()
	out.Put("OUT", params.Number(9))
	table := history.NewTable()
	table.Set(history.TimeSeries, []float64{0, 0.5})
	table.Set(2, []float64{1, 2})
	res := &solver.Result{Outputs: out, History: table, Run: 3, Elapsed: time.Second}
	path := filepath.Join(t.TempDir(), "solve.yaml")

	// --- Act ---
	err := WriteSolveFile(path, res)

	// --- Assert ---
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := "run: 3\nelapsed: 1s\noutputs:\n  OUT: 9\nhistory:\n  1: [0, 0.5]\n  2: [1, 2]\n"
	assert.Equal(t, want, string(data))
}
