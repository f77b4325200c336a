package model

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/specialistvlad/femloop/internal/config"
	"github.com/specialistvlad/femloop/internal/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_Match(t *testing.T) {
	f := NewFilter([]string{"B", "h"})

	tests := []struct {
		line string
		want bool
	}{
		{"B=5", true},
		{"b = 5", true},
		{"  H=2 ! height", true},
		{"ABSORB=5", false},
		{"BX=5", false},
		{"X=B", false},
		{"*SET,B,5", true},
		{"*set , h , 2", true},
		{"*GET,B,NODE,1,U,X", true},
		{"*DEL,B,,NOPR", true},
		{"*DIM,H,ARRAY,3", true},
		{"*SET,BX,5", false},
		{"*IF,B,EQ,5,THEN", false},
		{"/CLEAR", true},
		{"/clear,start", true},
		{"/EXIT,NOSAVE", true},
		{"*ASK,L,length", true},
		{"EOF", true},
		{"/EOF", true},
		{"/eof", true},
		{"  /EOF", true},
		{"B=1 $ /EOF", true},
		{"GEOFF=1", false},
		{"X=1 ! /CLEAR here is only a comment", false},
		{"! B=5", false},
		{"L=60 ! B=5", false},
	}
	for _, tc := range tests {
		t.Run(tc.line, func(t *testing.T) {
			assert.Equal(t, tc.want, f.Match(tc.line))
		})
	}
}

func TestFilter_WithoutNamesOnlyDirectives(t *testing.T) {
	f := NewFilter(nil)

	assert.False(t, f.Match("B=5"))
	assert.True(t, f.Match("/EXIT"))
}

func TestFilter_QuotesNames(t *testing.T) {
	f := NewFilter([]string{"A.B"})

	assert.False(t, f.Match("AXB=1"), "names are literal, not patterns")
}

func TestFilter_ApplyKeepsLineNumbering(t *testing.T) {
	src := []byte("/PREP7\r\nB=5\r\nL=60\nEOF")
	var out bytes.Buffer

	n, err := NewFilter([]string{"B"}).Apply(&out, src)

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "/PREP7\r\n"+CommentPrefix+"B=5\r\nL=60\n"+CommentPrefix+"EOF", out.String())
}

func TestNew_ValidatesFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cant.inp"), []byte("B=4\n"), 0o644))

	_, err := New("cant.inp", nil, dir)
	require.NoError(t, err)

	_, err = New("missing.inp", nil, dir)
	assert.True(t, config.IsConfigurationError(err))

	_, err = New("cant.inp", []string{"mesh.cdb"}, dir)
	assert.True(t, config.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "model.extra_files")

	_, err = New("cant.inp", nil, filepath.Join(dir, "nope"))
	assert.True(t, config.IsConfigurationError(err))
}

func TestPreparer_Prepare(t *testing.T) {
	// --- Arrange ---
	src := t.TempDir()
	runDir := t.TempDir()
	script := strings.Join([]string{
		"/PREP7",
		"B=4 ! width",
		"H=1",
		"*SET,L,60",
		"/CLEAR",
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(filepath.Join(src, "cant.inp"), []byte(script), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "mesh.db"), []byte{0x00, 0xFF, 'B', '=', '1'}, 0o644))
	m, err := New("cant.inp", []string{"mesh.db"}, src)
	require.NoError(t, err)

	// --- Act ---
	copied, err := NewPreparer(runDir).Prepare(context.Background(), m, []string{"B", "L"})

	// --- Assert ---
	require.NoError(t, err)
	require.Len(t, copied, 2)
	assert.Equal(t, CopiedFile{Name: "cant.inp", Filtered: true, Commented: 3}, copied[0])
	assert.Equal(t, CopiedFile{Name: "mesh.db", Binary: true}, copied[1])

	got, err := os.ReadFile(filepath.Join(runDir, "cant.inp"))
	require.NoError(t, err)
	want := strings.Join([]string{
		"/PREP7",
		CommentPrefix + "B=4 ! width",
		"H=1",
		CommentPrefix + "*SET,L,60",
		CommentPrefix + "/CLEAR",
		"",
	}, "\n")
	assert.Equal(t, want, string(got))

	bin, err := os.ReadFile(filepath.Join(runDir, "mesh.db"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xFF, 'B', '=', '1'}, bin)

	launcher, err := os.ReadFile(filepath.Join(runDir, monitor.LauncherFile))
	require.NoError(t, err)
	assert.Equal(t, "/INPUT,cant.inp", string(launcher))
}

func TestIsText(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    bool
	}{
		{"ascii", []byte("B=4\r\n/SOLU\n"), true},
		{"utf-8", []byte("! balanço\nB=4\n"), true},
		{"latin-1", []byte("! Viga em balan\xe7o\nB=5\n"), true},
		{"empty", nil, true},
		{"nul byte", []byte{'B', '=', 0x00, '1'}, false},
		{"control bytes", []byte{0x01, 0x02, 0x03, 'B', 0x04}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsText(tc.content))
		})
	}
}

func TestPreparer_FiltersEightBitScripts(t *testing.T) {
	// --- Arrange ---
	src := t.TempDir()
	runDir := t.TempDir()
	script := "! Viga em balan\xe7o\nB=5\nL=60 ! comprimento \xe9\n"
	require.NoError(t, os.WriteFile(filepath.Join(src, "viga.inp"), []byte(script), 0o644))
	m, err := New("viga.inp", nil, src)
	require.NoError(t, err)

	// --- Act ---
	copied, err := NewPreparer(runDir).Prepare(context.Background(), m, []string{"B"})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, CopiedFile{Name: "viga.inp", Filtered: true, Commented: 1}, copied[0])
	got, err := os.ReadFile(filepath.Join(runDir, "viga.inp"))
	require.NoError(t, err)
	want := "! Viga em balan\xe7o\n" + CommentPrefix + "B=5\nL=60 ! comprimento \xe9\n"
	assert.Equal(t, []byte(want), got, "non-UTF-8 bytes are kept as they are")
}

func TestPreparer_NoGuardedNamesCopiesVerbatim(t *testing.T) {
	src := t.TempDir()
	runDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "cant.inp"), []byte("B=4\n/CLEAR\n"), 0o644))
	m, err := New("cant.inp", nil, src)
	require.NoError(t, err)

	copied, err := NewPreparer(runDir).Prepare(context.Background(), m, nil)

	require.NoError(t, err)
	assert.False(t, copied[0].Filtered)
	got, err := os.ReadFile(filepath.Join(runDir, "cant.inp"))
	require.NoError(t, err)
	assert.Equal(t, "B=4\n/CLEAR\n", string(got))
}
