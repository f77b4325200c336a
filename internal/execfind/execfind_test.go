package execfind

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/femloop/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscover_NewestFirst(t *testing.T) {
	// --- Arrange ---
	environ := []string{
		"PATH=/usr/bin",
		"ANSYS192_DIR=/opt/v192/ansys",
		"ansys241_dir=/opt/v241/ansys",
		"ANSYS221_DIR=",
		"ANSYS_DIR=/opt/none",
		"XANSYS999_DIR=/opt/x",
		"ANSYS232_DIR=/opt/v232/ansys",
	}

	// --- Act ---
	got := Discover(environ, "linux")

	// --- Assert ---
	require.Len(t, got, 3)
	assert.Equal(t, []int{241, 232, 192}, []int{got[0].Version, got[1].Version, got[2].Version})
	assert.Equal(t, filepath.Join("/opt/v241/ansys", "bin", "ansys241"), got[0].Executable)
}

func TestExecutablePath_Windows(t *testing.T) {
	got := ExecutablePath("C:/ansys", 241, "windows")

	assert.Equal(t, filepath.Join("C:/ansys", "bin", "winx64", "ANSYS241.exe"), got)
}

func TestFind_SkipsMissingInstalls(t *testing.T) {
	// --- Arrange ---
	older := t.TempDir()
	exe := ExecutablePath(older, 222, "linux")
	require.NoError(t, os.MkdirAll(filepath.Dir(exe), 0o755))
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))

	environ := []string{
		"ANSYS241_DIR=" + filepath.Join(t.TempDir(), "missing"),
		"ANSYS222_DIR=" + older,
	}

	// --- Act ---
	got, err := find(environ, "linux")

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, exe, got)
}

func TestFind_Errors(t *testing.T) {
	tests := []struct {
		name    string
		environ []string
	}{
		{"no variables", []string{"HOME=/root"}},
		{"nothing on disk", []string{"ANSYS241_DIR=" + filepath.Join(t.TempDir(), "gone")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := find(tc.environ, "linux")

			require.Error(t, err)
			assert.True(t, config.IsConfigurationError(err))
		})
	}
}
