package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/femloop/internal/cli"
	"github.com/stretchr/testify/require"
)

func TestRun_Help(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(context.Background(), out, &bytes.Buffer{}, []string{"--help"})

	// --- Assert ---
	require.NoError(t, err)
	require.Contains(t, out.String(), "Usage:")
	require.Contains(t, out.String(), "solve")
	require.Contains(t, out.String(), "grad")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	err := run(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, []string{"--this-is-not-a-valid-flag"})

	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown flag: --this-is-not-a-valid-flag")
}

func TestRun_InvalidSessionFile(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// A syntax error in the session file fails while loading configuration.
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "session.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte("solver {\n  processors =\n"), 0o600))

	// --- Act ---
	err := run(context.Background(), &bytes.Buffer{}, &bytes.Buffer{}, []string{"solve", "--config", filePath})

	// --- Assert ---
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to parse")
	require.Equal(t, cli.ExitFailure, cli.ExitCode(err))
}

func TestRun_MissingSessionFile(t *testing.T) {
	t.Parallel()

	err := run(context.Background(), &bytes.Buffer{}, &bytes.Buffer{},
		[]string{"status", "--config", filepath.Join(t.TempDir(), "missing.hcl")})

	require.Error(t, err)
	require.Equal(t, cli.ExitConfig, cli.ExitCode(err))
}
