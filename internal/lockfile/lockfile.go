// Package lockfile checks the solver's `<job>.lock` marker. Whether the file
// can be opened exclusively is the only liveness signal the solver offers.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Ext is the lock file extension.
const Ext = ".lock"

// Path returns the lock file for job inside dir.
func Path(dir, job string) string {
	return filepath.Join(dir, job+Ext)
}

// FindHeld scans dir for *.lock files and returns the job name of the first
// one, in lexical order, that is held by another process.
func FindHeld(dir string) (string, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false, fmt.Errorf("lockfile: scan %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), Ext) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		held, err := Held(filepath.Join(dir, name))
		if err != nil {
			return "", false, err
		}
		if held {
			return strings.TrimSuffix(name, filepath.Ext(name)), true, nil
		}
	}
	return "", false, nil
}

// RemoveStale deletes path when it exists and nobody holds it. It reports
// whether a file was removed.
func RemoveStale(path string) (bool, error) {
	held, err := Held(path)
	if err != nil || held {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("lockfile: remove %s: %w", path, err)
	}
	return true, nil
}
