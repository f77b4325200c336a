package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/specialistvlad/femloop/internal/config"
)

// Model references the solver script and the files it depends on.
type Model struct {
	// Main is the script the launcher includes.
	Main string
	// ExtraFiles are copied alongside Main, in declared order.
	ExtraFiles []string
	// Location is the folder holding Main and ExtraFiles.
	Location string
}

// New validates that location and every referenced file exist and returns
// the Model. Any missing item is a ConfigurationError.
func New(main string, extraFiles []string, location string) (*Model, error) {
	if location == "" {
		location = "."
	}
	info, err := os.Stat(location)
	if err != nil {
		return nil, config.Errorf("model.location", "could not access model folder %q: %w", location, err)
	}
	if !info.IsDir() {
		return nil, config.Errorf("model.location", "model folder %q is not a directory", location)
	}
	if main == "" {
		return nil, config.Errorf("model.main", "no main script configured")
	}

	m := &Model{Main: main, ExtraFiles: append([]string(nil), extraFiles...), Location: location}
	for i, name := range m.Files() {
		field := "model.main"
		if i > 0 {
			field = "model.extra_files"
		}
		path := m.SourcePath(name)
		info, err := os.Stat(path)
		if err != nil {
			return nil, config.Errorf(field, "file %q does not exist as %q", name, path)
		}
		if info.IsDir() {
			return nil, config.Errorf(field, "%q is a directory", path)
		}
	}
	return m, nil
}

// Files returns the main script followed by the extra files.
func (m *Model) Files() []string {
	return append([]string{m.Main}, m.ExtraFiles...)
}

// SourcePath returns where name lives in the model folder.
func (m *Model) SourcePath(name string) string {
	return filepath.Join(m.Location, name)
}

// String implements fmt.Stringer for log attributes.
func (m *Model) String() string {
	return fmt.Sprintf("%s (+%d files) in %s", m.Main, len(m.ExtraFiles), m.Location)
}
