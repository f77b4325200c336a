package model

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/specialistvlad/femloop/internal/ctxlog"
	"github.com/specialistvlad/femloop/internal/monitor"
)

// CopiedFile reports what happened to one model file.
type CopiedFile struct {
	Name      string
	Binary    bool
	Filtered  bool
	Commented int
}

// Preparer copies a Model into a run directory.
type Preparer struct {
	runDir string
}

// NewPreparer returns a Preparer writing into runDir.
func NewPreparer(runDir string) *Preparer {
	return &Preparer{runDir: runDir}
}

// Prepare copies every file of m, main first, then extras in declared order.
// Text files are filtered against guarded whenever guarded is non-empty;
// binary files are copied as-is. The launcher file is always rewritten.
func (p *Preparer) Prepare(ctx context.Context, m *Model, guarded []string) ([]CopiedFile, error) {
	logger := ctxlog.FromContext(ctx)
	var filter *Filter
	if len(guarded) > 0 {
		filter = NewFilter(guarded)
	}

	copied := make([]CopiedFile, 0, len(m.ExtraFiles)+1)
	for _, name := range m.Files() {
		cf, err := p.copyFile(m.SourcePath(name), filter)
		if err != nil {
			return copied, err
		}
		cf.Name = name
		if cf.Commented > 0 {
			logger.Warn("Model lines commented out.", "file", name, "lines", cf.Commented)
		}
		copied = append(copied, cf)
	}

	if err := p.WriteLauncher(m.Main); err != nil {
		return copied, err
	}
	logger.Debug("Model prepared.", "files", len(copied), "guarded", len(guarded))
	return copied, nil
}

// WriteLauncher writes the launcher file whose only content includes main.
func (p *Preparer) WriteLauncher(main string) error {
	path := filepath.Join(p.runDir, monitor.LauncherFile)
	content := fmt.Sprintf("/INPUT,%s", filepath.Base(main))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("model: write launcher: %w", err)
	}
	return nil
}

func (p *Preparer) copyFile(src string, filter *Filter) (CopiedFile, error) {
	content, err := os.ReadFile(src)
	if err != nil {
		return CopiedFile{}, fmt.Errorf("model: could not copy %q: %w", src, err)
	}
	dst := filepath.Join(p.runDir, filepath.Base(src))
	binary := !IsText(content)

	if binary || filter == nil {
		if err := os.WriteFile(dst, content, 0o644); err != nil {
			return CopiedFile{}, fmt.Errorf("model: write %q: %w", dst, err)
		}
		return CopiedFile{Binary: binary}, nil
	}

	var buf bytes.Buffer
	commented, err := filter.Apply(&buf, content)
	if err != nil {
		return CopiedFile{}, fmt.Errorf("model: filter %q: %w", src, err)
	}
	if err := os.WriteFile(dst, buf.Bytes(), 0o644); err != nil {
		return CopiedFile{}, fmt.Errorf("model: write %q: %w", dst, err)
	}
	return CopiedFile{Filtered: true, Commented: commented}, nil
}

// maxControlShare is the share of control bytes above which content is
// treated as binary.
const maxControlShare = 0.1

// IsText reports whether content is a script rather than binary data. Any
// 8-bit encoding counts as text, since every filter token is ASCII; NUL bytes
// or a high share of control bytes mark binary data.
func IsText(content []byte) bool {
	if bytes.IndexByte(content, 0) >= 0 {
		return false
	}
	control := 0
	for _, b := range content {
		switch {
		case b == '\t', b == '\n', b == '\r', b == '\f', b == '\v':
		case b < 0x20, b == 0x7f:
			control++
		}
	}
	return float64(control) <= maxControlShare*float64(len(content))
}
