// Package hcl_adapter loads femloop session files written in HCL into the
// format-agnostic config.Model.
package hcl_adapter

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/femloop/internal/config"
	"github.com/specialistvlad/femloop/internal/ctxlog"
	"github.com/specialistvlad/femloop/internal/fsutil"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses every .hcl file found under paths, in order, and merges them
// into one model on top of the defaults. A later file overrides only the
// attributes it sets; a parameters block adds to or overrides earlier ones.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	model := config.NewModel()

	hclFiles, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(hclFiles) == 0 {
		return nil, config.Errorf("config", "no .hcl files found in %v", paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(hclFiles))

	parser := hclparse.NewParser()
	evalCtx := evalContext()

	for _, file := range hclFiles {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		if err := l.merge(ctx, &root, evalCtx, model); err != nil {
			return nil, fmt.Errorf("in %s: %w", file, err)
		}
	}

	logger.Debug("HCL loading complete.",
		"files", len(hclFiles),
		"parameters", model.Parameters.Len(),
		"main", model.Script.Main,
	)
	return model, nil
}

func (l *Loader) merge(ctx context.Context, root *fileRoot, evalCtx *hcl.EvalContext, model *config.Model) error {
	if root.Solver != nil {
		if err := l.translateSolver(root.Solver, &model.Run); err != nil {
			return err
		}
	}
	if root.Model != nil {
		l.translateModel(root.Model, &model.Script)
	}
	if root.Parameters != nil {
		if err := l.translateParameters(ctx, root.Parameters, evalCtx, model.Parameters); err != nil {
			return err
		}
	}
	if root.History != nil {
		model.History = append([]int(nil), root.History.Series...)
	}
	if root.Gradient != nil {
		if err := l.translateGradient(root.Gradient, &model.Gradient); err != nil {
			return err
		}
	}
	if root.Journal != nil {
		model.Journal.Path = root.Journal.Path
	}
	if root.Status != nil {
		model.Status.Port = root.Status.Port
	}
	if root.Progress != nil {
		l.translateProgress(root.Progress, &model.Progress)
	}
	return nil
}

// findAllHCLFiles walks all given paths and returns a flat list of all .hcl
// files found. Files inside a directory are returned in lexical order.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, wasSeen := seen[p]; !wasSeen {
			allFiles = append(allFiles, p)
			seen[p] = struct{}{}
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, config.Errorf("config", "configuration path %s does not exist", path)
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if !info.IsDir() {
			add(path)
			continue
		}

		found, err := fsutil.FindFilesByExtension(path, ".hcl")
		if err != nil {
			return nil, err
		}
		for _, p := range found {
			add(p)
		}
	}
	return allFiles, nil
}
