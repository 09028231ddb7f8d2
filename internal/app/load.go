package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vk/stepgrid/internal/fsutil"
	"github.com/vk/stepgrid/internal/plan"
	"github.com/vk/stepgrid/internal/planhcl"
)

// loadPlan resolves the configured plan path to a single plan file and
// parses it. A directory path is searched for exactly one .json or .hcl
// plan.
func (a *App) loadPlan(ctx context.Context) (*plan.Plan, error) {
	path := a.config.PlanPath

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan path: %w", err)
	}
	if info.IsDir() {
		path, err = a.resolvePlanDir(path)
		if err != nil {
			return nil, err
		}
	}
	a.logger.Debug("Loading plan.", "path", path)

	switch filepath.Ext(path) {
	case ".hcl":
		return planhcl.Load(ctx, path)
	case ".json":
		return plan.Load(ctx, path)
	}
	return nil, fmt.Errorf("unsupported plan format %q: expected .json or .hcl", filepath.Ext(path))
}

// resolvePlanDir finds the single plan file inside a directory.
func (a *App) resolvePlanDir(dir string) (string, error) {
	var candidates []string
	for _, ext := range []string{".json", ".hcl"} {
		found, err := fsutil.FindFilesByExtension(dir, ext)
		if err != nil {
			return "", fmt.Errorf("failed to scan plan directory: %w", err)
		}
		candidates = append(candidates, found...)
	}
	switch len(candidates) {
	case 0:
		return "", fmt.Errorf("no .json or .hcl plan found in %q", dir)
	case 1:
		return candidates[0], nil
	}
	return "", fmt.Errorf("plan directory %q holds %d plan files, expected one: %v", dir, len(candidates), candidates)
}
