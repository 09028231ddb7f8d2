package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/vk/stepgrid/internal/ctxlog"
)

// Load reads a JSON plan document from path and validates it.
func Load(ctx context.Context, path string) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading plan file.", "path", path)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plan: read %s: %w", path, err)
	}
	return Parse(ctx, raw)
}

// Parse decodes a JSON plan document and validates it.
func Parse(ctx context.Context, raw []byte) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)

	var p Plan
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("plan: decode: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	logger.Debug("Plan parsed and validated.", "steps", len(p.Steps), "edges", len(p.Edges))
	return &p, nil
}
