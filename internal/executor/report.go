package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vk/stepgrid/internal/graph"
)

// ReportWriter persists rendered formatter output to disk so a finished
// session leaves a human-readable artifact next to the snapshot.
type ReportWriter struct {
	Dir string
}

// Write saves every rendered report found in a formatter step's output,
// plus a sidecar JSON summary. It returns the file names written.
func (w *ReportWriter) Write(ctx context.Context, g *graph.Store, stepID string, output map[string]any) ([]string, error) {
	node, ok := g.Node(stepID)
	if !ok {
		return nil, fmt.Errorf("report: unknown node %q", stepID)
	}

	dir := filepath.Join(w.Dir, g.SessionID())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report: creating %q: %w", dir, err)
	}

	ext := "html"
	if f, _ := output["final_format"].(string); f == "markdown" || f == "md" {
		ext = "md"
	}

	var saved []string
	seen := make(map[string]bool)
	write := func(name, body string) error {
		if seen[name] {
			return nil
		}
		seen[name] = true
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			return fmt.Errorf("report: writing %q: %w", name, err)
		}
		saved = append(saved, name)
		return nil
	}

	for _, key := range node.Writes {
		body, ok := output[key].(string)
		if !ok || body == "" {
			continue
		}
		if err := write(fmt.Sprintf("report_%s.%s", stepID, ext), body); err != nil {
			return saved, err
		}
	}
	if len(saved) == 0 {
		for _, key := range []string{
			"formatted_report_" + stepID,
			"formatted_html_" + stepID,
			"formatted_output_" + stepID,
			"formatted_report",
			"formatted_html",
			"formatted_output",
		} {
			body, ok := output[key].(string)
			if !ok || body == "" {
				continue
			}
			if err := write(fmt.Sprintf("report_%s.%s", stepID, ext), body); err != nil {
				return saved, err
			}
			break
		}
	}
	if len(saved) == 0 {
		return nil, nil
	}

	meta := map[string]any{
		"session_id":     g.SessionID(),
		"step_id":        stepID,
		"original_query": g.Query(),
		"final_format":   ext,
		"saved_files":    saved,
		"created_at":     time.Now().UTC().Format(time.RFC3339),
	}
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return saved, fmt.Errorf("report: encoding summary: %w", err)
	}
	if err := write(fmt.Sprintf("report_summary_%s.json", stepID), string(raw)); err != nil {
		return saved, err
	}
	return saved, nil
}
