package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"github.com/vk/stepgrid/internal/ctxlog"
)

// LLMWorker invokes a chat model for every step. The instruction payload is
// the agent kind's prompt template followed by the invocation serialized as
// a fenced JSON block; the model is expected to answer with a JSON object.
type LLMWorker struct {
	model     llms.Model
	profiles  *Profiles
	promptDir string

	mu      sync.Mutex
	prompts map[string]string
}

// NewLLMWorker builds a worker over a chat model. promptDir may be empty,
// in which case invocations carry no template preamble.
func NewLLMWorker(model llms.Model, profiles *Profiles, promptDir string) *LLMWorker {
	return &LLMWorker{
		model:     model,
		profiles:  profiles,
		promptDir: promptDir,
		prompts:   make(map[string]string),
	}
}

// Invoke implements Worker.
func (w *LLMWorker) Invoke(ctx context.Context, inv Invocation) (Output, error) {
	logger := ctxlog.FromContext(ctx).With("step_id", inv.StepID, "agent", inv.Agent)

	prof, _ := w.profiles.Get(inv.Agent)
	template := w.promptTemplate(ctx, prof.PromptFile)

	payload, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("agent: encoding invocation for %q: %w", inv.StepID, err)
	}
	prompt := strings.TrimSpace(template + "\n\n```json\n" + string(payload) + "\n```")

	var opts []llms.CallOption
	if prof.Model != "" {
		opts = append(opts, llms.WithModel(prof.Model))
	}

	logger.Debug("🤖 Calling model.", "prompt_bytes", len(prompt))
	resp, err := w.model.GenerateContent(ctx,
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)},
		opts...)
	if err != nil {
		return nil, fmt.Errorf("agent: model call for %q: %w", inv.StepID, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("agent: model returned no choices for %q", inv.StepID)
	}
	text := resp.Choices[0].Content

	out, err := ParseModelJSON(text)
	if err != nil {
		return nil, fmt.Errorf("agent: step %q: %w", inv.StepID, err)
	}
	if _, reported := out["cost"]; !reported {
		usage := EstimateUsage(prompt, text)
		out["cost"] = usage.Cost
		out["input_tokens"] = usage.InputTokens
		out["output_tokens"] = usage.OutputTokens
	}
	return out, nil
}

// promptTemplate loads and caches an agent kind's prompt file. A missing
// file is tolerated so profiles can reference prompts that only some
// deployments ship.
func (w *LLMWorker) promptTemplate(ctx context.Context, name string) string {
	if name == "" || w.promptDir == "" {
		return ""
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if cached, ok := w.prompts[name]; ok {
		return cached
	}
	raw, err := os.ReadFile(filepath.Join(w.promptDir, name))
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Prompt template unavailable, sending bare payload.", "file", name, "error", err)
		w.prompts[name] = ""
		return ""
	}
	w.prompts[name] = string(raw)
	return w.prompts[name]
}
