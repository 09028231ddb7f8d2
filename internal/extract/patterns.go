package extract

import (
	"strings"
	"sync"
)

// PatternSet declares, per agent kind, the derived key names the
// name-pattern strategy may try. Templates expand `{key}` to the write key
// and `{step}` to the step id; KeyHints are substrings matched against
// output key names after all templates miss.
type PatternSet struct {
	Templates []string
	KeyHints  []string
}

// expand renders every template for a concrete write key and step id.
func (p *PatternSet) expand(key, stepID string) []string {
	out := make([]string, 0, len(p.Templates))
	for _, tmpl := range p.Templates {
		c := strings.ReplaceAll(tmpl, "{key}", key)
		c = strings.ReplaceAll(c, "{step}", stepID)
		out = append(out, c)
	}
	return out
}

// PatternRegistry maps agent kinds to their name-pattern fallbacks. New
// agent kinds register their own candidate lists without touching the
// extraction chain.
type PatternRegistry struct {
	mu   sync.RWMutex
	sets map[string]*PatternSet
}

// NewPatternRegistry returns a registry pre-populated with the formatting
// agent kind's conventional output key names.
func NewPatternRegistry() *PatternRegistry {
	r := &PatternRegistry{sets: make(map[string]*PatternSet)}
	r.Register("FormatterAgent", PatternSet{
		Templates: []string{
			"formatted_{key}",
			"formatted_report_{step}",
			"formatted_html_{step}",
			"formatted_output_{step}",
			"formatted_{step}",
			"formatted_report",
			"formatted_html",
			"formatted_output",
			"formatted",
		},
		KeyHints: []string{"formatted"},
	})
	return r
}

// Register installs (or replaces) the pattern set for an agent kind.
func (r *PatternRegistry) Register(agent string, set PatternSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets[agent] = &set
}

// Lookup returns the pattern set for an agent kind, nil when none exists.
func (r *PatternRegistry) Lookup(agent string) *PatternSet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sets[agent]
}
