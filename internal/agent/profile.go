package agent

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile tunes one agent kind.
type Profile struct {
	// Model overrides the default model name for this kind.
	Model string `yaml:"model"`
	// PromptFile names the system prompt template, relative to the prompt
	// directory.
	PromptFile string `yaml:"prompt_file"`
	// MaxIterations caps the self-call loop for this kind; zero means the
	// engine default.
	MaxIterations int `yaml:"max_iterations"`
	// Interactive marks kinds whose clarification requests are honored.
	Interactive bool `yaml:"interactive"`
	// IncludeGlobals sends the full variable snapshot with every
	// invocation, for kinds that synthesize across the whole run.
	IncludeGlobals bool `yaml:"include_globals"`
	// OutputPatterns seeds the name-pattern extraction fallback for this
	// kind. Templates expand {key} and {step}.
	OutputPatterns []string `yaml:"output_patterns"`
	// OutputKeyHints seeds the substring fallback of name-pattern
	// extraction.
	OutputKeyHints []string `yaml:"output_key_hints"`
}

// Profiles is the agent configuration document.
type Profiles struct {
	Agents map[string]Profile `yaml:"agents"`
}

// DefaultProfiles returns the built-in configuration used when no profile
// file is given.
func DefaultProfiles() *Profiles {
	return &Profiles{Agents: map[string]Profile{
		"FormatterAgent": {
			PromptFile:     "formatter_prompt.txt",
			IncludeGlobals: true,
		},
		"ClarificationAgent": {
			PromptFile:  "clarification_prompt.txt",
			Interactive: true,
		},
	}}
}

// LoadProfiles reads an agent configuration file.
func LoadProfiles(path string) (*Profiles, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("agent: reading profiles: %w", err)
	}
	var p Profiles
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("agent: parsing profiles %q: %w", path, err)
	}
	if p.Agents == nil {
		p.Agents = make(map[string]Profile)
	}
	return &p, nil
}

// Get returns the profile for an agent kind. Unknown kinds get a zero
// profile, so every accessor falls back to engine defaults.
func (p *Profiles) Get(agent string) (Profile, bool) {
	if p == nil {
		return Profile{}, false
	}
	prof, ok := p.Agents[agent]
	return prof, ok
}
