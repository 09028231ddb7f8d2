package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	PlanPath      string // JSON or HCL plan file, or a directory holding one
	ResumeSession string // session id to restore instead of loading a plan
	ListSessions  bool   // print stored session ids and exit
	Query         string // overrides the plan's original query

	SessionDir  string // file-store root for session snapshots
	PostgresURL string // when set, snapshots go to Postgres instead
	AgentsPath  string // agent profiles YAML; built-ins when empty
	PromptDir   string // prompt template directory
	ReportDir   string // formatter report output; empty disables

	HTTPPort  int // inspection server port, 0 is disabled
	LogFormat string
	LogLevel  string

	MaxRounds      int
	MaxIterations  int
	NonInteractive bool
}

// NewConfig validates a Config and applies defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.PlanPath == "" && cfg.ResumeSession == "" && !cfg.ListSessions {
		return nil, errors.New("either a plan path or a session to resume is required")
	}
	if cfg.PlanPath != "" && cfg.ResumeSession != "" {
		return nil, errors.New("a plan path and a session to resume are mutually exclusive")
	}
	if cfg.SessionDir == "" {
		cfg.SessionDir = "sessions"
	}
	return &cfg, nil
}
