package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/vk/stepgrid/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config, a
// boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("stepgrid", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Custom usage/help text function
	flagSet.Usage = func() {
		fmt.Fprint(output, `
Stepgrid - A DAG-driven multi-agent session engine.

Usage:
  stepgrid [options] [PLAN_PATH]

Arguments:
  PLAN_PATH
    Path to a .json or .hcl plan file, or a directory holding one.

Options:
`)
		flagSet.PrintDefaults()
	}

	planFlag := flagSet.String("plan", "", "Path to the plan file or directory.")
	pFlag := flagSet.String("p", "", "Path to the plan file or directory (shorthand).")
	resumeFlag := flagSet.String("resume", "", "Session id to restore instead of loading a plan.")
	listFlag := flagSet.Bool("list-sessions", false, "Print stored session ids and exit.")
	queryFlag := flagSet.String("query", "", "Overrides the plan's original query.")
	sessionDirFlag := flagSet.String("session-dir", "sessions", "Directory for session snapshot files.")
	postgresFlag := flagSet.String("postgres", "", "Postgres connection string for snapshots. Defaults to $DATABASE_URL.")
	agentsFlag := flagSet.String("agents", "", "Path to the agent profiles YAML file.")
	promptsFlag := flagSet.String("prompts", "prompts", "Directory holding agent prompt templates.")
	reportsFlag := flagSet.String("reports", "", "Directory for rendered formatter reports. Empty disables.")
	httpPortFlag := flagSet.Int("http-port", 0, "Port for the read-only inspection server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	maxRoundsFlag := flagSet.Int("max-rounds", 0, "Cap on scheduler rounds. 0 uses the default.")
	maxIterFlag := flagSet.Int("max-iterations", 0, "Cap on per-step self-call iterations. 0 uses the default.")
	nonInteractiveFlag := flagSet.Bool("non-interactive", false, "Answer clarification requests automatically instead of prompting.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *planFlag != "" {
		path = *planFlag
	} else if *pFlag != "" {
		path = *pFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Plan path determined.", "path", path)

	if path == "" && *resumeFlag == "" && !*listFlag {
		slog.Debug("No plan path or session provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	postgresURL := *postgresFlag
	if postgresURL == "" {
		postgresURL = os.Getenv("DATABASE_URL")
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		PlanPath:       path,
		ResumeSession:  *resumeFlag,
		ListSessions:   *listFlag,
		Query:          *queryFlag,
		SessionDir:     *sessionDirFlag,
		PostgresURL:    postgresURL,
		AgentsPath:     *agentsFlag,
		PromptDir:      *promptsFlag,
		ReportDir:      *reportsFlag,
		HTTPPort:       *httpPortFlag,
		LogFormat:      logFormat,
		LogLevel:       logLevel,
		MaxRounds:      *maxRoundsFlag,
		MaxIterations:  *maxIterFlag,
		NonInteractive: *nonInteractiveFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.")
	return config, false, nil
}
