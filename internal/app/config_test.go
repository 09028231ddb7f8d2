package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewConfig_RequiresPlanOrResume(t *testing.T) {
	t.Parallel()

	_, err := NewConfig(Config{})
	require.Error(t, err)
}

func TestNewConfig_PlanAndResumeAreExclusive(t *testing.T) {
	t.Parallel()

	_, err := NewConfig(Config{PlanPath: "p.json", ResumeSession: "sess-1"})
	require.ErrorContains(t, err, "mutually exclusive")
}

func TestNewConfig_DefaultsSessionDir(t *testing.T) {
	t.Parallel()

	cfg, err := NewConfig(Config{PlanPath: "p.json"})
	require.NoError(t, err)
	require.Equal(t, "sessions", cfg.SessionDir)
}
