package executor

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTerminalInteractor_FreeFormAnswer(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	out := &bytes.Buffer{}
	ti := NewTerminalInteractor(strings.NewReader("the EU market\n"), out)

	// --- Act ---
	answer, err := ti.Prompt(context.Background(), "Which market?", nil)

	// --- Assert ---
	require.NoError(t, err)
	require.Equal(t, "the EU market", answer)
	require.Contains(t, out.String(), "Which market?")
}

func TestTerminalInteractor_NumberedOptionSelection(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	ti := NewTerminalInteractor(strings.NewReader("2\n"), out)

	answer, err := ti.Prompt(context.Background(), "Pick one", []string{"EU", "US"})

	require.NoError(t, err)
	require.Equal(t, "US", answer)
	require.Contains(t, out.String(), "1. EU")
	require.Contains(t, out.String(), "2. US")
}

func TestTerminalInteractor_EmptyAnswerTakesDefault(t *testing.T) {
	t.Parallel()

	ti := NewTerminalInteractor(strings.NewReader("\n"), &bytes.Buffer{})

	answer, err := ti.Prompt(context.Background(), "Pick one", []string{"EU", "US"})

	require.NoError(t, err)
	require.Equal(t, "EU", answer)
}

func TestTerminalInteractor_RejectsOutOfRangeOption(t *testing.T) {
	t.Parallel()

	ti := NewTerminalInteractor(strings.NewReader("7\n"), &bytes.Buffer{})

	_, err := ti.Prompt(context.Background(), "Pick one", []string{"EU", "US"})

	require.ErrorContains(t, err, "invalid option")
}

func TestStaticInteractor_PrefersConfiguredAnswer(t *testing.T) {
	t.Parallel()

	s := &StaticInteractor{Answer: "US"}
	answer, err := s.Prompt(context.Background(), "Pick one", []string{"EU", "US"})
	require.NoError(t, err)
	require.Equal(t, "US", answer)

	empty := &StaticInteractor{}
	answer, err = empty.Prompt(context.Background(), "Pick one", []string{"EU", "US"})
	require.NoError(t, err)
	require.Equal(t, "EU", answer)
}
