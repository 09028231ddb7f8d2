package agent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseModelJSON_PrefersFencedBlock(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	text := "Here is the result you asked for:\n```json\n{\"answer\": 42, \"call_self\": false}\n```\nLet me know if you need more."

	// --- Act ---
	out, err := ParseModelJSON(text)

	// --- Assert ---
	require.NoError(t, err)
	require.Equal(t, 42.0, out["answer"])
	require.Equal(t, false, out["call_self"])
}

func TestParseModelJSON_FallsBackToBraceSpan(t *testing.T) {
	t.Parallel()

	text := `The payload is {"status": "ok", "items": ["a"]} as requested.`

	out, err := ParseModelJSON(text)

	require.NoError(t, err)
	require.Equal(t, "ok", out["status"])
	require.Equal(t, []any{"a"}, out["items"])
}

func TestParseModelJSON_BareFenceWithoutLanguageTag(t *testing.T) {
	t.Parallel()

	text := "```\n{\"k\": \"v\"}\n```"

	out, err := ParseModelJSON(text)

	require.NoError(t, err)
	require.Equal(t, "v", out["k"])
}

func TestParseModelJSON_NoJSONAnywhere(t *testing.T) {
	t.Parallel()

	_, err := ParseModelJSON("I could not produce a structured answer.")
	require.ErrorIs(t, err, ErrNoJSON)
}

func TestParseModelJSON_MalformedJSON(t *testing.T) {
	t.Parallel()

	_, err := ParseModelJSON("```json\n{\"broken\": \n```")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNoJSON)
}
