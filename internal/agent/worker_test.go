package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type staticWorker struct{ out Output }

func (w *staticWorker) Invoke(ctx context.Context, inv Invocation) (Output, error) {
	return w.out, nil
}

func TestRegistry_LookupPrefersExplicitRegistration(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	r := NewRegistry()
	explicit := &staticWorker{out: Output{"who": "explicit"}}
	fallback := &staticWorker{out: Output{"who": "fallback"}}
	r.Register("CoderAgent", explicit)
	r.RegisterFallback(fallback)

	// --- Act / Assert ---
	w, err := r.Lookup("CoderAgent")
	require.NoError(t, err)
	require.Same(t, explicit, w.(*staticWorker))

	w, err = r.Lookup("RetrieverAgent")
	require.NoError(t, err)
	require.Same(t, fallback, w.(*staticWorker))
}

func TestRegistry_LookupWithoutFallbackFails(t *testing.T) {
	t.Parallel()

	r := NewRegistry()

	_, err := r.Lookup("GhostAgent")
	require.ErrorIs(t, err, ErrUnknownAgent)
}
