package prompt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRandomizerDefaults(t *testing.T) {
	r := NewRandomizerFrom(nil, 1)
	for range 20 {
		require.Contains(t, defaultSamples, r.Randomize(context.Background()))
	}
}

func TestRandomizerCustom(t *testing.T) {
	r := NewRandomizerFrom([]string{" a lighthouse at dusk ", "", "  "}, 7)
	require.Equal(t, "a lighthouse at dusk", r.Randomize(context.Background()))
}
