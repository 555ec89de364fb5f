package param

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnvFetcher(t *testing.T) {
	t.Setenv("IMAGEGEN_TEST_KEY", "secret")
	t.Setenv("IMAGEGEN_TEST_LIST", "a|b|c")
	t.Setenv("IMAGEGEN_TEST_EMPTY", "")

	var f Fetcher = EnvFetcher{}
	ctx := context.Background()

	v, err := f.Fetch(ctx, "IMAGEGEN_TEST_KEY")
	require.NoError(t, err)
	require.Equal(t, "secret", v)

	all, err := f.FetchAll(ctx, "IMAGEGEN_TEST_LIST")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, all)

	_, err = f.Fetch(ctx, "IMAGEGEN_TEST_EMPTY")
	require.Error(t, err)
	all, err = f.FetchAll(ctx, "IMAGEGEN_TEST_MISSING_ENTIRELY")
	require.NoError(t, err)
	require.Empty(t, all)
}
