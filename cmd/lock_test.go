package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/bookenrich/internal/ledger"
)

func lockForTest(t *testing.T, path string) func() {
	t.Helper()
	unlock, err := ledger.Lock(path)
	require.NoError(t, err)
	return func() { _ = unlock() }
}
