package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMainRunsCLI(t *testing.T) {
	calls := 0
	orig := execute
	execute = func() { calls++ }
	t.Cleanup(func() { execute = orig })

	main()

	require.Equal(t, 1, calls)
}
