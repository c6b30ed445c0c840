package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Flags(t *testing.T) {
	cmd := newRootCmd()

	for _, name := range []string{"root", "max-lines", "transport", "addr", "log-level", "log-format"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}

	maxLines, err := cmd.Flags().GetInt("max-lines")
	require.NoError(t, err)
	assert.Equal(t, 100, maxLines)
}

func TestRootCmd_InvalidRoot(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--root", filepath.Join(t.TempDir(), "missing")})

	err := cmd.Execute()
	assert.Error(t, err)
}

func TestRootCmd_UnknownTransport(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{t.TempDir(), "--transport", "carrier-pigeon"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transport")
}

func TestRootCmd_TooManyArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"a", "b"})

	assert.Error(t, cmd.Execute())
}
