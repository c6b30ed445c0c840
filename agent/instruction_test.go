package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstruction_Static(t *testing.T) {
	ins := NewInstructionFromText("You are a calculator.")
	assert.True(t, ins.IsStatic())
	assert.Equal(t, "You are a calculator.", ins.Text())

	text, err := ins.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "You are a calculator.", text)
}

func TestInstruction_Provider(t *testing.T) {
	ins := NewInstructionFromFunc(func(context.Context) (string, error) { return "dynamic", nil })
	assert.False(t, ins.IsStatic())

	text, err := ins.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dynamic", text)

	failing := NewInstructionFromProvider(Func(func(context.Context) (string, error) { return "", errors.New("no role") }))
	_, err = failing.Resolve(context.Background())
	assert.Error(t, err)
}
