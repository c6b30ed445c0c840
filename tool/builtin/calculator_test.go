package builtin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"15 + 27", 42},
		{"(2 + 3) * 4", 20},
		{"-3 + 1", -2},
		{"7 / 2", 3.5},
		{"10 % 4", 2},
		{"2^10", 1024},
		{"2**3", 8},
		{"sqrt(16) + abs(-2)", 6},
		{"max(1, 5, 3)", 5},
		{"1_000 * 2", 2000},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Evaluate(tt.expr)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestEvaluate_Errors(t *testing.T) {
	for _, expr := range []string{"", "1 / 0", "os.Exit(1)", "foo(2)", `"text"`, "x + 1", "1 +"} {
		_, err := Evaluate(expr)
		assert.Error(t, err, expr)
	}
}

func TestSafeCalculator_Call(t *testing.T) {
	calc := NewSafeCalculator()
	assert.Equal(t, SafeCalculatorName, calc.Name())

	out, err := calc.Call(context.Background(), "15 + 27")
	require.NoError(t, err)
	assert.Equal(t, "42", out)

	out, err = calc.Call(context.Background(), `{"expression": "1.5 * 3"}`)
	require.NoError(t, err)
	assert.Equal(t, "4.5", out)

	_, err = calc.Call(context.Background(), "1/0")
	assert.Error(t, err)
}

func TestEvaluate_Precedence(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"1 + 2^3", 9},
		{"sqrt(16) * 2^3", 32},
		{"2^3^2", 512},
		{"-2^2", -4},
		{"2 * -3", -6},
		{"pi * 0", 0},
	}

	for _, tt := range tests {
		got, err := Evaluate(tt.expr)
		require.NoError(t, err, tt.expr)
		assert.InDelta(t, tt.want, got, 1e-9, tt.expr)
	}
}
