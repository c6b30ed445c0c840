package tool

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool(name string) Tool {
	return NewTextTool(name, "echoes its input", func(_ context.Context, input string) (string, error) {
		return name + ":" + input, nil
	})
}

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	sumTool := NewFunctionTool("sum", "Add numbers", params, func(_ context.Context, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})

	result, err := sumTool.Call(context.Background(), `{"a": 2, "b": 3}`)
	require.NoError(t, err)
	assert.Equal(t, "5", result)
}

func TestFunctionTool_PlainTextBindsPrimaryField(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":      map[string]any{"type": "string"},
			"max_lines": map[string]any{"type": "number"},
		},
		"required": []any{"path"},
	}

	var got map[string]any
	readTool := NewFunctionTool("read_file", "Read", params, func(_ context.Context, args map[string]any) (any, error) {
		got = args
		return "ok", nil
	})

	_, err := readTool.Call(context.Background(), ` "README.md" `)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"path": "README.md"}, got)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
		},
		"required": []any{"a"},
	}
	tTool := NewFunctionTool("test", "Test", params, func(_ context.Context, _ map[string]any) (any, error) {
		return 0, nil
	})

	_, err := tTool.Call(context.Background(), "not a number")

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	execTool := NewFunctionTool("fail", "Fails", params, func(_ context.Context, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	_, err := execTool.Call(context.Background(), "")

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Equal(t, "boom", toolErr.Message)
}

func TestFunctionTool_ForwardsToolError(t *testing.T) {
	custom := NewToolError("quota", "limit reached", "RATE_LIMIT")
	qTool := NewFunctionTool("quota", "Quota", nil, func(_ context.Context, _ map[string]any) (any, error) {
		return nil, custom
	})

	_, err := qTool.Call(context.Background(), "x")
	assert.Same(t, custom, err)
}

// -------------------- Argument translation --------------------

func TestArgumentsFromInput(t *testing.T) {
	tests := []struct {
		name   string
		schema map[string]any
		input  string
		want   map[string]any
		err    bool
	}{
		{
			name:   "json object passes through",
			schema: map[string]any{"properties": map[string]any{"q": map[string]any{"type": "string"}}},
			input:  `{"q": "golang", "count": 3}`,
			want:   map[string]any{"q": "golang", "count": float64(3)},
		},
		{
			name:   "no properties wraps input",
			schema: nil,
			input:  "hello",
			want:   map[string]any{"input": "hello"},
		},
		{
			name:   "no properties empty input",
			schema: map[string]any{"type": "object"},
			input:  "  ",
			want:   map[string]any{},
		},
		{
			name: "integer coercion",
			schema: map[string]any{
				"properties": map[string]any{"n": map[string]any{"type": "integer"}},
				"required":   []string{"n"},
			},
			input: "42",
			want:  map[string]any{"n": int64(42)},
		},
		{
			name: "integer coercion failure",
			schema: map[string]any{
				"properties": map[string]any{"n": map[string]any{"type": "integer"}},
			},
			input: "forty",
			err:   true,
		},
		{
			name: "optional properties prefer string",
			schema: map[string]any{
				"properties": map[string]any{
					"limit": map[string]any{"type": "integer"},
					"query": map[string]any{"type": "string"},
				},
			},
			input: "'weather in Paris'",
			want:  map[string]any{"query": "weather in Paris"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ArgumentsFromInput(tt.schema, tt.input)
			if tt.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatResult(t *testing.T) {
	assert.Equal(t, "42", FormatResult(42.0))
	assert.Equal(t, "0.5", FormatResult(0.5))
	assert.Equal(t, "true", FormatResult(true))
	assert.Equal(t, `{"a":1}`, FormatResult(map[string]int{"a": 1}))
	assert.Equal(t, "", FormatResult(nil))
}

// -------------------- Registry --------------------

func TestRegistry_RegisterResolve(t *testing.T) {
	r, err := NewRegistry(echoTool("a"), echoTool("b"))
	require.NoError(t, err)

	got, err := r.Resolve("b")
	require.NoError(t, err)
	assert.Equal(t, "b", got.Name())

	_, err = r.Resolve("missing")
	assert.ErrorIs(t, err, ErrToolNotFound)

	err = r.Register(echoTool("a"))
	assert.ErrorIs(t, err, ErrDuplicateTool)

	assert.Equal(t, []string{"a", "b"}, r.Names())
	assert.Len(t, r.Tools(), 2)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_RejectsEmptyName(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)
	assert.Error(t, r.Register(echoTool("")))
	assert.Error(t, r.Register(nil))
}

func TestOrdered(t *testing.T) {
	r, err := NewRegistry(echoTool("z"), echoTool("a"))
	require.NoError(t, err)

	tools := Ordered(r)
	require.Len(t, tools, 2)
	assert.Equal(t, "z", tools[0].Name())
	assert.Equal(t, "a", tools[1].Name())
}

// -------------------- Composite --------------------

func TestComposite_UnionWithoutCollisions(t *testing.T) {
	local, err := NewRegistry(echoTool("local_a"), echoTool("local_b"))
	require.NoError(t, err)
	remote, err := NewRegistry(echoTool("fs_filesystem_read_file"))
	require.NoError(t, err)

	c := NewComposite([]Resolver{local, remote})

	assert.Equal(t, []string{"local_a", "local_b", "fs_filesystem_read_file"}, c.Names())
	assert.Empty(t, c.Collisions())

	for _, name := range c.Names() {
		got, err := c.Resolve(name)
		require.NoError(t, err)
		out, err := got.Call(context.Background(), "x")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(out, name+":"), "routed to originating member")
	}
}

func TestComposite_FirstMemberWins(t *testing.T) {
	first, err := NewRegistry(NewTextTool("dup", "first", func(context.Context, string) (string, error) { return "first", nil }))
	require.NoError(t, err)
	second, err := NewRegistry(NewTextTool("dup", "second", func(context.Context, string) (string, error) { return "second", nil }))
	require.NoError(t, err)

	c := NewComposite([]Resolver{first, second})

	got, err := c.Resolve("dup")
	require.NoError(t, err)
	assert.Equal(t, "first", got.Description())
	assert.Equal(t, "first", c.Tools()["dup"].Description())
	assert.Equal(t, []string{"dup"}, c.Names())
	assert.Equal(t, []string{"dup"}, c.Collisions())

	_, err = c.Resolve("nope")
	assert.ErrorIs(t, err, ErrToolNotFound)
}

// -------------------- Executor --------------------

func TestExecutor_Success(t *testing.T) {
	r, err := NewRegistry(echoTool("echo"))
	require.NoError(t, err)

	obs := NewExecutor(r).Invoke(context.Background(), " echo ", "hi")
	assert.Equal(t, "echo:hi", obs)
}

func TestExecutor_UnknownToolListsAvailable(t *testing.T) {
	r, err := NewRegistry(echoTool("a"), echoTool("b"))
	require.NoError(t, err)

	obs := NewExecutor(r).Invoke(context.Background(), "c", "")
	assert.Equal(t, "Error: tool 'c' not found. Available tools: a, b", obs)

	quiet := NewExecutor(r, func(o *ExecutorOptions) { o.ListAvailable = false })
	assert.Equal(t, "Error: tool 'c' not found.", quiet.Invoke(context.Background(), "c", ""))
}

func TestExecutor_ToolErrorBecomesObservation(t *testing.T) {
	failing := NewTextTool("fail", "fails", func(context.Context, string) (string, error) {
		return "", errors.New("connection reset")
	})
	r, err := NewRegistry(failing)
	require.NoError(t, err)

	obs := NewExecutor(r).Invoke(context.Background(), "fail", "x")
	assert.Equal(t, "Error executing tool 'fail': connection reset", obs)
}

func TestExecutor_RecoversPanic(t *testing.T) {
	panicky := NewTextTool("panicky", "panics", func(context.Context, string) (string, error) {
		panic("kaboom")
	})
	r, err := NewRegistry(panicky)
	require.NoError(t, err)

	var obs string
	assert.NotPanics(t, func() {
		obs = NewExecutor(r).Invoke(context.Background(), "panicky", "")
	})
	assert.Contains(t, obs, "panic: kaboom")
}

func TestExecutor_EmptyOutput(t *testing.T) {
	silent := NewTextTool("silent", "", func(context.Context, string) (string, error) { return " ", nil })
	r, err := NewRegistry(silent)
	require.NoError(t, err)

	assert.Equal(t, "Tool 'silent' returned no output.", NewExecutor(r).Invoke(context.Background(), "silent", ""))
}

func TestExecutor_NilResolver(t *testing.T) {
	obs := NewExecutor(nil).Invoke(context.Background(), "x", "")
	assert.Contains(t, obs, "not found")
}
