package config

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/reactmesh/agent"
	"github.com/hupe1980/reactmesh/internal/testutil"
	"github.com/hupe1980/reactmesh/memory"
	"github.com/hupe1980/reactmesh/protocol"
	"github.com/hupe1980/reactmesh/tool"
	"github.com/hupe1980/reactmesh/tool/builtin"
)

func echoTool() tool.Tool {
	return tool.NewTextTool("echo", "Repeats the input.", func(_ context.Context, input string) (string, error) {
		return input, nil
	})
}

func newToolbox(t *testing.T) *tool.Registry {
	t.Helper()

	reg, err := tool.NewRegistry(builtin.NewSafeCalculator(), echoTool())
	require.NoError(t, err)

	return reg
}

func TestExport(t *testing.T) {
	reg := newToolbox(t)
	llm := testutil.NewScriptedModel().Named("gpt-test")

	planner := agent.NewReActPlanner(llm, reg, func(o *agent.ReActPlannerOptions) {
		o.Role = agent.NewInstructionFromText("You are a careful accountant.")
		o.FormatInstructions = []string{"Always show the formula."}
		o.Examples = []string{"Question: 1+1\nThought: add\nFinal Answer: 2"}
	})

	a := agent.New(llm, planner, tool.NewExecutor(reg), func(o *agent.Options) {
		o.Name = "accountant"
		o.Description = "Does sums."
		o.MaxSteps = 4
		o.Stateless = false
	})

	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	cfg, err := Export(a, Metadata{Optimized: true, ExportedAt: at, Source: "unit"})
	require.NoError(t, err)

	assert.Equal(t, "accountant", cfg.Name)
	assert.Equal(t, "Does sums.", cfg.Description)
	assert.Equal(t, 4, cfg.MaxSteps)
	assert.False(t, cfg.IsStateless())
	assert.Equal(t, []string{"safe_calculator", "echo"}, cfg.Tools)
	assert.Equal(t, ModelConfig{Name: "gpt-test", Provider: "scripted"}, cfg.Model)
	assert.Equal(t, "You are a careful accountant.", cfg.Prompt.RoleDefinition)
	assert.Equal(t, []string{"Always show the formula."}, cfg.Prompt.FormatInstructions)
	assert.Len(t, cfg.Prompt.Examples, 1)
	assert.Equal(t, Metadata{Optimized: true, ExportedAt: at, Source: "unit"}, cfg.Metadata)
}

type staticPlanner struct{}

func (staticPlanner) Plan(context.Context, string, []memory.Entry) (protocol.Step, error) {
	return protocol.Step{Final: true, FinalAnswer: "done"}, nil
}

func TestExport_Errors(t *testing.T) {
	_, err := Export(nil, Metadata{})
	assert.Error(t, err)

	a := agent.New(testutil.NewScriptedModel(), staticPlanner{}, nil)
	_, err = Export(a, Metadata{})
	assert.ErrorContains(t, err, "does not expose its prompt")
}

func TestExport_StampsTime(t *testing.T) {
	llm := testutil.NewScriptedModel()
	a := agent.New(llm, agent.NewReActPlanner(llm, nil), nil)

	cfg, err := Export(a, Metadata{})
	require.NoError(t, err)

	assert.False(t, cfg.Metadata.ExportedAt.IsZero())
	assert.Empty(t, cfg.Tools)
	assert.True(t, cfg.IsStateless())
}

func TestBuild(t *testing.T) {
	reg := newToolbox(t)

	cfg := &AgentConfig{
		Name:     "calc",
		MaxSteps: 3,
		Tools:    []string{"safe_calculator"},
		Prompt: Prompt{
			RoleDefinition:     "You only do arithmetic.",
			FormatInstructions: []string{"Answer with a number."},
		},
	}

	llm := testutil.NewScriptedModel(
		"Thought: compute\ntool_name: safe_calculator\ntool_input: 6 * 7",
		"Thought: got it\nFinal Answer: 42",
	)

	a, err := Build(cfg, llm, reg)
	require.NoError(t, err)

	assert.Equal(t, "calc", a.Name())
	assert.Equal(t, 3, a.MaxSteps())
	assert.True(t, a.Stateless())

	answer, err := a.Run(context.Background(), "What is 6 * 7?")
	require.NoError(t, err)
	assert.Equal(t, "42", answer)

	system := llm.Requests()[0].Instructions
	assert.True(t, strings.HasPrefix(system, "You only do arithmetic."))
	assert.Contains(t, system, "Answer with a number.")
	assert.Contains(t, system, "safe_calculator")
	assert.NotContains(t, system, "echo")
}

func TestBuild_MissingTools(t *testing.T) {
	reg := newToolbox(t)

	cfg := &AgentConfig{Name: "x", Tools: []string{"echo", "web_search", "translate"}}

	_, err := Build(cfg, testutil.NewScriptedModel(), reg)
	require.Error(t, err)
	assert.ErrorIs(t, err, tool.ErrToolNotFound)
	assert.ErrorContains(t, err, "web_search")
	assert.ErrorContains(t, err, "translate")

	_, err = Build(cfg, testutil.NewScriptedModel(), nil)
	assert.ErrorContains(t, err, "no resolver")

	_, err = Build(cfg, nil, reg)
	assert.ErrorContains(t, err, "no model")
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	stateful := false

	cfg := &AgentConfig{
		Name:      "researcher",
		MaxSteps:  8,
		Stateless: &stateful,
		Tools:     []string{"fs_files_read_file"},
		Model:     ModelConfig{Name: "claude", Provider: "anthropic"},
		Prompt:    Prompt{RoleDefinition: "You research.", Examples: []string{"Question: q\nFinal Answer: a"}},
		Metadata:  Metadata{Source: "export", ExportedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
	}

	for _, name := range []string{"agent.yaml", "agent.yml", "agent.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)

			require.NoError(t, Save(path, cfg))

			got, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, got)
		})
	}
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "a.yaml")
	writeText(t, yamlPath, "name: a\nmax_stpes: 3\n")

	_, err := Load(yamlPath)
	assert.ErrorContains(t, err, "max_stpes")

	jsonPath := filepath.Join(dir, "a.json")
	writeText(t, jsonPath, `{"name":"a","tolls":[]}`)

	_, err = Load(jsonPath)
	assert.ErrorContains(t, err, "tolls")

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
