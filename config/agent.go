package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/reactmesh/agent"
	"github.com/hupe1980/reactmesh/model"
	"github.com/hupe1980/reactmesh/protocol"
	"github.com/hupe1980/reactmesh/tool"
)

// AgentConfig is a portable description of an agent: its prompt, budget and
// the names of the tools it uses. Tools themselves are not serialized; Build
// looks them up again by name.
type AgentConfig struct {
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	MaxSteps    int         `json:"max_steps,omitempty" yaml:"max_steps,omitempty"`
	Stateless   *bool       `json:"stateless,omitempty" yaml:"stateless,omitempty"`
	Tools       []string    `json:"tools,omitempty" yaml:"tools,omitempty"`
	Model       ModelConfig `json:"model,omitempty" yaml:"model,omitempty"`
	Prompt      Prompt      `json:"prompt" yaml:"prompt"`
	Metadata    Metadata    `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// ModelConfig records which backend the agent was exported with.
type ModelConfig struct {
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`
}

// Prompt holds the caller-controlled parts of the system prompt. The
// action format block is not part of it and is always added on Build.
type Prompt struct {
	RoleDefinition     string   `json:"role_definition,omitempty" yaml:"role_definition,omitempty"`
	FormatInstructions []string `json:"format_instructions,omitempty" yaml:"format_instructions,omitempty"`
	Examples           []string `json:"examples,omitempty" yaml:"examples,omitempty"`
}

// Metadata describes where a config came from.
type Metadata struct {
	// Optimized marks prompts tuned by an external process.
	Optimized  bool      `json:"optimized,omitempty" yaml:"optimized,omitempty"`
	ExportedAt time.Time `json:"exported_at,omitempty" yaml:"exported_at,omitempty"`
	Source     string    `json:"source,omitempty" yaml:"source,omitempty"`
}

// IsStateless reports the configured mode; configs without the field are stateless.
func (c *AgentConfig) IsStateless() bool {
	return c.Stateless == nil || *c.Stateless
}

type promptSource interface {
	PromptBuilder() protocol.PromptBuilder
}

type resolverSource interface {
	Resolver() tool.Resolver
}

// Export captures a into an AgentConfig. The agent's planner must expose its
// prompt (ReActPlanner and ManagerPlanner do). A zero ExportedAt is set to now.
func Export(a *agent.Agent, meta Metadata) (*AgentConfig, error) {
	if a == nil {
		return nil, errors.New("cannot export a nil agent")
	}

	ps, ok := a.Planner().(promptSource)
	if !ok {
		return nil, fmt.Errorf("agent %s: planner %T does not expose its prompt", a.Name(), a.Planner())
	}

	b := ps.PromptBuilder()

	if meta.ExportedAt.IsZero() {
		meta.ExportedAt = time.Now().UTC()
	}

	stateless := a.Stateless()

	cfg := &AgentConfig{
		Name:        a.Name(),
		Description: a.Description(),
		MaxSteps:    a.MaxSteps(),
		Stateless:   &stateless,
		Prompt: Prompt{
			RoleDefinition:     b.RoleDefinition,
			FormatInstructions: b.FormatInstructions,
			Examples:           b.Examples,
		},
		Metadata: meta,
	}

	if m := a.Model(); m != nil {
		info := m.Info()
		cfg.Model = ModelConfig{Name: info.Name, Provider: info.Provider}
	}

	if rs, ok := a.Executor().(resolverSource); ok && rs.Resolver() != nil {
		cfg.Tools = rs.Resolver().Names()
	}

	return cfg, nil
}

// Build creates an agent from cfg. Listed tools are looked up in resolver
// and the agent only sees those; a config without tools sees everything
// resolver offers. Missing tools are reported together.
func Build(cfg *AgentConfig, llm model.Model, resolver tool.Resolver, optFns ...func(o *agent.Options)) (*agent.Agent, error) {
	if cfg == nil {
		return nil, errors.New("nil agent config")
	}

	if llm == nil {
		return nil, fmt.Errorf("agent %s: no model given", cfg.Name)
	}

	scope, err := scopeTools(cfg, resolver)
	if err != nil {
		return nil, err
	}

	planner := agent.NewReActPlanner(llm, scope, func(o *agent.ReActPlannerOptions) {
		if cfg.Prompt.RoleDefinition != "" {
			o.Role = agent.NewInstructionFromText(cfg.Prompt.RoleDefinition)
		}

		o.FormatInstructions = cfg.Prompt.FormatInstructions
		o.Examples = cfg.Prompt.Examples
	})

	var executor agent.Invoker
	if scope != nil {
		executor = tool.NewExecutor(scope)
	}

	fns := append([]func(o *agent.Options){func(o *agent.Options) {
		if cfg.Name != "" {
			o.Name = cfg.Name
		}

		o.Description = cfg.Description
		o.MaxSteps = cfg.MaxSteps
		o.Stateless = cfg.IsStateless()
	}}, optFns...)

	return agent.New(llm, planner, executor, fns...), nil
}

func scopeTools(cfg *AgentConfig, resolver tool.Resolver) (tool.Resolver, error) {
	if len(cfg.Tools) == 0 {
		return resolver, nil
	}

	if resolver == nil {
		return nil, fmt.Errorf("agent %s: %d tools configured but no resolver given", cfg.Name, len(cfg.Tools))
	}

	var (
		tools []tool.Tool
		errs  []error
	)

	for _, name := range cfg.Tools {
		t, err := resolver.Resolve(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		tools = append(tools, t)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("agent %s: %w", cfg.Name, err)
	}

	return tool.NewRegistry(tools...)
}

// Save writes cfg to path.
func Save(path string, cfg *AgentConfig) error {
	return writeFile(path, cfg)
}

// Load reads an agent config from path.
func Load(path string) (*AgentConfig, error) {
	var cfg AgentConfig
	if err := readFile(path, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
