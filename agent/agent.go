package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/reactmesh/internal/util"
	"github.com/hupe1980/reactmesh/logging"
	"github.com/hupe1980/reactmesh/memory"
	"github.com/hupe1980/reactmesh/model"
	"github.com/hupe1980/reactmesh/protocol"
)

// DefaultMaxSteps is the step budget when none is configured.
const DefaultMaxSteps = 10

// Invoker turns a tool call into an observation. *tool.Executor implements it.
type Invoker interface {
	Invoke(ctx context.Context, name, input string) string
}

// Options configures an Agent.
type Options struct {
	Name        string
	Description string

	// MaxSteps bounds plan/act/observe cycles per run.
	MaxSteps int

	// Stateless resets memory at the start of every run. When false the
	// transcript carries over and each run appends a new instruction.
	Stateless bool

	Memory memory.Memory
	Logger logging.Logger
}

// Agent drives a planner and an invoker through the step state machine.
//
// Runs on one Agent are serialized; use separate agents for concurrency.
type Agent struct {
	llm      model.Model
	planner  Planner
	executor Invoker
	opts     Options

	mu sync.Mutex
}

// New creates an agent. llm is kept for introspection and export; the
// planner is what talks to it.
func New(llm model.Model, planner Planner, executor Invoker, optFns ...func(o *Options)) *Agent {
	opts := Options{
		Name:      "agent",
		MaxSteps:  DefaultMaxSteps,
		Stateless: true,
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}

	if opts.Memory == nil {
		opts.Memory = memory.NewWorkingMemory()
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Agent{llm: llm, planner: planner, executor: executor, opts: opts}
}

// RunOptions overrides agent settings for a single run.
type RunOptions struct {
	// MaxSteps replaces the agent's budget when positive.
	MaxSteps int

	// Executor replaces the agent's invoker when non-nil.
	Executor Invoker
}

// Result describes a finished run.
type Result struct {
	// Answer is the final answer, or the fallback text on step-limit exit.
	Answer string

	// State is StateDone or StateStepLimitExceeded.
	State State

	// Steps is the number of completed plan cycles.
	Steps int

	RunID      string
	Transcript []memory.Entry
}

// Run executes instruction and returns the final answer or the step-limit
// fallback text. The error is non-nil only for failures the model cannot
// react to, such as a broken completion backend or a cancelled context.
func (a *Agent) Run(ctx context.Context, instruction string) (string, error) {
	res, err := a.Execute(ctx, instruction)
	if err != nil {
		return "", err
	}

	return res.Answer, nil
}

// Execute is Run with per-run overrides and a detailed result.
func (a *Agent) Execute(ctx context.Context, instruction string, optFns ...func(o *RunOptions)) (*Result, error) {
	ro := RunOptions{MaxSteps: a.opts.MaxSteps, Executor: a.executor}
	for _, fn := range optFns {
		fn(&ro)
	}

	if ro.MaxSteps <= 0 {
		ro.MaxSteps = a.opts.MaxSteps
	}

	if a.planner == nil {
		return nil, errors.New("agent: no planner configured")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	mem := a.opts.Memory
	if a.opts.Stateless {
		mem.Clear()
	}

	if err := mem.Append(memory.Instruction(instruction)); err != nil {
		return nil, fmt.Errorf("agent %s: %w", a.opts.Name, err)
	}

	r := &run{
		agent:       a,
		mem:         mem,
		executor:    ro.Executor,
		instruction: instruction,
		maxSteps:    ro.MaxSteps,
		id:          util.NewID(),
		state:       StateThinking,
	}

	return r.loop(ctx)
}

// run holds the state of one Execute call.
type run struct {
	agent       *Agent
	mem         memory.Memory
	executor    Invoker
	instruction string
	maxSteps    int
	id          string

	state       State
	steps       int
	step        protocol.Step
	observation string
	answer      string
}

type stepLogger interface {
	LogStep(agent string, step int, action string)
}

func (r *run) loop(ctx context.Context) (*Result, error) {
	log := r.agent.opts.Logger
	start := time.Now()

	for !r.state.Terminal() {
		switch r.state {
		case StateThinking:
			if r.steps >= r.maxSteps {
				r.state = StateStepLimitExceeded
				continue
			}

			if err := ctx.Err(); err != nil {
				return nil, err
			}

			if err := r.think(ctx); err != nil {
				log.Error("agent.failed", "agent", r.agent.opts.Name, "run_id", r.id, "step", r.steps, "error", err)
				return nil, err
			}

		case StateActing:
			r.act(ctx)

		case StateObserving:
			if err := r.mem.Append(memory.Observation(r.observation)); err != nil {
				return nil, fmt.Errorf("agent %s: %w", r.agent.opts.Name, err)
			}

			r.state = StateThinking
		}
	}

	if r.state == StateStepLimitExceeded {
		r.answer = r.fallback()
		log.Warn("agent.step_limit", "agent", r.agent.opts.Name, "run_id", r.id, "steps", r.steps, "duration", time.Since(start))
	} else {
		log.Info("agent.done", "agent", r.agent.opts.Name, "run_id", r.id, "steps", r.steps, "duration", time.Since(start))
	}

	return &Result{
		Answer:     r.answer,
		State:      r.state,
		Steps:      r.steps,
		RunID:      r.id,
		Transcript: r.mem.Entries(),
	}, nil
}

func (r *run) think(ctx context.Context) error {
	step, err := r.agent.planner.Plan(ctx, r.instruction, r.mem.Entries())
	r.steps++

	var perr *protocol.ParseError
	if errors.As(err, &perr) {
		r.logStep("parse_error")

		if aerr := r.mem.Append(memory.Unparsed(perr.Raw)); aerr != nil {
			return fmt.Errorf("agent %s: %w", r.agent.opts.Name, aerr)
		}

		r.observation = perr.Observation()
		r.state = StateObserving

		return nil
	}

	if err != nil {
		return fmt.Errorf("agent %s step %d: %w", r.agent.opts.Name, r.steps, err)
	}

	if aerr := r.mem.Append(memory.FromStep(step, "")); aerr != nil {
		return fmt.Errorf("agent %s: %w", r.agent.opts.Name, aerr)
	}

	if step.IsFinal() {
		r.logStep("final_answer")
		r.answer = step.FinalAnswer
		r.state = StateDone

		return nil
	}

	r.logStep(step.ToolName)
	r.step = step
	r.state = StateActing

	return nil
}

func (r *run) act(ctx context.Context) {
	if r.executor == nil {
		r.observation = fmt.Sprintf("Error: tool '%s' not found. No tools are available.", r.step.ToolName)
	} else {
		r.observation = r.executor.Invoke(ctx, r.step.ToolName, r.step.ToolInput)
	}

	r.state = StateObserving
}

func (r *run) logStep(action string) {
	if l, ok := r.agent.opts.Logger.(stepLogger); ok {
		l.LogStep(r.agent.opts.Name, r.steps, action)
		return
	}

	r.agent.opts.Logger.Debug("agent.step", "agent", r.agent.opts.Name, "step", r.steps, "action", action)
}

func (r *run) fallback() string {
	text := fmt.Sprintf("Agent stopped after %d steps without a final answer.", r.steps)

	if obs, ok := memory.LastObservation(r.mem.Entries()); ok {
		text += " Last observation: " + obs
	}

	return text
}

// Name returns the agent name.
func (a *Agent) Name() string { return a.opts.Name }

// Description returns the agent description.
func (a *Agent) Description() string { return a.opts.Description }

// MaxSteps returns the configured step budget.
func (a *Agent) MaxSteps() int { return a.opts.MaxSteps }

// Stateless reports whether memory is reset per run.
func (a *Agent) Stateless() bool { return a.opts.Stateless }

// Memory returns the agent's transcript store.
func (a *Agent) Memory() memory.Memory { return a.opts.Memory }

// Planner returns the agent's planner.
func (a *Agent) Planner() Planner { return a.planner }

// Model returns the completion backend the agent was built with.
func (a *Agent) Model() model.Model { return a.llm }

// Executor returns the default invoker.
func (a *Agent) Executor() Invoker { return a.executor }
