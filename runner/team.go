package runner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/reactmesh/agent"
	"github.com/hupe1980/reactmesh/logging"
	"github.com/hupe1980/reactmesh/model"
	"github.com/hupe1980/reactmesh/tool"
)

// DefaultTeamMaxSteps bounds the manager's delegation cycles.
const DefaultTeamMaxSteps = 15

var (
	// ErrNoWorkers is returned by NewTeam for an empty worker set.
	ErrNoWorkers = errors.New("team has no workers")

	// ErrNestedTeam is returned when a worker could itself delegate.
	ErrNestedTeam = errors.New("workers must not delegate to other workers")

	// ErrWorkerMismatch is returned when the manager's planner advertises a
	// different worker set than the team provides.
	ErrWorkerMismatch = errors.New("manager advertises different workers than the team")
)

// TeamOptions configures a Team.
type TeamOptions struct {
	Name string

	// MaxSteps bounds the manager's own delegation cycles. Worker budgets
	// are independent.
	MaxSteps int

	Logger logging.Logger
}

// Team is a manager agent delegating to a flat set of worker agents.
type Team struct {
	manager  *agent.Agent
	workers  map[string]*agent.Agent
	names    []string
	executor *tool.Executor
	opts     TeamOptions
}

// NewManager builds a manager agent whose planner advertises workers.
func NewManager(llm model.Model, workers map[string]*agent.Agent, optFns ...func(o *agent.Options)) *agent.Agent {
	opts := append([]func(o *agent.Options){func(o *agent.Options) { o.Name = "manager" }}, optFns...)
	return agent.New(llm, agent.NewManagerPlanner(llm, workers), nil, opts...)
}

// NewTeam wires manager to workers. Each worker becomes a delegation tool
// named after its map key. A manager built by NewManager must advertise
// exactly these workers.
func NewTeam(manager *agent.Agent, workers map[string]*agent.Agent, optFns ...func(o *TeamOptions)) (*Team, error) {
	opts := TeamOptions{
		Name:     "team",
		MaxSteps: DefaultTeamMaxSteps,
		Logger:   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultTeamMaxSteps
	}

	if manager == nil {
		return nil, errors.New("team requires a manager agent")
	}

	if len(workers) == 0 {
		return nil, ErrNoWorkers
	}

	names := make([]string, 0, len(workers))
	for name := range workers {
		names = append(names, name)
	}

	sort.Strings(names)

	registry, err := tool.NewRegistry()
	if err != nil {
		return nil, err
	}

	for _, name := range names {
		w := workers[name]

		switch {
		case strings.TrimSpace(name) == "":
			return nil, errors.New("worker name must not be empty")
		case w == nil:
			return nil, fmt.Errorf("worker %q is nil", name)
		case w == manager:
			return nil, fmt.Errorf("worker %q is the manager itself", name)
		case delegates(w):
			return nil, fmt.Errorf("worker %q: %w", name, ErrNestedTeam)
		}

		if err := registry.Register(&Delegation{name: name, worker: w, logger: opts.Logger}); err != nil {
			return nil, err
		}
	}

	if err := checkAdvertised(manager, names); err != nil {
		return nil, err
	}

	executor := tool.NewExecutor(registry, func(o *tool.ExecutorOptions) {
		o.Logger = opts.Logger
	})

	return &Team{
		manager:  manager,
		workers:  workers,
		names:    names,
		executor: executor,
		opts:     opts,
	}, nil
}

// checkAdvertised compares the worker names a manager planner puts in its
// prompt with the team's workers. Planners that do not list workers are
// accepted as they are.
func checkAdvertised(manager *agent.Agent, names []string) error {
	p, ok := manager.Planner().(interface{ Workers() []string })
	if !ok {
		return nil
	}

	advertised := p.Workers()
	sort.Strings(advertised)

	if !slices.Equal(advertised, names) {
		return fmt.Errorf("%w: manager lists %v, team has %v", ErrWorkerMismatch, advertised, names)
	}

	return nil
}

// delegates reports whether w can reach a delegation tool.
func delegates(w *agent.Agent) bool {
	ex, ok := w.Executor().(interface{ Resolver() tool.Resolver })
	if !ok {
		return false
	}

	r := ex.Resolver()
	if r == nil {
		return false
	}

	for _, t := range r.Tools() {
		if _, ok := t.(*Delegation); ok {
			return true
		}
	}

	return false
}

// Name returns the team name.
func (t *Team) Name() string { return t.opts.Name }

// Workers returns the worker names in sorted order.
func (t *Team) Workers() []string { return append([]string(nil), t.names...) }

// Manager returns the manager agent.
func (t *Team) Manager() *agent.Agent { return t.manager }

// Run executes instruction through the manager and returns its final answer
// or the manager's step-limit fallback text.
func (t *Team) Run(ctx context.Context, instruction string) (string, error) {
	res, err := t.Execute(ctx, instruction)
	if err != nil {
		return "", err
	}

	return res.Answer, nil
}

// Execute is Run with the manager's detailed result.
func (t *Team) Execute(ctx context.Context, instruction string) (*agent.Result, error) {
	t.opts.Logger.Info("team.run.start", "team", t.opts.Name, "workers", strings.Join(t.names, ","))

	res, err := t.manager.Execute(ctx, instruction, func(o *agent.RunOptions) {
		o.MaxSteps = t.opts.MaxSteps
		o.Executor = t.executor
	})
	if err != nil {
		return nil, fmt.Errorf("team %s: %w", t.opts.Name, err)
	}

	t.opts.Logger.Info("team.run.end", "team", t.opts.Name, "state", res.State.String(), "steps", res.Steps)

	return res, nil
}

// Delegation exposes a worker agent as a tool. Calling it runs the worker's
// whole loop with its own memory and budget.
type Delegation struct {
	name   string
	worker *agent.Agent
	logger logging.Logger
}

var delegationSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"task": map[string]any{
			"type":        "string",
			"description": "Complete instruction for the worker",
		},
	},
	"required": []string{"task"},
}

// Name implements tool.Tool.
func (d *Delegation) Name() string { return d.name }

// Description implements tool.Tool.
func (d *Delegation) Description() string {
	if desc := d.worker.Description(); desc != "" {
		return desc
	}

	return "Worker agent " + d.name + "."
}

// Parameters implements tool.Tool.
func (d *Delegation) Parameters() map[string]any { return delegationSchema }

type delegationLogger interface {
	LogDelegation(worker string, dur time.Duration, err error)
}

// Call implements tool.Tool.
func (d *Delegation) Call(ctx context.Context, input string) (string, error) {
	args, err := tool.ArgumentsFromInput(delegationSchema, input)
	if err != nil {
		return "", &tool.ToolError{Tool: d.name, Message: err.Error(), Code: tool.CodeValidation, Err: err}
	}

	task, _ := args["task"].(string)
	if strings.TrimSpace(task) == "" {
		return "", tool.NewToolError(d.name, "no task given to delegate", tool.CodeValidation)
	}

	start := time.Now()
	answer, err := d.worker.Run(ctx, task)
	d.log(time.Since(start), err)

	if err != nil {
		return "", &tool.ToolError{
			Tool:    d.name,
			Message: fmt.Sprintf("worker %s failed: %v", d.name, err),
			Code:    tool.CodeExecution,
			Err:     err,
		}
	}

	return answer, nil
}

func (d *Delegation) log(dur time.Duration, err error) {
	switch l := d.logger.(type) {
	case nil:
	case delegationLogger:
		l.LogDelegation(d.name, dur, err)
	default:
		if err != nil {
			l.Warn("team.delegate.failed", "worker", d.name, "error", err.Error())
			return
		}

		l.Debug("team.delegate", "worker", d.name, "duration", dur)
	}
}
