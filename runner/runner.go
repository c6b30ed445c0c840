package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/reactmesh/internal/util"
	"github.com/hupe1980/reactmesh/logging"
)

// Runnable is anything that turns an instruction into an answer.
// *agent.Agent and *Team implement it.
type Runnable interface {
	Name() string
	Run(ctx context.Context, instruction string) (string, error)
}

// Options holds configuration overrides passed to New().
type Options struct {
	// MaxConcurrentInvocations limits concurrent runs.
	MaxConcurrentInvocations int
	// Timeout bounds each run when positive.
	Timeout time.Duration
	// Logging services.
	Logger logging.Logger
}

// Job is one instruction for one target.
type Job struct {
	Target      Runnable
	Instruction string
}

// Outcome is the result of a run.
type Outcome struct {
	RunID    string
	Target   string
	Answer   string
	Err      error
	Duration time.Duration
}

// Runner executes runnables concurrently with bounded parallelism and
// per-run cancellation. Public methods are safe for concurrent use.
//
// An agent serializes its own runs, so jobs sharing one *agent.Agent queue
// behind each other; distinct agents run in parallel.
type Runner struct {
	sem     chan struct{}
	timeout time.Duration
	logger  logging.Logger

	activeRuns map[string]context.CancelFunc
	mu         sync.RWMutex
}

// New constructs a Runner with optional overrides.
func New(optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxConcurrentInvocations: 10,
		Logger:                   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxConcurrentInvocations <= 0 {
		opts.MaxConcurrentInvocations = 1
	}

	return &Runner{
		sem:        make(chan struct{}, opts.MaxConcurrentInvocations),
		timeout:    opts.Timeout,
		logger:     opts.Logger,
		activeRuns: make(map[string]context.CancelFunc),
	}
}

// Start launches an asynchronous run. The returned channel receives exactly
// one Outcome and is then closed.
func (r *Runner) Start(ctx context.Context, target Runnable, instruction string) (string, <-chan Outcome) {
	runID := util.NewID()
	out := make(chan Outcome, 1)

	ctx, cancel := context.WithCancel(ctx)
	if r.timeout > 0 {
		ctx, cancel = withTimeout(ctx, cancel, r.timeout)
	}

	r.mu.Lock()
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	go func() {
		defer close(out)
		defer r.finish(runID)

		out <- r.execute(ctx, runID, target, instruction)
	}()

	return runID, out
}

func withTimeout(ctx context.Context, parent context.CancelFunc, d time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, d)
	return ctx, func() {
		cancel()
		parent()
	}
}

// Run executes one instruction synchronously.
func (r *Runner) Run(ctx context.Context, target Runnable, instruction string) (string, error) {
	_, out := r.Start(ctx, target, instruction)
	o := <-out

	return o.Answer, o.Err
}

// RunAll executes jobs concurrently and returns outcomes in job order.
func (r *Runner) RunAll(ctx context.Context, jobs []Job) []Outcome {
	outcomes := make([]Outcome, len(jobs))

	var wg sync.WaitGroup

	for i, job := range jobs {
		_, out := r.Start(ctx, job.Target, job.Instruction)

		wg.Add(1)

		go func(i int, out <-chan Outcome) {
			defer wg.Done()
			outcomes[i] = <-out
		}(i, out)
	}

	wg.Wait()

	return outcomes
}

// Cancel cancels a running run by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[runID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()

	return nil
}

// Active returns the number of runs that have not finished.
func (r *Runner) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.activeRuns)
}

func (r *Runner) finish(runID string) {
	r.mu.Lock()
	cancel := r.activeRuns[runID]
	delete(r.activeRuns, runID)
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (r *Runner) execute(ctx context.Context, runID string, target Runnable, instruction string) (o Outcome) {
	start := time.Now()
	o = Outcome{RunID: runID}

	if target == nil {
		o.Err = fmt.Errorf("run %s: no target", runID)
		return o
	}

	o.Target = target.Name()

	defer func() {
		if rec := recover(); rec != nil {
			o.Err = fmt.Errorf("run %s: panic in %s: %v", runID, o.Target, rec)
		}

		o.Duration = time.Since(start)

		if o.Err != nil {
			r.logger.Warn("runner.run.failed", "run_id", runID, "target", o.Target, "error", o.Err.Error())
			return
		}

		r.logger.Info("runner.run.end", "run_id", runID, "target", o.Target, "duration", o.Duration)
	}()

	select {
	case r.sem <- struct{}{}:
		defer func() { <-r.sem }()
	case <-ctx.Done():
		o.Err = ctx.Err()
		return o
	}

	r.logger.Debug("runner.run.start", "run_id", runID, "target", o.Target)

	o.Answer, o.Err = target.Run(ctx, instruction)

	return o
}
