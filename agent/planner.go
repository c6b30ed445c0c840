package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hupe1980/reactmesh/logging"
	"github.com/hupe1980/reactmesh/memory"
	"github.com/hupe1980/reactmesh/model"
	"github.com/hupe1980/reactmesh/protocol"
	"github.com/hupe1980/reactmesh/tool"
)

// Planner decides the next step of a run.
//
// Plan returns a *protocol.ParseError when the model output is malformed;
// the loop turns it into an observation. Any other error is fatal to the run.
type Planner interface {
	Plan(ctx context.Context, instruction string, transcript []memory.Entry) (protocol.Step, error)
}

// ReActPlannerOptions configures a ReActPlanner.
type ReActPlannerOptions struct {
	// Role opens the system prompt.
	Role Instruction

	// FormatInstructions are appended to the mandatory format block.
	FormatInstructions []string

	// Examples are worked exchanges shown to the model.
	Examples []string

	// Stream requests streamed completions from the backend.
	Stream bool

	// Retries is the number of extra completion attempts after a backend error.
	Retries int

	// RetryInterval is the initial backoff between completion attempts.
	RetryInterval time.Duration

	Logger logging.Logger
}

// ReActPlanner asks a model for the next step using the action protocol.
type ReActPlanner struct {
	llm   model.Model
	docs  func() []protocol.ToolDoc
	title string
	opts  ReActPlannerOptions
}

// NewReActPlanner creates a planner advertising the tools of resolver.
// The tool list is read on every step, so tools attached later are picked up.
func NewReActPlanner(llm model.Model, resolver tool.Resolver, optFns ...func(o *ReActPlannerOptions)) *ReActPlanner {
	return newPlanner(llm, "", func() []protocol.ToolDoc { return ToolDocs(resolver) }, defaultReActPlannerOptions(), optFns)
}

func defaultReActPlannerOptions() ReActPlannerOptions {
	return ReActPlannerOptions{
		Role:          NewInstructionFromText("You are a helpful assistant that solves tasks step by step using tools."),
		Retries:       2,
		RetryInterval: 500 * time.Millisecond,
		Logger:        logging.NoOpLogger{},
	}
}

func newPlanner(
	llm model.Model,
	title string,
	docs func() []protocol.ToolDoc,
	opts ReActPlannerOptions,
	optFns []func(o *ReActPlannerOptions),
) *ReActPlanner {
	for _, fn := range optFns {
		fn(&opts)
	}

	return &ReActPlanner{llm: llm, docs: docs, title: title, opts: opts}
}

// ToolDocs builds model-facing documentation for every tool of r in order.
func ToolDocs(r tool.Resolver) []protocol.ToolDoc {
	if r == nil {
		return nil
	}

	tools := tool.Ordered(r)
	docs := make([]protocol.ToolDoc, 0, len(tools))

	for _, t := range tools {
		docs = append(docs, protocol.ToolDoc{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()})
	}

	return docs
}

// PromptBuilder returns the builder with the role resolved statically.
// Dynamic roles resolve to the empty string here.
func (p *ReActPlanner) PromptBuilder() protocol.PromptBuilder {
	return protocol.PromptBuilder{
		RoleDefinition:     p.opts.Role.Text(),
		CapabilitiesTitle:  p.title,
		FormatInstructions: append([]string(nil), p.opts.FormatInstructions...),
		Examples:           append([]string(nil), p.opts.Examples...),
	}
}

// SystemPrompt renders the current system prompt.
func (p *ReActPlanner) SystemPrompt(ctx context.Context) (string, error) {
	role, err := p.opts.Role.Resolve(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve role: %w", err)
	}

	b := p.PromptBuilder()
	b.RoleDefinition = role

	return b.Build(p.docs()), nil
}

// Plan implements Planner.
func (p *ReActPlanner) Plan(ctx context.Context, instruction string, transcript []memory.Entry) (protocol.Step, error) {
	system, err := p.SystemPrompt(ctx)
	if err != nil {
		return protocol.Step{}, err
	}

	req := model.Request{
		Instructions: system,
		Messages:     Messages(instruction, transcript),
		Stream:       p.opts.Stream,
	}

	raw, err := p.complete(ctx, req)
	if errors.Is(err, model.ErrEmptyCompletion) {
		// An empty reply is malformed output the model can correct.
		return protocol.Parse("")
	}

	if err != nil {
		return protocol.Step{}, fmt.Errorf("completion failed: %w", err)
	}

	return protocol.Parse(raw)
}

type modelCallLogger interface {
	LogModelCall(model string, dur time.Duration, success bool, err error)
}

func (p *ReActPlanner) complete(ctx context.Context, req model.Request) (string, error) {
	op := func() (string, error) {
		start := time.Now()
		text, err := model.Complete(ctx, p.llm, req)

		if l, ok := p.opts.Logger.(modelCallLogger); ok {
			l.LogModelCall(p.llm.Info().Name, time.Since(start), err == nil, err)
		}

		if err != nil && (ctx.Err() != nil || errors.Is(err, model.ErrEmptyCompletion)) {
			return "", backoff.Permanent(err)
		}

		return text, err
	}

	if p.opts.Retries <= 0 {
		text, err := op()

		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return "", perm.Err
		}

		return text, err
	}

	eb := backoff.NewExponentialBackOff()
	if p.opts.RetryInterval > 0 {
		eb.InitialInterval = p.opts.RetryInterval
	}

	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(p.opts.Retries)), ctx)

	return backoff.RetryWithData(op, b)
}

// Messages renders an instruction and transcript as chat turns. Steps are
// assistant turns; instructions and observations are user turns.
func Messages(instruction string, transcript []memory.Entry) []model.Message {
	msgs := make([]model.Message, 0, len(transcript)+1)

	if len(transcript) == 0 || transcript[0].Kind != memory.KindInstruction {
		msgs = append(msgs, model.Message{Role: model.RoleUser, Content: "Question: " + instruction})
	}

	for _, e := range transcript {
		switch e.Kind {
		case memory.KindAction, memory.KindFinal:
			msgs = append(msgs, model.Message{Role: model.RoleAssistant, Content: e.Content()})
		case memory.KindInstruction:
			msgs = append(msgs, model.Message{Role: model.RoleUser, Content: "Question: " + e.Text})
		default:
			msgs = append(msgs, model.Message{Role: model.RoleUser, Content: e.Content()})
		}
	}

	return msgs
}
