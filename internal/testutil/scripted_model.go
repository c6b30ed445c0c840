package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/reactmesh/model"
)

// Reply is one scripted completion: text or an error.
type Reply struct {
	Text string
	Err  error
}

// ScriptedModel replays replies in order. Once the script is exhausted the
// last reply repeats, which models a backend that never changes its mind.
//
// Example:
//
//	llm := NewScriptedModel(
//	  "Thought: add\ntool_name: safe_calculator\ntool_input: 15 + 27",
//	  "Thought: done\nFinal Answer: 42",
//	)
type ScriptedModel struct {
	name     string
	mu       sync.Mutex
	replies  []Reply
	calls    int
	requests []model.Request
}

// NewScriptedModel creates a model replying with texts in order.
func NewScriptedModel(texts ...string) *ScriptedModel {
	m := &ScriptedModel{name: "scripted"}
	for _, t := range texts {
		m.replies = append(m.replies, Reply{Text: t})
	}
	return m
}

// Named sets the name reported by Info (chainable).
func (m *ScriptedModel) Named(name string) *ScriptedModel {
	m.name = name
	return m
}

// Then appends a text reply (chainable).
func (m *ScriptedModel) Then(text string) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, Reply{Text: text})
	return m
}

// ThenError appends an error reply (chainable).
func (m *ScriptedModel) ThenError(err error) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, Reply{Err: err})
	return m
}

// Generate implements model.Model.
func (m *ScriptedModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	var r Reply
	if len(m.replies) > 0 {
		idx := m.calls
		if idx >= len(m.replies) {
			idx = len(m.replies) - 1
		}
		r = m.replies[idx]
	}
	m.calls++
	m.mu.Unlock()

	switch {
	case ctx.Err() != nil:
		errCh <- ctx.Err()
	case r.Err != nil:
		errCh <- r.Err
	default:
		out <- model.Response{Text: r.Text, FinishReason: "stop"}
	}

	close(out)
	close(errCh)

	return out, errCh
}

// Info implements model.Model.
func (m *ScriptedModel) Info() model.Info {
	return model.Info{Name: m.name, Provider: "scripted"}
}

// Calls returns how many completions were requested.
func (m *ScriptedModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Requests returns a copy of all requests received.
func (m *ScriptedModel) Requests() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Request(nil), m.requests...)
}

// LastRequest returns the most recent request, or a zero Request.
func (m *ScriptedModel) LastRequest() model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return model.Request{}
	}
	return m.requests[len(m.requests)-1]
}
