package agent

import (
	"sort"

	"github.com/hupe1980/reactmesh/model"
	"github.com/hupe1980/reactmesh/protocol"
)

const defaultManagerRole = `You are a manager coordinating a team of worker agents.
You never solve tasks yourself. Break the task into sub-tasks and delegate each one to the
most suitable worker by using the worker name as tool_name and the sub-task as tool_input.
Each worker starts from scratch, so describe the sub-task completely and include any results
the worker needs from earlier observations. When the workers have produced what the task
asks for, give the final answer.`

// ManagerPlanner plans delegations instead of tool calls. Worker names are
// the tool vocabulary and tool_input is the delegated instruction.
type ManagerPlanner struct {
	*ReActPlanner
	workers []string
}

// NewManagerPlanner creates a planner for a team manager. workers maps a
// worker name to the agent that will serve it; only names and descriptions
// are read here.
func NewManagerPlanner(llm model.Model, workers map[string]*Agent, optFns ...func(o *ReActPlannerOptions)) *ManagerPlanner {
	names := make([]string, 0, len(workers))
	for name := range workers {
		names = append(names, name)
	}

	sort.Strings(names)

	docs := make([]protocol.ToolDoc, 0, len(names))

	for _, name := range names {
		desc := ""
		if w := workers[name]; w != nil {
			desc = w.Description()
		}

		if desc == "" {
			desc = "Worker agent " + name + "."
		}

		docs = append(docs, protocol.ToolDoc{
			Name:        name,
			Description: desc,
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"task": map[string]any{
						"type":        "string",
						"description": "Complete instruction for the worker",
					},
				},
				"required": []string{"task"},
			},
		})
	}

	opts := defaultReActPlannerOptions()
	opts.Role = NewInstructionFromText(defaultManagerRole)

	p := newPlanner(llm, "Available workers", func() []protocol.ToolDoc { return docs }, opts, optFns)

	return &ManagerPlanner{ReActPlanner: p, workers: names}
}

// Workers returns the worker names in prompt order.
func (p *ManagerPlanner) Workers() []string {
	return append([]string(nil), p.workers...)
}
