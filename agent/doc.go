// Package agent contains the single-agent reasoning loop and the planners
// that drive it.
//
// An Agent runs a plan/act/observe state machine:
//
//	THINKING -> ACTING -> OBSERVING -> THINKING ... -> DONE | STEP_LIMIT_EXCEEDED
//
// Each cycle asks the Planner for exactly one step given the instruction and
// the transcript so far. Tool calls go through an Invoker (usually a
// *tool.Executor) whose observation is appended before the next step.
// Malformed model output becomes an observation and costs one step. The loop
// always terminates: after MaxSteps cycles it returns best-effort text.
//
// Planners:
//   - ReActPlanner teaches the model the action protocol and a tool list
//   - ManagerPlanner does the same with worker agents as the vocabulary,
//     for use by runner.Team
//
// Design principles:
//   - Minimal hidden state; memory and step budget are the only run-scoped state
//   - One agent's steps are strictly sequential; distinct agents run concurrently
//   - Explicit wiring via functional options
package agent
