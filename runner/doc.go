// Package runner coordinates agents: hierarchical teams and concurrent
// execution of independent runs.
//
// A Team pairs a manager agent with a flat set of worker agents. Each worker
// is exposed to the manager as a Delegation tool; calling it runs the
// worker's complete loop with its own memory and step budget, and the
// worker's answer becomes the manager's observation. Worker failures come
// back as observations and never abort the team run. Workers must not
// delegate further.
//
//	researcher := agent.New(llm, agent.NewReActPlanner(llm, tools), tool.NewExecutor(tools))
//	summarizer := agent.New(llm, agent.NewReActPlanner(llm, nil), nil)
//	workers := map[string]*agent.Agent{"Researcher": researcher, "Summarizer": summarizer}
//
//	team, err := runner.NewTeam(runner.NewManager(llm, workers), workers)
//	answer, err := team.Run(ctx, "Summarize the latest findings on ...")
//
// A Runner executes independent Runnables (agents or teams) concurrently
// with a bound on parallelism, per-run IDs and cancellation.
package runner
