// Package memory holds an agent's working memory: the ordered transcript of
// instructions, steps and observations of its runs.
//
// A transcript alternates strictly: every tool-call step is followed by exactly
// one observation before the next step, and a final answer closes the run.
// WorkingMemory enforces this order on Append.
package memory
