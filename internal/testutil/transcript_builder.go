package testutil

import (
	"github.com/hupe1980/reactmesh/memory"
	"github.com/hupe1980/reactmesh/protocol"
)

// TranscriptBuilder helps construct transcripts with fluent chaining for tests.
// Example:
//
//	entries := NewTranscriptBuilder().Instruction("add").Action("t", "calc", "1+1").Observation("2").Build()
type TranscriptBuilder struct {
	entries []memory.Entry
}

// NewTranscriptBuilder creates an empty builder.
func NewTranscriptBuilder() *TranscriptBuilder { return &TranscriptBuilder{} }

// Instruction appends an instruction entry (chainable).
func (b *TranscriptBuilder) Instruction(text string) *TranscriptBuilder {
	b.entries = append(b.entries, memory.Instruction(text))
	return b
}

// Action appends a tool-call step (chainable).
func (b *TranscriptBuilder) Action(thought, tool, input string) *TranscriptBuilder {
	b.entries = append(b.entries, memory.FromStep(protocol.Step{Thought: thought, ToolName: tool, ToolInput: input}, ""))
	return b
}

// Final appends a final-answer step (chainable).
func (b *TranscriptBuilder) Final(thought, answer string) *TranscriptBuilder {
	b.entries = append(b.entries, memory.FromStep(protocol.Step{Thought: thought, FinalAnswer: answer, Final: true}, ""))
	return b
}

// Observation appends an observation (chainable).
func (b *TranscriptBuilder) Observation(text string) *TranscriptBuilder {
	b.entries = append(b.entries, memory.Observation(text))
	return b
}

// Build returns the transcript.
func (b *TranscriptBuilder) Build() []memory.Entry {
	return append([]memory.Entry(nil), b.entries...)
}

// Memory returns a WorkingMemory filled with the built entries.
// It panics on an out-of-order transcript, which is a bug in the test itself.
func (b *TranscriptBuilder) Memory() *memory.WorkingMemory {
	m := memory.NewWorkingMemory()
	for _, e := range b.entries {
		if err := m.Append(e); err != nil {
			panic(err)
		}
	}
	return m
}
