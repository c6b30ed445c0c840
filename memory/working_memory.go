package memory

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/reactmesh/protocol"
)

// ErrOutOfOrder is returned when an append would break transcript alternation.
var ErrOutOfOrder = errors.New("memory: entry out of order")

// Kind classifies transcript entries.
type Kind string

const (
	// KindInstruction is the task text that opens a run.
	KindInstruction Kind = "instruction"
	// KindAction is a step that requested a tool call (or failed to parse).
	KindAction Kind = "action"
	// KindFinal is a step carrying the final answer.
	KindFinal Kind = "final"
	// KindObservation is the result of the preceding action.
	KindObservation Kind = "observation"
)

// Entry is one transcript element.
type Entry struct {
	Kind Kind          `json:"kind"`
	Text string        `json:"text,omitempty"` // instruction or observation text
	Step protocol.Step `json:"step,omitempty"`
	Raw  string        `json:"raw,omitempty"` // model output as received
}

// Instruction creates an instruction entry.
func Instruction(text string) Entry { return Entry{Kind: KindInstruction, Text: text} }

// Observation creates an observation entry.
func Observation(text string) Entry { return Entry{Kind: KindObservation, Text: text} }

// FromStep creates an action or final entry for a parsed step.
func FromStep(step protocol.Step, raw string) Entry {
	if step.IsFinal() {
		return Entry{Kind: KindFinal, Step: step, Raw: raw}
	}
	return Entry{Kind: KindAction, Step: step, Raw: raw}
}

// Unparsed records model output that did not parse. It occupies the action
// slot so the explanatory observation has a step to follow.
func Unparsed(raw string) Entry {
	if strings.TrimSpace(raw) == "" {
		raw = "(empty response)"
	}
	return Entry{Kind: KindAction, Raw: raw}
}

// Content returns the text shown to a model for this entry.
func (e Entry) Content() string {
	switch e.Kind {
	case KindAction, KindFinal:
		if e.Raw != "" {
			return strings.TrimSpace(e.Raw)
		}
		return protocol.Format(e.Step)
	case KindObservation:
		return "Observation: " + e.Text
	default:
		return e.Text
	}
}

// Memory is the transcript store an agent writes to. Implementations are
// owned by a single agent.
type Memory interface {
	Append(e Entry) error
	Entries() []Entry
	Clear()
	Len() int
}

// WorkingMemory is an append-only in-process transcript.
//
// Concurrency: protected by a mutex so observers (logging, export) may read
// while the owning agent appends.
type WorkingMemory struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewWorkingMemory creates an empty transcript.
func NewWorkingMemory() *WorkingMemory {
	return &WorkingMemory{}
}

// Append adds e after validating alternation:
//
//	instruction  not while an action awaits its observation
//	action/final first, or after an instruction or observation
//	observation  only directly after an action
func (m *WorkingMemory) Append(e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var last Kind
	if n := len(m.entries); n > 0 {
		last = m.entries[n-1].Kind
	}

	switch e.Kind {
	case KindInstruction:
		if last == KindAction {
			return fmt.Errorf("%w: instruction while an action awaits its observation", ErrOutOfOrder)
		}
	case KindAction, KindFinal:
		if last == KindAction || last == KindFinal {
			return fmt.Errorf("%w: %s directly after %s", ErrOutOfOrder, e.Kind, last)
		}
	case KindObservation:
		if last != KindAction {
			return fmt.Errorf("%w: observation without a preceding action", ErrOutOfOrder)
		}
	default:
		return fmt.Errorf("memory: unknown entry kind %q", e.Kind)
	}

	m.entries = append(m.entries, e)

	return nil
}

// Entries returns a copy of the transcript.
func (m *WorkingMemory) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]Entry(nil), m.entries...)
}

// Clear drops all entries.
func (m *WorkingMemory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = nil
}

// Len returns the number of entries.
func (m *WorkingMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

// LastObservation returns the most recent observation text, if any.
func LastObservation(entries []Entry) (string, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Kind == KindObservation {
			return entries[i].Text, true
		}
	}
	return "", false
}
