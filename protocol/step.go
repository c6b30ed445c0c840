package protocol

import (
	"fmt"
	"strings"
)

// FinalAnswerTool is the tool name some models use to signal a final answer.
const FinalAnswerTool = "final_answer"

// Step is one parsed model decision.
type Step struct {
	Thought     string `json:"thought" yaml:"thought"`
	ToolName    string `json:"tool_name,omitempty" yaml:"tool_name,omitempty"`
	ToolInput   string `json:"tool_input,omitempty" yaml:"tool_input,omitempty"`
	FinalAnswer string `json:"final_answer,omitempty" yaml:"final_answer,omitempty"`
	Final       bool   `json:"final" yaml:"final"`
}

// IsFinal reports whether the step terminates the run.
func (s Step) IsFinal() bool { return s.Final }

// String renders the step in the canonical action grammar.
func (s Step) String() string {
	return Format(s)
}

// Format renders a step in the canonical grammar accepted by Parse.
func Format(s Step) string {
	var b strings.Builder

	if s.Thought != "" {
		fmt.Fprintf(&b, "Thought: %s\n", s.Thought)
	}

	if s.Final {
		fmt.Fprintf(&b, "Final Answer: %s", s.FinalAnswer)
		return b.String()
	}

	fmt.Fprintf(&b, "tool_name: %s\ntool_input: %s", s.ToolName, s.ToolInput)

	return b.String()
}

// ParseError reports a completion that does not follow the action grammar.
type ParseError struct {
	Reason string
	Raw    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed model output: %s", e.Reason)
}

// Observation is the text shown to the model on its next step.
func (e *ParseError) Observation() string {
	return fmt.Sprintf("Error: your last response could not be parsed (%s). "+
		"Respond with 'Thought:' followed by either 'tool_name:' and 'tool_input:' lines, "+
		"or a 'Final Answer:' line.", e.Reason)
}
