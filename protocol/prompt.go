package protocol

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/reactmesh/internal/util"
)

// FormatInstructions is the mandatory block describing the action grammar.
// PromptBuilder always includes it; caller instructions are appended after it
// and cannot replace it.
const FormatInstructions = `You must respond with exactly one step in the following format and nothing else.

To use a tool:
Thought: <your reasoning about what to do next>
tool_name: <the exact name of one tool from the list>
tool_input: <the input for the tool as plain text or a JSON object>

When you know the answer:
Thought: <your reasoning>
Final Answer: <the complete answer for the user>

Rules:
- Use exactly one tool per step and wait for its Observation.
- Never write an Observation yourself; it is provided after each tool call.
- Only use tool names from the list above.`

// ToolDoc is the model-facing description of one capability.
type ToolDoc struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// PromptBuilder assembles the system prompt for a planner.
type PromptBuilder struct {
	// RoleDefinition opens the prompt ("You are a helpful research assistant.").
	RoleDefinition string

	// CapabilitiesTitle heads the tool list. Defaults to "Available tools".
	CapabilitiesTitle string

	// FormatInstructions are extra caller rules appended to the mandatory block.
	FormatInstructions []string

	// Examples are complete worked exchanges shown to the model.
	Examples []string
}

// Build renders the prompt for the given capabilities.
func (b PromptBuilder) Build(tools []ToolDoc) string {
	var sb strings.Builder

	role := strings.TrimSpace(b.RoleDefinition)
	if role == "" {
		role = "You are a helpful assistant that solves tasks step by step using tools."
	}
	sb.WriteString(role)
	sb.WriteString("\n\n")

	title := b.CapabilitiesTitle
	if title == "" {
		title = "Available tools"
	}
	fmt.Fprintf(&sb, "## %s\n", title)

	if len(tools) == 0 {
		sb.WriteString("(none)\n")
	}

	for _, t := range tools {
		fmt.Fprintf(&sb, "- %s: %s\n", t.Name, oneLine(t.Description))
		if in := describeInput(t.Parameters); in != "" {
			fmt.Fprintf(&sb, "  input: %s\n", in)
		}
	}

	sb.WriteString("\n## Response format\n")
	sb.WriteString(FormatInstructions)
	sb.WriteString("\n")

	for _, extra := range b.FormatInstructions {
		if extra = strings.TrimSpace(extra); extra != "" {
			fmt.Fprintf(&sb, "- %s\n", extra)
		}
	}

	if len(b.Examples) > 0 {
		sb.WriteString("\n## Examples\n")
		for i, ex := range b.Examples {
			fmt.Fprintf(&sb, "### Example %d\n%s\n", i+1, strings.TrimSpace(ex))
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// describeInput summarizes a JSON schema as "path (string, required), max_lines (number)".
func describeInput(schema map[string]any) string {
	props := util.Properties(schema)
	if len(props) == 0 {
		return ""
	}

	required := map[string]bool{}
	for _, r := range util.RequiredFields(schema) {
		required[r] = true
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if required[names[i]] != required[names[j]] {
			return required[names[i]]
		}
		return names[i] < names[j]
	})

	parts := make([]string, 0, len(names))
	for _, name := range names {
		typ := util.PropertyType(schema, name)
		if typ == "" {
			typ = "any"
		}
		attrs := typ
		if required[name] {
			attrs += ", required"
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", name, attrs))
	}

	if len(parts) == 1 {
		return parts[0] + "; plain text is accepted"
	}

	return strings.Join(parts, ", ") + "; use a JSON object for several fields"
}

// Example renders a worked exchange in the transcript layout models see,
// suitable for PromptBuilder.Examples.
func Example(instruction string, steps []Step, observations []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Question: %s\n", instruction)
	for i, s := range steps {
		sb.WriteString(Format(s))
		sb.WriteString("\n")
		if i < len(observations) {
			fmt.Fprintf(&sb, "Observation: %s\n", observations[i])
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
