package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_ToolCall(t *testing.T) {
	step, err := Parse("Thought: I should add them.\ntool_name: safe_calculator\ntool_input: 15 + 27")
	require.NoError(t, err)
	assert.False(t, step.IsFinal())
	assert.Equal(t, "I should add them.", step.Thought)
	assert.Equal(t, "safe_calculator", step.ToolName)
	assert.Equal(t, "15 + 27", step.ToolInput)
}

func TestParse_Tolerances(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		tool  string
		input string
	}{
		{
			name:  "case insensitive and padded",
			raw:   "  THOUGHT:  look it up  \n  Tool_Name:   web_search  \n TOOL_INPUT:   golang generics \n\n",
			tool:  "web_search",
			input: "golang generics",
		},
		{
			name:  "action header line",
			raw:   "Thought: read it\nAction:\ntool_name: fs_filesystem_read_file\ntool_input: README.md",
			tool:  "fs_filesystem_read_file",
			input: "README.md",
		},
		{
			name:  "markdown emphasis and quoted name",
			raw:   "**Thought:** go\n**tool_name:** `lookup`\n**tool_input:** x",
			tool:  "lookup",
			input: "x",
		},
		{
			name:  "multi-line input",
			raw:   "Thought: write\ntool_name: writer\ntool_input: line one\nline two",
			tool:  "writer",
			input: "line one\nline two",
		},
		{
			name:  "hallucinated observation is discarded",
			raw:   "Thought: calc\ntool_name: safe_calculator\ntool_input: 1+1\nObservation: 2\nFinal Answer: 2",
			tool:  "safe_calculator",
			input: "1+1",
		},
		{
			name:  "windows line endings",
			raw:   "Thought: a\r\ntool_name: t\r\ntool_input: b\r\n",
			tool:  "t",
			input: "b",
		},
		{
			name:  "json action",
			raw:   "Thought: use json\n```json\n{\"tool_name\": \"search\", \"tool_input\": \"weather\"}\n```",
			tool:  "search",
			input: "weather",
		},
		{
			name:  "json action with object input",
			raw:   `{"tool_name": "read_file", "tool_input": {"path": "a.txt", "max_lines": 5}}`,
			tool:  "read_file",
			input: `{"path": "a.txt", "max_lines": 5}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.False(t, step.Final)
			assert.Equal(t, tt.tool, step.ToolName)
			assert.Equal(t, tt.input, step.ToolInput)
		})
	}
}

func TestParse_FinalAnswer(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		answer string
	}{
		{"marker", "Thought: done\nFinal Answer: 42", "42"},
		{"underscore marker", "thought: done\nfinal_answer: The answer\nspans lines.", "The answer\nspans lines."},
		{"final_answer tool", "Thought: done\ntool_name: final_answer\ntool_input: 42", "42"},
		{"json final_answer", `{"thought": "ok", "tool_name": "final_answer", "tool_input": "42"}`, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.True(t, step.IsFinal())
			assert.Equal(t, tt.answer, step.FinalAnswer)
		})
	}
}

func TestParse_ThoughtFromPreamble(t *testing.T) {
	step, err := Parse("Let me think about this.\nFinal Answer: yes")
	require.NoError(t, err)
	assert.Equal(t, "Let me think about this.", step.Thought)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		reason string
	}{
		{"empty", "   ", "empty response"},
		{"no tool_name marker", "Thought: I am pondering the question.", "missing 'tool_name:'"},
		{"tool_input missing", "Thought: x\ntool_name: safe_calculator", "missing 'tool_input:'"},
		{"empty tool name", "Thought: x\ntool_name:\ntool_input: y", "empty tool name"},
		{"inline markers do not count", "I could use tool_name: calc here", "missing 'tool_name:'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.Contains(t, perr.Reason, tt.reason)
			assert.Equal(t, tt.raw, perr.Raw)
			assert.Contains(t, perr.Observation(), "could not be parsed")
		})
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	steps := []Step{
		{Thought: "add", ToolName: "safe_calculator", ToolInput: "15 + 27"},
		{Thought: "done", FinalAnswer: "42", Final: true},
	}

	for _, s := range steps {
		got, err := Parse(Format(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}
