package protocol

import (
	"encoding/json"
	"regexp"
	"strings"
)

type marker int

const (
	markerThought marker = iota
	markerAction
	markerToolName
	markerToolInput
	markerFinal
	markerObservation
)

var markerPattern = regexp.MustCompile(`(?i)^\s*(?:[*#>\-]+\s*)?(thought|action|tool[_ ]name|tool[_ ]input|action[_ ]input|final[_ ]answer|observation)\s*\**\s*:`)

var markerKinds = map[string]marker{
	"thought":      markerThought,
	"action":       markerAction,
	"tool_name":    markerToolName,
	"tool name":    markerToolName,
	"tool_input":   markerToolInput,
	"tool input":   markerToolInput,
	"action_input": markerToolInput,
	"action input": markerToolInput,
	"final_answer": markerFinal,
	"final answer": markerFinal,
	"observation":  markerObservation,
}

type section struct {
	kind marker
	text string
}

// Parse extracts exactly one step from a raw completion.
//
// Tolerances: surrounding whitespace, marker case, markdown emphasis around
// markers, a JSON object {"tool_name": ..., "tool_input": ...}, and
// "tool_name: final_answer" as a final answer. Anything from a line starting
// with "Observation:" onward is discarded, since observations are produced by
// the executor and never by the model. A missing tool_name marker, or a
// tool_name without a tool_input, yields a *ParseError.
func Parse(raw string) (Step, error) {
	text := strings.TrimSpace(strings.ReplaceAll(raw, "\r\n", "\n"))
	if text == "" {
		return Step{}, &ParseError{Reason: "empty response", Raw: raw}
	}

	sections, preamble := split(text)

	var (
		step                 Step
		hasName, hasInput    bool
		hasFinal, hasThought bool
	)

	for _, sec := range sections {
		switch sec.kind {
		case markerThought:
			if !hasThought {
				step.Thought = sec.text
				hasThought = true
			}
		case markerToolName:
			if !hasName && !hasFinal {
				step.ToolName = cleanName(firstLine(sec.text))
				hasName = true
			}
		case markerToolInput:
			if hasName && !hasInput {
				step.ToolInput = sec.text
				hasInput = true
			}
		case markerFinal:
			if !hasName && !hasFinal {
				step.FinalAnswer = sec.text
				hasFinal = true
			}
		}
	}

	if !hasThought {
		step.Thought = preamble
	}

	if hasFinal {
		step.Final = true
		return step, nil
	}

	if !hasName {
		if s, ok := parseJSONAction(text); ok {
			if s.Thought == "" {
				s.Thought = step.Thought
			}
			return s, nil
		}
		return Step{}, &ParseError{Reason: "missing 'tool_name:' marker or final answer", Raw: raw}
	}

	if step.ToolName == "" {
		return Step{}, &ParseError{Reason: "empty tool name", Raw: raw}
	}

	if strings.EqualFold(step.ToolName, FinalAnswerTool) {
		return Step{Thought: step.Thought, FinalAnswer: step.ToolInput, Final: true}, nil
	}

	if !hasInput {
		return Step{}, &ParseError{Reason: "missing 'tool_input:' line after 'tool_name: " + step.ToolName + "'", Raw: raw}
	}

	return step, nil
}

// split cuts text into marker sections. Text before the first marker is
// returned as preamble. Parsing stops at the first Observation marker.
func split(text string) ([]section, string) {
	var (
		sections []section
		preamble []string
		current  *section
		body     []string
	)

	flush := func() {
		if current != nil {
			current.text = strings.TrimSpace(strings.Join(body, "\n"))
			sections = append(sections, *current)
		}
	}

	for _, line := range strings.Split(text, "\n") {
		loc := markerPattern.FindStringSubmatchIndex(line)
		if loc == nil {
			if current == nil {
				preamble = append(preamble, line)
			} else {
				body = append(body, line)
			}
			continue
		}

		name := strings.ToLower(line[loc[2]:loc[3]])
		kind := markerKinds[name]

		if kind == markerObservation {
			break
		}

		flush()

		current = &section{kind: kind}
		body = []string{strings.TrimLeft(line[loc[1]:], "* ")}
	}

	flush()

	return sections, strings.TrimSpace(strings.Join(preamble, "\n"))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func cleanName(s string) string {
	return strings.Trim(strings.TrimSpace(s), "`\"'*[]")
}

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

func parseJSONAction(text string) (Step, bool) {
	candidate := jsonObject.FindString(text)
	if candidate == "" {
		return Step{}, false
	}

	var payload struct {
		Thought   string          `json:"thought"`
		ToolName  string          `json:"tool_name"`
		ToolInput json.RawMessage `json:"tool_input"`
	}

	if err := json.Unmarshal([]byte(candidate), &payload); err != nil || payload.ToolName == "" {
		return Step{}, false
	}

	input := string(payload.ToolInput)

	var s string
	if err := json.Unmarshal(payload.ToolInput, &s); err == nil {
		input = s
	}

	if strings.EqualFold(payload.ToolName, FinalAnswerTool) {
		return Step{Thought: payload.Thought, FinalAnswer: input, Final: true}, true
	}

	return Step{Thought: payload.Thought, ToolName: payload.ToolName, ToolInput: input}, true
}
