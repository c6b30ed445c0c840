// Package protocol defines the text action protocol agents and models speak.
//
// Every model completion must contain one step: a thought followed either by
// a tool call
//
//	Thought: I need to add the numbers.
//	tool_name: safe_calculator
//	tool_input: 15 + 27
//
// or by a final answer
//
//	Thought: I know the result.
//	Final Answer: 42
//
// Markers are matched case-insensitively at the start of a line. PromptBuilder
// produces the system prompt that teaches the model this grammar; Parse turns
// one raw completion into a Step or a *ParseError whose Observation text is
// fed back to the model.
package protocol
