package agent

// State is a position in the agent loop state machine.
type State int

const (
	// StateThinking asks the planner for the next step.
	StateThinking State = iota
	// StateActing invokes the requested tool.
	StateActing
	// StateObserving records the observation.
	StateObserving
	// StateDone means a final answer was produced.
	StateDone
	// StateStepLimitExceeded means the step budget ran out.
	StateStepLimitExceeded
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateThinking:
		return "THINKING"
	case StateActing:
		return "ACTING"
	case StateObserving:
		return "OBSERVING"
	case StateDone:
		return "DONE"
	case StateStepLimitExceeded:
		return "STEP_LIMIT_EXCEEDED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the loop stops in this state.
func (s State) Terminal() bool {
	return s == StateDone || s == StateStepLimitExceeded
}
