package state

// validTransitions contains the permitted transitions besides the always-allowed return to StateChoosing.
var validTransitions = map[State][]State{
	StateChoosing: {
		StateConfirming,
		StateAwaitingPayerName,
	},
	StateConfirming: {
		StateConfirming,
	},
	StateAwaitingPayerName: {
		StateAwaitingPayerName,
	},
}

// IsTransitionAllowed reports whether moving from one state to another is valid.
func IsTransitionAllowed(from, to State) bool {
	if to == StateChoosing {
		return true
	}

	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}

	for _, state := range allowed {
		if state == to {
			return true
		}
	}

	return false
}
