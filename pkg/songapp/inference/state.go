package inference

// State is a step of one identification request.
type State int

const (
	StateIdle State = iota
	StateExtracting
	StateNormalizing
	StateClassifying
	StateLookingUp
	StateFound
	StateNotFound
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExtracting:
		return "extracting"
	case StateNormalizing:
		return "normalizing"
	case StateClassifying:
		return "classifying"
	case StateLookingUp:
		return "looking_up"
	case StateFound:
		return "found"
	case StateNotFound:
		return "not_found"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends a request.
func (s State) Terminal() bool {
	return s == StateFound || s == StateNotFound || s == StateFailed
}

// StateObserver is told about every state a request enters, in order.
type StateObserver func(State)
