package engine

// State is the per-incident lifecycle position. Terminal states never
// transition again.
type State string

const (
	StateReceived           State = "Received"
	StateClassified         State = "Classified"
	StatePlanned            State = "Planned"
	StateDispatched         State = "Dispatched"
	StateAwaitingValidation State = "AwaitingValidation"
	StateRollingBack        State = "RollingBack"
	StateResolved           State = "Resolved"
	StatePartiallyResolved  State = "PartiallyResolved"
	StateRolledBack         State = "RolledBack"
	StateEscalated          State = "Escalated"
)

func (s State) Terminal() bool {
	switch s {
	case StateResolved, StatePartiallyResolved, StateRolledBack, StateEscalated:
		return true
	}
	return false
}

var transitions = map[State][]State{
	StateReceived:           {StateClassified},
	StateClassified:         {StatePlanned, StateEscalated},
	StatePlanned:            {StateDispatched, StateEscalated},
	StateDispatched:         {StateAwaitingValidation, StateEscalated},
	StateAwaitingValidation: {StateResolved, StatePartiallyResolved, StateRollingBack, StateRolledBack, StateEscalated},
	StateRollingBack:        {StateAwaitingValidation, StateEscalated},
}

func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}
