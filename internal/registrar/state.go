package registrar

import "fmt"

// State is where a registrar stands with the catalog.
type State int

const (
	// StateUnidentified means the peer has no identifier yet.
	StateUnidentified State = iota
	// StateRegistering means the peer has an identifier and is creating its record.
	StateRegistering
	// StateRegistered is the steady state: the record exists and is refreshed by heartbeats.
	StateRegistered
	// StateRecovering means the catalog forgot the record; it is recreated from scratch.
	StateRecovering
	// StateUnreachable means the last cycle exhausted its retry budget.
	// The next Register or Heartbeat starts over.
	StateUnreachable
)

func (s State) String() string {
	switch s {
	case StateUnidentified:
		return "unidentified"
	case StateRegistering:
		return "registering"
	case StateRegistered:
		return "registered"
	case StateRecovering:
		return "recovering"
	case StateUnreachable:
		return "unreachable"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// event is an outcome observed while talking to the catalog.
type event int

const (
	// eventRestart begins a new cycle after the catalog was unreachable.
	eventRestart event = iota
	// eventIDAllocated means an identifier is known (allocated, preassigned or not needed).
	eventIDAllocated
	// eventCreated is a 201 to a create.
	eventCreated
	// eventConflict is a 400 to a create: the record probably exists already.
	eventConflict
	// eventUpdated is a 200 to an update.
	eventUpdated
	// eventForgotten is a 400 to an update: the catalog no longer holds the record.
	eventForgotten
	// eventExhausted means the retry budget of the current state ran out.
	eventExhausted
)

func (e event) String() string {
	switch e {
	case eventRestart:
		return "restart"
	case eventIDAllocated:
		return "id_allocated"
	case eventCreated:
		return "created"
	case eventConflict:
		return "conflict"
	case eventUpdated:
		return "updated"
	case eventForgotten:
		return "forgotten"
	case eventExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// transition is the whole registration state machine. It reports false
// when the event makes no sense in state s, which leaves s unchanged.
func transition(s State, e event) (State, bool) {
	if e == eventExhausted {
		if s == StateRegistered || s == StateUnreachable {
			return s, false
		}
		return StateUnreachable, true
	}

	switch s {
	case StateUnidentified:
		if e == eventIDAllocated {
			return StateRegistering, true
		}
	case StateRegistering:
		switch e {
		case eventCreated, eventUpdated:
			return StateRegistered, true
		case eventConflict:
			// Treat the existing record as ours and update it next.
			return StateRegistering, true
		case eventForgotten:
			return StateRecovering, true
		}
	case StateRegistered:
		switch e {
		case eventUpdated:
			return StateRegistered, true
		case eventForgotten:
			return StateRecovering, true
		}
	case StateRecovering:
		switch e {
		case eventCreated:
			return StateRegistered, true
		case eventConflict:
			return StateRegistering, true
		}
	case StateUnreachable:
		if e == eventRestart {
			return StateUnidentified, true
		}
	}
	return s, false
}
