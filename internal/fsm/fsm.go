// Package fsm defines the connection listener lifecycle.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle        State = "idle"
	StateListening   State = "listening"
	StateAccepted    State = "accepted"
	StateCommandRead State = "command_read"
	StateDispatched  State = "dispatched"
	StateStopped     State = "stopped"
)

const (
	EventStart    Event = "start"
	EventAccept   Event = "accept"
	EventRead     Event = "read"
	EventDispatch Event = "dispatch"
	EventComplete Event = "complete"
	EventAbort    Event = "abort"
	EventStop     Event = "stop"
)

func Transition(current State, event Event) (State, error) {
	if event == EventStop {
		if current == StateStopped {
			return current, invalidTransition(current, event)
		}
		return StateStopped, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateListening, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateListening:
		switch event {
		case EventAccept:
			return StateAccepted, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateAccepted:
		switch event {
		case EventRead:
			return StateCommandRead, nil
		case EventAbort:
			return StateListening, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateCommandRead:
		switch event {
		case EventDispatch:
			return StateDispatched, nil
		case EventAbort:
			return StateListening, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateDispatched:
		switch event {
		case EventComplete:
			return StateListening, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateStopped:
		return current, invalidTransition(current, event)
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Serving reports whether the listener can still take a connection in state s.
func Serving(s State) bool {
	switch s {
	case StateListening, StateAccepted, StateCommandRead, StateDispatched:
		return true
	default:
		return false
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
