package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle        State = "idle"
	StateStarting    State = "starting"
	StateRunning     State = "running"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
	StateTimedOut    State = "timed_out"
	StateInterrupted State = "interrupted"
)

const (
	EventStart     Event = "start"
	EventSpawned   Event = "spawned"
	EventSpawnFail Event = "spawn_fail"
	EventExited    Event = "exited"
	EventFail      Event = "fail"
	EventTimeout   Event = "timeout"
	EventInterrupt Event = "interrupt"
	EventReset     Event = "reset"
)

func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateStarting, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateStarting:
		switch event {
		case EventSpawned:
			return StateRunning, nil
		case EventSpawnFail:
			return StateFailed, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRunning:
		switch event {
		case EventExited:
			return StateCompleted, nil
		case EventFail:
			return StateFailed, nil
		case EventTimeout:
			return StateTimedOut, nil
		case EventInterrupt:
			return StateInterrupted, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateCompleted, StateFailed, StateTimedOut, StateInterrupted:
		switch event {
		case EventReset:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Terminal reports whether s ends a session.
func Terminal(s State) bool {
	switch s {
	case StateCompleted, StateFailed, StateTimedOut, StateInterrupted:
		return true
	default:
		return false
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
