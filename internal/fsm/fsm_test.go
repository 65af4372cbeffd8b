package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionHappyPath(t *testing.T) {
	s := StateIdle

	next, err := Transition(s, EventStart)
	require.NoError(t, err)
	require.Equal(t, StateStarting, next)

	next, err = Transition(next, EventSpawned)
	require.NoError(t, err)
	require.Equal(t, StateRunning, next)

	next, err = Transition(next, EventExited)
	require.NoError(t, err)
	require.Equal(t, StateCompleted, next)

	next, err = Transition(next, EventReset)
	require.NoError(t, err)
	require.Equal(t, StateIdle, next)
}

func TestTransitionRunningExits(t *testing.T) {
	tests := []struct {
		event Event
		want  State
	}{
		{event: EventExited, want: StateCompleted},
		{event: EventFail, want: StateFailed},
		{event: EventTimeout, want: StateTimedOut},
		{event: EventInterrupt, want: StateInterrupted},
	}
	for _, tc := range tests {
		next, err := Transition(StateRunning, tc.event)
		require.NoError(t, err)
		require.Equal(t, tc.want, next)
		require.True(t, Terminal(next))

		idle, err := Transition(next, EventReset)
		require.NoError(t, err)
		require.Equal(t, StateIdle, idle)
	}
}

func TestTransitionSpawnFailure(t *testing.T) {
	next, err := Transition(StateStarting, EventSpawnFail)
	require.NoError(t, err)
	require.Equal(t, StateFailed, next)
}

func TestTransitionMatrixInvalidTransitions(t *testing.T) {
	tests := []struct {
		name  string
		state State
		event Event
	}{
		{name: "idle spawned invalid", state: StateIdle, event: EventSpawned},
		{name: "idle interrupt invalid", state: StateIdle, event: EventInterrupt},
		{name: "idle reset invalid", state: StateIdle, event: EventReset},
		{name: "starting start invalid", state: StateStarting, event: EventStart},
		{name: "starting timeout invalid", state: StateStarting, event: EventTimeout},
		{name: "running start invalid", state: StateRunning, event: EventStart},
		{name: "running reset invalid", state: StateRunning, event: EventReset},
		{name: "completed interrupt invalid", state: StateCompleted, event: EventInterrupt},
		{name: "interrupted start invalid", state: StateInterrupted, event: EventStart},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Equal(t, tc.state, next)
			require.Error(t, err)
			require.Contains(t, err.Error(), "invalid transition")
		})
	}
}

func TestTerminal(t *testing.T) {
	require.False(t, Terminal(StateIdle))
	require.False(t, Terminal(StateStarting))
	require.False(t, Terminal(StateRunning))
}

func TestTransitionUnknownState(t *testing.T) {
	next, err := Transition(State("mystery"), EventStart)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
	require.Equal(t, State("mystery"), next)
}
