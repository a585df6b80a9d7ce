package registrar

import "testing"

func TestTransition(t *testing.T) {
	tests := []struct {
		from   State
		event  event
		want   State
		wantOK bool
	}{
		{StateUnidentified, eventIDAllocated, StateRegistering, true},
		{StateUnidentified, eventCreated, StateUnidentified, false},
		{StateUnidentified, eventExhausted, StateUnreachable, true},

		{StateRegistering, eventCreated, StateRegistered, true},
		{StateRegistering, eventConflict, StateRegistering, true},
		{StateRegistering, eventUpdated, StateRegistered, true},
		{StateRegistering, eventForgotten, StateRecovering, true},
		{StateRegistering, eventExhausted, StateUnreachable, true},

		{StateRegistered, eventUpdated, StateRegistered, true},
		{StateRegistered, eventForgotten, StateRecovering, true},
		{StateRegistered, eventExhausted, StateRegistered, false},
		{StateRegistered, eventCreated, StateRegistered, false},

		{StateRecovering, eventCreated, StateRegistered, true},
		{StateRecovering, eventConflict, StateRegistering, true},
		{StateRecovering, eventExhausted, StateUnreachable, true},
		{StateRecovering, eventUpdated, StateRecovering, false},

		{StateUnreachable, eventRestart, StateUnidentified, true},
		{StateUnreachable, eventCreated, StateUnreachable, false},
		{StateUnreachable, eventExhausted, StateUnreachable, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"/"+tt.event.String(), func(t *testing.T) {
			got, ok := transition(tt.from, tt.event)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("transition(%s, %s) = %s, %v; want %s, %v",
					tt.from, tt.event, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	if got := State(42).String(); got != "state(42)" {
		t.Errorf("State(42).String() = %q", got)
	}
	if got := StateRecovering.String(); got != "recovering" {
		t.Errorf("StateRecovering.String() = %q", got)
	}
}
