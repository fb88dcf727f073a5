package fsm

import (
	"context"
	"errors"
	"testing"

	"github.com/looplab/fsm"
)

func TestReturnStateMachine_Transitions(t *testing.T) {
	tests := []struct {
		name         string
		currentState string
		event        string
		wantState    string
		wantErr      bool
	}{
		{"request from completed", ReturnStateCompleted, ReturnEventRequest, ReturnStateRequested, false},
		{"confirm requested", ReturnStateRequested, ReturnEventConfirm, ReturnStateReturned, false},
		{"reject requested", ReturnStateRequested, ReturnEventReject, ReturnStateRejected, false},
		{"request twice", ReturnStateRequested, ReturnEventRequest, "", true},
		{"confirm without request", ReturnStateCompleted, ReturnEventConfirm, "", true},
		{"reject without request", ReturnStateCompleted, ReturnEventReject, "", true},
		{"returned is terminal", ReturnStateReturned, ReturnEventRequest, "", true},
		{"rejected is terminal", ReturnStateRejected, ReturnEventRequest, "", true},
		{"rejected cannot confirm", ReturnStateRejected, ReturnEventConfirm, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rsm := NewReturnStateMachine()

			got, err := rsm.Transition(context.Background(), tt.currentState, tt.event)
			if tt.wantErr {
				var invalidErr fsm.InvalidEventError
				if !errors.As(err, &invalidErr) {
					t.Errorf("expected InvalidEventError, got %T: %v", err, err)
				}
				if rsm.CanTransition(tt.currentState, tt.event) {
					t.Errorf("CanTransition(%s, %s) = true", tt.currentState, tt.event)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.wantState {
				t.Errorf("got state %q, want %q", got, tt.wantState)
			}
		})
	}
}

func TestReturnStateMachine_TerminalStates(t *testing.T) {
	rsm := NewReturnStateMachine()
	for _, s := range []string{ReturnStateReturned, ReturnStateRejected} {
		if events := rsm.AvailableEvents(s); len(events) != 0 {
			t.Errorf("%s should be terminal, has events %v", s, events)
		}
	}
}
