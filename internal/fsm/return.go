package fsm

import "github.com/looplab/fsm"

// ReturnStateMachine is the lifecycle of a completed order. Both returned
// and return_rejected are terminal.
type ReturnStateMachine struct {
	*machine
}

func NewReturnStateMachine() *ReturnStateMachine {
	return &ReturnStateMachine{newMachine(
		ReturnStateCompleted,
		fsm.Events{
			{Name: ReturnEventRequest, Src: []string{ReturnStateCompleted}, Dst: ReturnStateRequested},
			{Name: ReturnEventConfirm, Src: []string{ReturnStateRequested}, Dst: ReturnStateReturned},
			{Name: ReturnEventReject, Src: []string{ReturnStateRequested}, Dst: ReturnStateRejected},
		},
	)}
}
