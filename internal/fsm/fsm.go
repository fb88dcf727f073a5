// Package fsm holds the lifecycle tables for orders, completed orders and the
// operator message processor.
package fsm

import (
	"context"
	"sync"

	"github.com/looplab/fsm"
)

const (
	OrderStateNew       = "new"
	OrderStateReserved  = "reserved"
	OrderStatePending   = "pending"
	OrderStateCompleted = "completed"
	OrderStateCancelled = "cancelled"
)

const (
	OrderEventReserve = "reserve"
	OrderEventConfirm = "confirm"
	OrderEventCancel  = "cancel"
	OrderEventFulfill = "fulfill"
)

const (
	ReturnStateCompleted = "completed"
	ReturnStateRequested = "return_requested"
	ReturnStateReturned  = "returned"
	ReturnStateRejected  = "return_rejected"
)

const (
	ReturnEventRequest = "request_return"
	ReturnEventConfirm = "confirm_return"
	ReturnEventReject  = "reject_return"
)

const (
	ProcessorStateIdle            = "idle"
	ProcessorStateProcessingDM    = "processing_dm"
	ProcessorStateSendingResponse = "sending_response"
)

const (
	ProcessorEventDMReceived       = "dm_received"
	ProcessorEventCommandProcessed = "command_processed"
	ProcessorEventResponseSent     = "response_sent"
	ProcessorEventError            = "error"
)

// machine evaluates a stateless transition table: every call positions the
// underlying FSM at the caller's current state first.
type machine struct {
	fsm *fsm.FSM
	mu  sync.Mutex
}

func newMachine(initial string, events fsm.Events) *machine {
	return &machine{fsm: fsm.NewFSM(initial, events, fsm.Callbacks{})}
}

func (m *machine) CanTransition(currentState, event string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fsm.SetState(currentState)
	return m.fsm.Can(event)
}

func (m *machine) Transition(ctx context.Context, currentState, event string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fsm.SetState(currentState)
	if err := m.fsm.Event(ctx, event); err != nil {
		return "", err
	}
	return m.fsm.Current(), nil
}

func (m *machine) AvailableEvents(currentState string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fsm.SetState(currentState)
	return m.fsm.AvailableTransitions()
}
