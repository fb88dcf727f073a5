package fsm

import "github.com/looplab/fsm"

// OrderStateMachine is the lifecycle of an open order. Reserve is a soft
// hold; no transition here touches stock except fulfill.
type OrderStateMachine struct {
	*machine
}

func NewOrderStateMachine() *OrderStateMachine {
	return &OrderStateMachine{newMachine(
		OrderStateNew,
		fsm.Events{
			{Name: OrderEventReserve, Src: []string{OrderStateNew}, Dst: OrderStateReserved},
			{Name: OrderEventConfirm, Src: []string{OrderStateReserved}, Dst: OrderStatePending},
			{Name: OrderEventCancel, Src: []string{OrderStateNew, OrderStateReserved, OrderStatePending}, Dst: OrderStateCancelled},
			{Name: OrderEventFulfill, Src: []string{OrderStateNew, OrderStatePending}, Dst: OrderStateCompleted},
		},
	)}
}
