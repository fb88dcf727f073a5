package fsm

import (
	"context"
	"fmt"
	"sync"

	"github.com/looplab/fsm"
)

// MessageProcessor tracks the operator DM loop: one message is handled and
// answered before the next one is taken.
type MessageProcessor struct {
	fsm     *fsm.FSM
	mu      sync.Mutex
	onEnter map[string]func()
	handled int
	failed  int
}

func NewMessageProcessor() *MessageProcessor {
	p := &MessageProcessor{onEnter: make(map[string]func())}
	p.fsm = fsm.NewFSM(
		ProcessorStateIdle,
		fsm.Events{
			{Name: ProcessorEventDMReceived, Src: []string{ProcessorStateIdle}, Dst: ProcessorStateProcessingDM},
			{Name: ProcessorEventCommandProcessed, Src: []string{ProcessorStateProcessingDM}, Dst: ProcessorStateSendingResponse},
			{Name: ProcessorEventResponseSent, Src: []string{ProcessorStateSendingResponse}, Dst: ProcessorStateIdle},
			{Name: ProcessorEventError, Src: []string{ProcessorStateProcessingDM, ProcessorStateSendingResponse}, Dst: ProcessorStateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				if fn, ok := p.onEnter[e.Dst]; ok {
					fn()
				}
			},
		},
	)
	return p
}

func (p *MessageProcessor) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fsm.Current()
}

func (p *MessageProcessor) Event(ctx context.Context, event string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fsm.Event(ctx, event)
}

func (p *MessageProcessor) Can(event string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fsm.Can(event)
}

// OnEnter registers fn to run whenever state is entered. fn must not call
// back into the processor.
func (p *MessageProcessor) OnEnter(state string, fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onEnter[state] = fn
}

func (p *MessageProcessor) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fsm.SetState(ProcessorStateIdle)
}

// Stats returns how many messages were answered and how many failed.
func (p *MessageProcessor) Stats() (handled, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handled, p.failed
}

// Process walks one message through the loop: handle produces the reply and
// send delivers it. Any failure returns the processor to idle.
func (p *MessageProcessor) Process(
	ctx context.Context,
	handle func(context.Context) (string, error),
	send func(context.Context, string) error,
) error {
	if err := p.Event(ctx, ProcessorEventDMReceived); err != nil {
		return fmt.Errorf("processor busy: %w", err)
	}

	reply, err := handle(ctx)
	if err != nil {
		p.fail(ctx)
		return fmt.Errorf("handling message: %w", err)
	}

	if err := p.Event(ctx, ProcessorEventCommandProcessed); err != nil {
		p.fail(ctx)
		return err
	}

	if err := send(ctx, reply); err != nil {
		p.fail(ctx)
		return fmt.Errorf("sending reply: %w", err)
	}

	if err := p.Event(ctx, ProcessorEventResponseSent); err != nil {
		p.fail(ctx)
		return err
	}

	p.mu.Lock()
	p.handled++
	p.mu.Unlock()
	return nil
}

func (p *MessageProcessor) fail(ctx context.Context) {
	if err := p.Event(ctx, ProcessorEventError); err != nil {
		p.Reset()
	}
	p.mu.Lock()
	p.failed++
	p.mu.Unlock()
}
