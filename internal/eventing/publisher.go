package eventing

import "context"

// Publisher writes events to the outbox and triggers dispatch.
type Publisher struct {
	outbox   OutboxStore
	dispatch *Dispatcher
	module   string
}

// NewPublisher constructs a publisher for one module.
func NewPublisher(outbox OutboxStore, dispatch *Dispatcher, module string) *Publisher {
	return &Publisher{outbox: outbox, dispatch: dispatch, module: module}
}

// Publish writes the event to the outbox and triggers dispatch.
// A nil publisher is a no-op so modules can run without eventing wired.
func (p *Publisher) Publish(ctx context.Context, event any) error {
	if p == nil || p.outbox == nil {
		return nil
	}
	meta := MetaFromContext(ctx, p.module)
	env, err := BuildEnvelope(event, meta)
	if err != nil {
		return err
	}
	if _, err := p.outbox.Insert(ctx, env); err != nil {
		return err
	}
	if p.dispatch != nil {
		_ = p.dispatch.Dispatch(ctx, 1)
	}
	return nil
}
