package eventing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"ento-core/internal/eventing"
	eventingmemory "ento-core/internal/eventing/infrastructure/memory"
)

type creditGranted struct {
	Account    string    `json:"account"`
	Amount     string    `json:"amount"`
	OccurredAt time.Time `json:"occurred_at"`
}

func TestPublishDeliversThroughOutbox(t *testing.T) {
	bus := eventing.NewInMemoryBus()
	outbox := eventingmemory.NewOutboxStore()
	registry := eventing.NewRegistry()
	registry.Register(creditGranted{})

	var received []creditGranted
	eventing.Subscribe(bus, eventing.EventTypeOf[creditGranted](), "test-consumer",
		func(_ context.Context, event any) error {
			received = append(received, event.(creditGranted))
			return nil
		}, nil)

	dispatcher := eventing.NewDispatcher(bus, outbox, registry)
	publisher := eventing.NewPublisher(outbox, dispatcher, "token")

	occurred := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	err := publisher.Publish(context.Background(), creditGranted{
		Account:    "alice",
		Amount:     "100",
		OccurredAt: occurred,
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(received) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(received))
	}
	if received[0].Account != "alice" || received[0].Amount != "100" {
		t.Fatalf("unexpected payload %+v", received[0])
	}
	if outbox.SentCount() != 1 {
		t.Fatalf("expected 1 sent record, got %d", outbox.SentCount())
	}
}

func TestSubscribeSuppressesDuplicateEnvelopes(t *testing.T) {
	bus := eventing.NewInMemoryBus()
	processed := eventingmemory.NewProcessedStore()

	var calls int
	eventing.Subscribe(bus, eventing.EventTypeOf[creditGranted](), "test-consumer",
		func(_ context.Context, _ any) error {
			calls++
			return nil
		}, processed)

	env := eventing.Envelope{EventID: "evt-1", EventType: eventing.EventTypeOf[creditGranted]()}
	ctx := eventing.WithEnvelope(context.Background(), env)
	event := creditGranted{Account: "alice"}

	if err := bus.Publish(ctx, event); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if err := bus.Publish(ctx, event); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected single handling, got %d", calls)
	}

	// A different consumer sees the event once too.
	var other int
	eventing.Subscribe(bus, eventing.EventTypeOf[creditGranted](), "other-consumer",
		func(_ context.Context, _ any) error {
			other++
			return nil
		}, processed)
	if err := bus.Publish(ctx, event); err != nil {
		t.Fatalf("third publish: %v", err)
	}
	if calls != 1 || other != 1 {
		t.Fatalf("per-consumer idempotency broken: %d/%d", calls, other)
	}
}

func TestSubscribeRetriesAfterHandlerError(t *testing.T) {
	bus := eventing.NewInMemoryBus()
	processed := eventingmemory.NewProcessedStore()

	var calls int
	eventing.Subscribe(bus, eventing.EventTypeOf[creditGranted](), "flaky",
		func(_ context.Context, _ any) error {
			calls++
			if calls == 1 {
				return errors.New("transient")
			}
			return nil
		}, processed)

	env := eventing.Envelope{EventID: "evt-2", EventType: eventing.EventTypeOf[creditGranted]()}
	ctx := eventing.WithEnvelope(context.Background(), env)
	event := creditGranted{Account: "bob"}

	if err := bus.Publish(ctx, event); err == nil {
		t.Fatal("expected handler error to surface")
	}
	// The failed attempt was not marked processed, so redelivery runs it.
	if err := bus.Publish(ctx, event); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestBuildEnvelopeExtractsAccount(t *testing.T) {
	occurred := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	env, err := eventing.BuildEnvelope(creditGranted{Account: "carol", OccurredAt: occurred}, eventing.Meta{Module: "token"})
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	if env.Account != "carol" {
		t.Fatalf("account not extracted: %q", env.Account)
	}
	if !env.OccurredAt.Equal(occurred) {
		t.Fatalf("occurred-at not extracted: %s", env.OccurredAt)
	}
	if env.EventID == "" || env.CorrelationID != env.EventID {
		t.Fatalf("id defaults broken: %+v", env)
	}
	if env.EventType != eventing.EventTypeOf[creditGranted]() {
		t.Fatalf("unexpected event type %q", env.EventType)
	}
}
