package stream

import (
	"context"
	"testing"
	"time"
)

func TestPublishFanOut(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := s.Subscribe(ctx)
	b := s.Subscribe(ctx)

	evt := PaymentEvent{ClusterID: "c-1", Reference: "ref-1", Amount: 1000, Currency: "NGN", Status: "successful"}
	s.Publish(evt)

	for _, ch := range []<-chan PaymentEvent{a, b} {
		select {
		case got := <-ch:
			if got.Reference != "ref-1" {
				t.Fatalf("unexpected event: %+v", got)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestSlowSubscriberDropped(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx)
	for i := 0; i < 100; i++ {
		s.Publish(PaymentEvent{Reference: "ref"})
	}
	// Buffer is 16; the rest must have been dropped without blocking Publish.
	if n := len(ch); n != 16 {
		t.Fatalf("expected full buffer of 16, got %d", n)
	}
}

func TestUnsubscribeOnContextCancel(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx)
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel was not closed after cancel")
		}
	}
}
