package stream

import (
	"context"
	"sync"
	"time"

	"plixa.org/internal/cluster"
)

// PaymentEvent describes a settled payment for live dashboards.
type PaymentEvent struct {
	ClusterID string    `json:"cluster_id"`
	Reference string    `json:"reference"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// FromTransaction builds the broadcastable view of a recorded transaction.
func FromTransaction(tx cluster.Transaction) PaymentEvent {
	return PaymentEvent{
		ClusterID: tx.ClusterID,
		Reference: tx.Reference,
		Amount:    tx.Amount.Amount,
		Currency:  tx.Amount.Currency,
		Status:    string(tx.Status),
		Timestamp: tx.CreatedAt,
	}
}

// Stream fan-outs payment events to all active subscribers (SSE clients).
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan PaymentEvent
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan PaymentEvent)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan PaymentEvent {
	ch := make(chan PaymentEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(evt PaymentEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
