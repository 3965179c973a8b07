// Package stream fan-outs settlement events to in-process subscribers.
package stream

import (
	"context"
	"sync"
	"time"
)

// SettlementEvent describes a payment request being settled.
type SettlementEvent struct {
	RequestID string    `json:"request_id"`
	ExpenseID string    `json:"expense_id"`
	PayerID   string    `json:"payer_id"`
	OwnerID   string    `json:"owner_id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Timestamp time.Time `json:"timestamp"`
}

// Stream fan-outs settlement events to all active subscribers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan SettlementEvent
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan SettlementEvent)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan SettlementEvent {
	ch := make(chan SettlementEvent, 16)

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
func (s *Stream) Publish(evt SettlementEvent) {
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
