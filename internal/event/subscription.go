package event

import (
	"context"
	"sync"

	"github.com/YetiPanda/jade-ecosystem-sub005/pkg/errcode"
)

// ErrSubscriptionClosed is returned by Next after Close.
var ErrSubscriptionClosed = errcode.New(5005, "subscription closed")

// Subscription bridges push-based bus delivery to a pull-based iteration
// contract for one external subscriber. Matching events arriving before the
// next pull are queued; a pull with an empty queue suspends until the next
// matching event or cancellation.
type Subscription struct {
	mu     sync.Mutex
	queue  []Event
	wake   chan struct{}
	done   chan struct{}
	unsub  func()
	closed bool
}

// NewSubscription registers a listener on bus for the named event, keeping
// only events for which match returns true (a nil match keeps everything).
// Close must be called when the consumer is finished or the bus listener
// leaks for the lifetime of the process.
func NewSubscription(bus *Bus, name string, match func(Event) bool) *Subscription {
	s := &Subscription{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	s.unsub = bus.Subscribe(name, func(ctx context.Context, evt Event) {
		if match != nil && !match(evt) {
			return
		}
		s.push(evt)
	})
	return s
}

func (s *Subscription) push(evt Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, evt)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Next returns the next matching event, blocking until one arrives, the
// context is cancelled, or the subscription is closed.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			evt := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return evt, nil
		}
		if s.closed {
			s.mu.Unlock()
			return nil, ErrSubscriptionClosed
		}
		s.mu.Unlock()

		select {
		case <-s.wake:
		case <-s.done:
			// Drain anything that raced in before the close.
			s.mu.Lock()
			if len(s.queue) > 0 {
				evt := s.queue[0]
				s.queue = s.queue[1:]
				s.mu.Unlock()
				return evt, nil
			}
			s.mu.Unlock()
			return nil, ErrSubscriptionClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Pending returns the number of queued, not yet pulled events.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close deregisters the bus listener and releases any blocked Next caller.
// It is idempotent.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.unsub()
	close(s.done)
}
