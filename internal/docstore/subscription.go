package docstore

import (
	"context"
	"sync"
)

// Snapshot is one delivery of a subscription: either the complete ordered
// result set or an error. An error does not end the subscription.
type Snapshot struct {
	Docs []Document
	Err  error
}

// Subscription is a live query handle. Events is closed once the
// subscription has stopped; Close stops it and waits for the delivering
// goroutine to exit.
type Subscription struct {
	events chan Snapshot
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Emit sends a snapshot to the subscriber. It returns false once the
// subscription has been cancelled.
type Emit func(Snapshot) bool

// NewSubscription runs run in its own goroutine until it returns. run must
// return promptly once ctx is done. Backends use it to share the handle
// lifecycle.
func NewSubscription(parent context.Context, run func(ctx context.Context, emit Emit)) *Subscription {
	ctx, cancel := context.WithCancel(parent)
	s := &Subscription{
		events: make(chan Snapshot, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	emit := func(snap Snapshot) bool {
		select {
		case s.events <- snap:
			return true
		case <-ctx.Done():
			return false
		}
	}
	go func() {
		defer close(s.done)
		defer close(s.events)
		run(ctx, emit)
	}()
	return s
}

func (s *Subscription) Events() <-chan Snapshot {
	return s.events
}

// Done is closed after the subscription goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close releases the subscription. It is safe to call more than once.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
	return nil
}
