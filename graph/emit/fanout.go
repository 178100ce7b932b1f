package emit

import (
	"context"
	"sync"
)

// DropPolicy names what a FanoutEmitter does when a subscriber's internal
// buffer is full: drop the oldest buffered event to make room for the new
// one, or drop the new one and keep what's buffered.
type DropPolicy string

const (
	DropOldest DropPolicy = "drop-oldest"
	DropNewest DropPolicy = "drop-newest"
)

// FanoutEmitter publishes every event to N subscriber Emitters, isolating
// slow subscribers behind a bounded per-subscriber buffer so publication
// itself never blocks").
type FanoutEmitter struct {
	mu          sync.Mutex
	subscribers []*bufferedSubscriber
	policy      DropPolicy
	bufferSize  int
}

type bufferedSubscriber struct {
	target Emitter
	ch     chan Event
	done chan struct{}
}

// NewFanoutEmitter builds a FanoutEmitter with the given drop policy and
// per-subscriber buffer size (bufferSize <= 0 defaults to 256).
func NewFanoutEmitter(policy DropPolicy, bufferSize int) *FanoutEmitter {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if policy != DropOldest && policy != DropNewest {
		policy = DropOldest
	}
	return &FanoutEmitter{policy: policy, bufferSize: bufferSize}
}

// Subscribe registers target to receive every future Emit call, each
// delivered on its own goroutine so one slow subscriber never stalls
// another.
func (f *FanoutEmitter) Subscribe(target Emitter) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := &bufferedSubscriber{target: target, ch: make(chan Event, f.bufferSize), done: make(chan struct{})}
	f.subscribers = append(f.subscribers, s)
	go s.run()
}

func (s *bufferedSubscriber) run() {
	defer close(s.done)
	for ev := range s.ch {
		s.target.Emit(ev)
	}
}

// Emit implements Emitter, applying the configured drop policy when a
// subscriber's buffer is saturated.
func (f *FanoutEmitter) Emit(event Event) {
	f.mu.Lock()
	subs := make([]*bufferedSubscriber, len(f.subscribers))
	copy(subs, f.subscribers)
	f.mu.Unlock()

	for _, s := range subs {
		f.deliver(s, event)
	}
}

func (f *FanoutEmitter) deliver(s *bufferedSubscriber, event Event) {
	select {
	case s.ch <- event:
		return
	default:
	}

	switch f.policy {
	case DropNewest:
		return
	default: // DropOldest
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- event:
		default:
		}
	}
}

// EmitBatch implements Emitter by emitting each event in order.
func (f *FanoutEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, ev := range events {
		f.Emit(ev)
	}
	return nil
}

// Flush closes all subscriber channels and waits for their delivery
// goroutines to drain, then flushes each target.
func (f *FanoutEmitter) Flush(ctx context.Context) error {
	f.mu.Lock()
	subs := make([]*bufferedSubscriber, len(f.subscribers))
	copy(subs, f.subscribers)
	f.mu.Unlock()

	for _, s := range subs {
		close(s.ch)
		<-s.done
		if err := s.target.Flush(ctx); err != nil {
			return err
		}
	}
	f.subscribers = nil
	return nil
}
