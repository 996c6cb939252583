// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrBusClosed is returned when operating on a closed bus.
var ErrBusClosed = errors.New("event bus is closed")

// ErrSubscriptionNotFound is returned when unsubscribing with an unknown ID.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// MemoryBus is the in-memory Bus implementation.
type MemoryBus struct {
	mu      sync.RWMutex
	subs    map[SubscriptionID]*subscription
	history *History
	closed  atomic.Bool
	wg      sync.WaitGroup
	stop    chan struct{}
}

type subscription struct {
	pattern string
	handler Handler
	queue   chan Event    // nil for synchronous subscribers
	done    chan struct{} // closed on unsubscribe
}

// NewMemoryBus creates a bus whose history is bounded by maxEvents and maxAge.
func NewMemoryBus(maxEvents int, maxAge time.Duration) *MemoryBus {
	bus := &MemoryBus{
		subs:    make(map[SubscriptionID]*subscription),
		history: NewHistory(maxEvents, maxAge),
		stop:    make(chan struct{}),
	}

	interval := bus.history.maxAge / 10
	if interval < time.Minute {
		interval = time.Minute
	}

	bus.wg.Add(1)
	go func() {
		defer bus.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-bus.stop:
				return
			case <-ticker.C:
				bus.history.Prune()
			}
		}
	}()

	return bus
}

// Publish records the event and delivers it to every matching subscriber.
func (bus *MemoryBus) Publish(ctx context.Context, event Event) error {
	if bus.closed.Load() {
		return ErrBusClosed
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	bus.history.Add(event)

	bus.mu.RLock()
	targets := make([]*subscription, 0, len(bus.subs))
	for _, sub := range bus.subs {
		if Match(event.Type, sub.pattern) {
			targets = append(targets, sub)
		}
	}
	bus.mu.RUnlock()

	for _, sub := range targets {
		if sub.queue == nil {
			invoke(ctx, sub.handler, event)
			continue
		}
		select {
		case sub.queue <- event:
		default:
			log.Printf("events: dropped %s, subscriber buffer full", event.Type)
		}
	}
	return nil
}

// Subscribe registers a handler called synchronously from Publish.
func (bus *MemoryBus) Subscribe(pattern string, handler Handler) (SubscriptionID, error) {
	return bus.add(pattern, &subscription{pattern: pattern, handler: handler})
}

// SubscribeAsync registers a handler that runs on its own goroutine, fed by a
// buffered queue. Events are dropped when the queue is full.
func (bus *MemoryBus) SubscribeAsync(pattern string, handler Handler, bufferSize int) (SubscriptionID, error) {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	sub := &subscription{
		pattern: pattern,
		handler: handler,
		queue:   make(chan Event, bufferSize),
		done:    make(chan struct{}),
	}
	id, err := bus.add(pattern, sub)
	if err != nil {
		return "", err
	}

	bus.wg.Add(1)
	go func() {
		defer bus.wg.Done()
		for {
			select {
			case <-sub.done:
				return
			case ev := <-sub.queue:
				invoke(context.Background(), handler, ev)
			}
		}
	}()
	return id, nil
}

func (bus *MemoryBus) add(pattern string, sub *subscription) (SubscriptionID, error) {
	if bus.closed.Load() {
		return "", ErrBusClosed
	}
	if pattern == "" {
		return "", errors.New("empty pattern")
	}
	id := SubscriptionID(uuid.NewString())
	bus.mu.Lock()
	bus.subs[id] = sub
	bus.mu.Unlock()
	return id, nil
}

// Unsubscribe removes a subscription.
func (bus *MemoryBus) Unsubscribe(id SubscriptionID) error {
	bus.mu.Lock()
	sub, ok := bus.subs[id]
	delete(bus.subs, id)
	bus.mu.Unlock()

	if !ok {
		return ErrSubscriptionNotFound
	}
	if sub.done != nil {
		close(sub.done)
	}
	return nil
}

// History returns retained events matching the filter.
func (bus *MemoryBus) History(filter Filter) []Event {
	return bus.history.Query(filter)
}

// Close stops async subscribers and the pruner. It is safe to call twice.
func (bus *MemoryBus) Close() error {
	if bus.closed.Swap(true) {
		return nil
	}
	close(bus.stop)

	bus.mu.Lock()
	for id, sub := range bus.subs {
		if sub.done != nil {
			close(sub.done)
		}
		delete(bus.subs, id)
	}
	bus.mu.Unlock()

	bus.wg.Wait()
	return nil
}

func invoke(ctx context.Context, h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("events: handler panic for %s: %v", ev.Type, r)
		}
	}()
	h(ctx, ev)
}
