package realtime

import (
	"context"
	"sync"
)

// MemoryBroker fans events out inside a single process.
type MemoryBroker struct {
	mu     sync.RWMutex
	subs   map[Topic]map[chan ChangeEvent]struct{}
	closed bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[Topic]map[chan ChangeEvent]struct{})}
}

func (b *MemoryBroker) Publish(_ context.Context, event ChangeEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[event.Topic] {
		select {
		case ch <- event:
		default:
			// subscriber is behind; drop
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(topics ...Topic) *Subscription {
	ch := make(chan ChangeEvent, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return newSubscription(ch, func() {})
	}
	for _, t := range topics {
		if b.subs[t] == nil {
			b.subs[t] = make(map[chan ChangeEvent]struct{})
		}
		b.subs[t][ch] = struct{}{}
	}
	b.mu.Unlock()

	return newSubscription(ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.closed {
			return
		}
		for _, t := range topics {
			delete(b.subs[t], ch)
		}
		close(ch)
	})
}

// Close closes every open subscription.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	seen := make(map[chan ChangeEvent]struct{})
	for _, set := range b.subs {
		for ch := range set {
			if _, ok := seen[ch]; !ok {
				seen[ch] = struct{}{}
				close(ch)
			}
		}
	}
	b.subs = nil
	return nil
}
