// Package memory is an in-process Broker. Every subscriber of a topic gets
// its own buffered channel; publishing to a full subscriber waits until the
// publish context is done.
package memory

import (
	"context"
	"sync"

	"github.com/jwalitptl/labalert/pkg/messaging"
)

type subscriber struct {
	ch   chan messaging.Message
	done <-chan struct{}
}

type Broker struct {
	mu     sync.RWMutex
	subs   map[string][]*subscriber
	buffer int
	closed bool
}

func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 100
	}
	return &Broker{
		subs:   make(map[string][]*subscriber),
		buffer: buffer,
	}
}

func (b *Broker) Publish(ctx context.Context, topic string, msg messaging.Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return messaging.ErrClosed
	}

	msg.Attributes = copyAttrs(msg.Attributes)
	for _, s := range b.subs[topic] {
		select {
		case s.ch <- msg:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe registers a subscriber that lives until ctx is done or the
// broker is closed.
func (b *Broker) Subscribe(ctx context.Context, topic string) (<-chan messaging.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, messaging.ErrClosed
	}

	s := &subscriber{
		ch:   make(chan messaging.Message, b.buffer),
		done: ctx.Done(),
	}
	b.subs[topic] = append(b.subs[topic], s)

	go func() {
		<-ctx.Done()
		b.remove(topic, s)
	}()

	return s.ch, nil
}

func (b *Broker) remove(topic string, target *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[topic]
	for i, s := range subs {
		if s == target {
			b.subs[topic] = append(subs[:i], subs[i+1:]...)
			close(s.ch)
			return
		}
	}
}

// Subscribers reports how many live subscriptions a topic has.
func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for topic, subs := range b.subs {
		for _, s := range subs {
			close(s.ch)
		}
		delete(b.subs, topic)
	}
	return nil
}

func copyAttrs(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
