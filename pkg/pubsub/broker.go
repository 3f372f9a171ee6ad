package pubsub

import (
	"context"
	"strings"
	"sync"
)

// Broker is an in-process PubSub with MQTT-style topic matching. It backs
// subscription resolvers in tests and single-process deployments.
type Broker struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

type subscriber struct {
	filter string
	ch     chan Message
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[*subscriber]struct{}),
	}
}

func (b *Broker) Subscribe(ctx context.Context, topic string) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	sub := &subscriber{
		filter: topic,
		ch:     make(chan Message, 16),
	}
	b.subs[sub] = struct{}{}

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[sub]; ok {
			delete(b.subs, sub)
			close(sub.ch)
		}
	}()

	return sub.ch, nil
}

func (b *Broker) Publish(_ context.Context, topic string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	for sub := range b.subs {
		if !TopicMatches(sub.filter, topic) {
			continue
		}
		select {
		case sub.ch <- Message{Topic: topic, Data: data}:
		default:
			// Slow subscriber, drop rather than block the publisher.
		}
	}
	return nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
	return nil
}

// TopicMatches reports whether an MQTT-style filter matches a concrete topic.
func TopicMatches(filter, topic string) bool {
	filterParts := strings.Split(filter, "/")
	topicParts := strings.Split(topic, "/")

	for i, part := range filterParts {
		if part == "#" {
			return true
		}
		if i >= len(topicParts) {
			return false
		}
		if part != "+" && part != topicParts[i] {
			return false
		}
	}
	return len(filterParts) == len(topicParts)
}
