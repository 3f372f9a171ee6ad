// Package pubsub is the event-transport seam used by subscription resolvers.
// The translation engine only depends on the PubSub interface; the adapters
// in this package connect it to an in-process broker, MQTT, SSE or Kafka.
package pubsub

import (
	"context"
	"errors"
)

var (
	ErrPublishUnsupported = errors.New("publish is not supported by this transport")
	ErrClosed             = errors.New("pubsub: closed")
)

// Message is one published payload.
type Message struct {
	Topic string
	Data  []byte
}

// PubSub delivers messages for topic subscriptions. Subscribe returns a
// channel that is closed when ctx is done or the transport shuts down.
// Topic syntax follows MQTT: `+` matches one level, `#` the remainder.
type PubSub interface {
	Subscribe(ctx context.Context, topic string) (<-chan Message, error)
	Publish(ctx context.Context, topic string, data []byte) error
}
