package pubsub

import (
	"context"

	log "github.com/jensneuse/abstractlogger"
	"github.com/r3labs/sse/v2"
)

// SSEOptions configures the server-sent-events transport adapter. Topic names
// map to SSE stream names on the configured endpoint.
type SSEOptions struct {
	URL    string
	Logger log.Logger
}

// SSE adapts a server-sent-events endpoint to the PubSub interface. The
// transport is receive-only; Publish returns ErrPublishUnsupported.
type SSE struct {
	client *sse.Client
	log    log.Logger
}

func NewSSE(options SSEOptions) *SSE {
	logger := options.Logger
	if logger == nil {
		logger = log.NoopLogger
	}
	return &SSE{
		client: sse.NewClient(options.URL),
		log:    logger,
	}
}

func (s *SSE) Subscribe(ctx context.Context, topic string) (<-chan Message, error) {
	events := make(chan *sse.Event)
	if err := s.client.SubscribeChanWithContext(ctx, topic, events); err != nil {
		return nil, err
	}

	messages := make(chan Message, 16)
	go func() {
		defer close(messages)
		for {
			select {
			case <-ctx.Done():
				s.client.Unsubscribe(events)
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				messages <- Message{Topic: topic, Data: event.Data}
			}
		}
	}()
	return messages, nil
}

func (s *SSE) Publish(_ context.Context, _ string, _ []byte) error {
	return ErrPublishUnsupported
}
