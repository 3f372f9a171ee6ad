package resolve

import (
	"encoding/json"
	"fmt"
	"strings"

	log "github.com/jensneuse/abstractlogger"
	"github.com/tidwall/gjson"

	"github.com/oasgraph/oasgraph/pkg/graph"
	"github.com/oasgraph/oasgraph/pkg/preprocess"
	"github.com/oasgraph/oasgraph/pkg/pubsub"
)

// Subscriber builds the subscribe function for a callback-sourced operation.
// The topic template is resolved against the field arguments at subscribe
// time; each published payload is forwarded to the field's resolver.
func (b *Builder) Subscriber(op *preprocess.Operation, source pubsub.PubSub) graph.SubscribeFunc {
	return func(params graph.ResolveParams) (<-chan []byte, error) {
		topic, err := b.topic(op, params.Args)
		if err != nil {
			return nil, err
		}

		b.log.Debug("resolve: subscribing",
			log.String("operation", op.Identifier()),
			log.String("topic", topic),
		)

		messages, err := source.Subscribe(params.Ctx, topic)
		if err != nil {
			return nil, fmt.Errorf("subscribe %s: %w", op.Identifier(), err)
		}

		out := make(chan []byte)
		go func() {
			defer close(out)
			for {
				select {
				case message, ok := <-messages:
					if !ok {
						return
					}
					select {
					case out <- message.Data:
					case <-params.Ctx.Done():
						return
					}
				case <-params.Ctx.Done():
					return
				}
			}
		}()
		return out, nil
	}
}

// MessageResolver reshapes a published payload into the subscription field's
// response type. The source handed in by the host engine is the raw message.
func (b *Builder) MessageResolver(op *preprocess.Operation) graph.ResolveFunc {
	return func(params graph.ResolveParams) (interface{}, error) {
		data, ok := params.Source.([]byte)
		if !ok {
			return params.Source, nil
		}
		var decoded interface{}
		if err := json.Unmarshal(data, &decoded); err != nil {
			return string(data), nil
		}
		reshaped := b.reshape(decoded)
		if m, ok := reshaped.(map[string]interface{}); ok {
			carrier := &graph.Carrier{Args: params.Args, Response: data}
			return graph.AttachCarrier(m, carrier), nil
		}
		return reshaped, nil
	}
}

// topic resolves the callback key expression into a concrete topic. Runtime
// expressions are evaluated against the field arguments, which stand in for
// the request that would have registered the callback; bare {name} segments
// are path parameters.
func (b *Builder) topic(op *preprocess.Operation, args map[string]interface{}) (string, error) {
	template := op.TopicExpression
	if template == "" {
		template = op.Path
	}

	body, err := json.Marshal(b.desanitize(args))
	if err != nil {
		return "", err
	}

	var firstErr error
	resolved := interpolationRegex.ReplaceAllStringFunc(template, func(match string) string {
		inner := strings.TrimSpace(match[1 : len(match)-1])
		if strings.HasPrefix(inner, "$") {
			value, err := b.topicExpression(inner, body, args)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return match
			}
			return value
		}
		if value, ok := args[b.argName(inner)]; ok {
			return formatValue(value)
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("topic template %q: no argument for %q", template, inner)
		}
		return match
	})
	if firstErr != nil {
		return "", fmt.Errorf("operation %s: %w", op.Identifier(), firstErr)
	}
	return resolved, nil
}

func (b *Builder) topicExpression(expr string, body []byte, args map[string]interface{}) (string, error) {
	switch {
	case strings.HasPrefix(expr, "$request.body#"):
		result := gjson.GetBytes(body, pointerPath(strings.TrimPrefix(expr, "$request.body#")))
		if !result.Exists() {
			return "", fmt.Errorf("expression %q did not match the subscribe arguments", expr)
		}
		return result.String(), nil
	case strings.HasPrefix(expr, "$request.query."):
		name := strings.TrimPrefix(expr, "$request.query.")
		if value, ok := args[b.argName(name)]; ok {
			return formatValue(value), nil
		}
		return "", fmt.Errorf("expression %q: no argument %q", expr, name)
	case strings.HasPrefix(expr, "$request.path."):
		name := strings.TrimPrefix(expr, "$request.path.")
		if value, ok := args[b.argName(name)]; ok {
			return formatValue(value), nil
		}
		return "", fmt.Errorf("expression %q: no argument %q", expr, name)
	}
	return "", fmt.Errorf("unsupported topic expression %q", expr)
}
