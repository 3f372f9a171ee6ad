package pubsub

import (
	"context"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/jensneuse/abstractlogger"
)

// MQTTOptions configures the MQTT transport adapter.
type MQTTOptions struct {
	BrokerAddr string
	ClientID   string
	QoS        byte
	Logger     log.Logger
}

// MQTT adapts an MQTT broker connection to the PubSub interface.
type MQTT struct {
	client mqtt.Client
	qos    byte
	log    log.Logger
}

func NewMQTT(options MQTTOptions) (*MQTT, error) {
	logger := options.Logger
	if logger == nil {
		logger = log.NoopLogger
	}

	opts := mqtt.NewClientOptions().
		AddBroker(options.BrokerAddr).
		SetClientID(options.ClientID)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}

	return &MQTT{
		client: client,
		qos:    options.QoS,
		log:    logger,
	}, nil
}

func (m *MQTT) Subscribe(ctx context.Context, topic string) (<-chan Message, error) {
	messages := make(chan Message, 16)

	token := m.client.Subscribe(topic, m.qos, func(_ mqtt.Client, msg mqtt.Message) {
		select {
		case messages <- Message{Topic: msg.Topic(), Data: msg.Payload()}:
		case <-ctx.Done():
		}
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		token := m.client.Unsubscribe(topic)
		token.Wait()
		if err := token.Error(); err != nil {
			m.log.Error("MQTT.Subscribe: unsubscribe failed",
				log.String("topic", topic),
				log.Error(err),
			)
		}
		close(messages)
	}()

	return messages, nil
}

func (m *MQTT) Publish(_ context.Context, topic string, data []byte) error {
	token := m.client.Publish(topic, m.qos, false, data)
	token.Wait()
	return token.Error()
}

func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}
