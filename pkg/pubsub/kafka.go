package pubsub

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	log "github.com/jensneuse/abstractlogger"
)

// KafkaOptions configures the Kafka transport adapter. Each subscription
// joins the configured consumer group for its topic.
type KafkaOptions struct {
	BrokerAddrs []string
	GroupID     string
	ClientID    string
	Logger      log.Logger
}

// Kafka adapts a Kafka cluster to the PubSub interface using one consumer
// group session per subscription and a shared sync producer for publishing.
type Kafka struct {
	options  KafkaOptions
	producer sarama.SyncProducer
	log      log.Logger
}

func NewKafka(options KafkaOptions) (*Kafka, error) {
	logger := options.Logger
	if logger == nil {
		logger = log.NoopLogger
	}

	sc := sarama.NewConfig()
	sc.Version = sarama.V2_7_0_0
	sc.ClientID = options.ClientID
	sc.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(options.BrokerAddrs, sc)
	if err != nil {
		return nil, err
	}

	return &Kafka{
		options:  options,
		producer: producer,
		log:      logger,
	}, nil
}

type kafkaConsumerGroupHandler struct {
	log      log.Logger
	topic    string
	messages chan Message
	ctx      context.Context
}

func (k *kafkaConsumerGroupHandler) Setup(_ sarama.ConsumerGroupSession) error {
	k.log.Debug("kafkaConsumerGroupHandler.Setup", log.String("topic", k.topic))
	return nil
}

func (k *kafkaConsumerGroupHandler) Cleanup(_ sarama.ConsumerGroupSession) error {
	k.log.Debug("kafkaConsumerGroupHandler.Cleanup", log.String("topic", k.topic))
	close(k.messages)
	return nil
}

func (k *kafkaConsumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		ctx, cancel := context.WithTimeout(k.ctx, time.Second*5)
		select {
		case k.messages <- Message{Topic: msg.Topic, Data: msg.Value}:
			cancel()
			session.MarkMessage(msg, "")
		case <-ctx.Done():
			cancel()
		case <-k.ctx.Done():
			cancel()
			return nil
		}
	}
	return nil
}

func (k *Kafka) Subscribe(ctx context.Context, topic string) (<-chan Message, error) {
	sc := sarama.NewConfig()
	sc.Version = sarama.V2_7_0_0
	sc.ClientID = k.options.ClientID

	cg, err := sarama.NewConsumerGroup(k.options.BrokerAddrs, k.options.GroupID, sc)
	if err != nil {
		return nil, err
	}

	messages := make(chan Message, 16)
	handler := &kafkaConsumerGroupHandler{
		log:      k.log,
		topic:    topic,
		messages: messages,
		ctx:      ctx,
	}

	go func() {
		<-ctx.Done()
		if err := cg.Close(); err != nil {
			k.log.Error("Kafka.Subscribe: closing consumer group", log.Error(err))
		}
	}()

	go func() {
		if err := cg.Consume(ctx, []string{topic}, handler); err != nil {
			k.log.Error("Kafka.Subscribe: consume", log.String("topic", topic), log.Error(err))
		}
	}()

	return messages, nil
}

func (k *Kafka) Publish(_ context.Context, topic string, data []byte) error {
	_, _, err := k.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(data),
	})
	return err
}

func (k *Kafka) Close() error {
	return k.producer.Close()
}
