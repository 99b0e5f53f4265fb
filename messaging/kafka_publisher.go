package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

type KafkaPublisherConfig struct {
	kafkaConfig  KafkaConfig
	keyGenerator KeyGenerator
	partitioner  string
}

type KafkaPublisher struct {
	config   KafkaPublisherConfig
	producer sarama.SyncProducer
}

type KafkaPublisherOption func(*KafkaPublisherConfig)

func WithPublisherLogger(logger *zap.Logger) KafkaPublisherOption {
	return func(c *KafkaPublisherConfig) {
		if logger != nil {
			c.kafkaConfig.lg = logger
		}
	}
}

func WithPublisherBrokers(brokers []string) KafkaPublisherOption {
	return func(c *KafkaPublisherConfig) {
		c.kafkaConfig.brokers = brokers
	}
}

func WithPublisherClientID(clientID string) KafkaPublisherOption {
	return func(c *KafkaPublisherConfig) {
		c.kafkaConfig.clientID = clientID
	}
}

func WithPublisherSaslPlain(username, password string) KafkaPublisherOption {
	return func(c *KafkaPublisherConfig) {
		c.kafkaConfig.saslPlainAuth = NewKafkaPlainAuth(username, password)
	}
}

func WithPublisherGmkAuth() KafkaPublisherOption {
	return func(c *KafkaPublisherConfig) {
		c.kafkaConfig.saslTokenProvider = NewGmkTokenProvider(c.kafkaConfig.lg)
	}
}

func WithKeyGenerator(keyGenerator KeyGenerator) KafkaPublisherOption {
	return func(c *KafkaPublisherConfig) {
		c.keyGenerator = keyGenerator
	}
}

func WithPartitioner(partitioner string) KafkaPublisherOption {
	return func(c *KafkaPublisherConfig) {
		c.partitioner = partitioner
	}
}

func defaultPublisherConfig() KafkaPublisherConfig {
	return KafkaPublisherConfig{
		kafkaConfig: defaultKafkaConfig(),
		partitioner: PartitionerHash,
	}
}

// ProducerConfig builds the sarama settings NewKafkaPublisher would use.
func (c KafkaPublisherConfig) ProducerConfig() (*sarama.Config, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	if err := c.kafkaConfig.apply(cfg); err != nil {
		return nil, err
	}

	switch c.partitioner {
	case PartitionerRandom:
		cfg.Producer.Partitioner = sarama.NewRandomPartitioner
	case PartitionerRoundRobin:
		cfg.Producer.Partitioner = sarama.NewRoundRobinPartitioner
	default:
		cfg.Producer.Partitioner = sarama.NewHashPartitioner
	}
	return cfg, nil
}

// NewKafkaPublisher connects a sync producer. The returned closer flushes
// and closes it.
func NewKafkaPublisher(opts ...KafkaPublisherOption) (Publisher, func() error, error) {
	config := defaultPublisherConfig()
	for _, opt := range opts {
		opt(&config)
	}

	producerConfig, err := config.ProducerConfig()
	if err != nil {
		return nil, nil, err
	}
	producer, err := sarama.NewSyncProducer(config.kafkaConfig.brokers, producerConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create producer: %w", err)
	}
	kp, closer := newKafkaPublisher(config, producer)
	return kp, closer, nil
}

func newKafkaPublisher(config KafkaPublisherConfig, producer sarama.SyncProducer) (*KafkaPublisher, func() error) {
	kp := &KafkaPublisher{config: config, producer: producer}
	closer := func() error {
		config.kafkaConfig.lg.Info("closing kafka producer",
			zap.Strings("brokers", config.kafkaConfig.brokers),
			zap.String("client_id", config.kafkaConfig.clientID),
		)
		return producer.Close()
	}
	return kp, closer
}

func (k *KafkaPublisher) Publish(ctx context.Context, msg Message, opts ...PublishOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	options := publishOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	headers := make([]sarama.RecordHeader, 0, len(msg.Metadata))
	for key, value := range msg.Metadata {
		headers = append(headers, sarama.RecordHeader{Key: []byte(key), Value: []byte(value)})
	}

	producerMsg := &sarama.ProducerMessage{
		Topic:   msg.Topic,
		Value:   sarama.ByteEncoder(payload),
		Headers: headers,
	}

	keyGenerator := k.config.keyGenerator
	if options.keyGenerator != nil {
		keyGenerator = options.keyGenerator
	}
	if keyGenerator != nil {
		if key := keyGenerator(msg); key != "" {
			producerMsg.Key = sarama.StringEncoder(key)
		}
	}

	if _, _, err := k.producer.SendMessage(producerMsg); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}
