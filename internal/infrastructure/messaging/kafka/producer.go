// internal/infrastructure/messaging/kafka/producer.go
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
	"github.com/your-org/bookstore-backend/internal/config"
	"github.com/your-org/bookstore-backend/internal/pkg/events"
)

// Publisher writes domain events to a single topic keyed by aggregate id.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   logrus.FieldLogger
}

// NewProducer dials the configured brokers
func NewProducer(cfg config.KafkaConfig) (sarama.SyncProducer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.ClientID = cfg.ClientID
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return producer, nil
}

// NewPublisher wraps an existing producer
func NewPublisher(producer sarama.SyncProducer, topic string, logger logrus.FieldLogger) *Publisher {
	return &Publisher{producer: producer, topic: topic, logger: logger}
}

// Publish sends one event and waits for all in-sync replicas.
func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.Key),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"topic":      p.topic,
		"event_type": event.Type,
		"key":        event.Key,
		"partition":  partition,
		"offset":     offset,
	}).Debug("Event published")

	return nil
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}

// NewFromConfig returns a Kafka publisher, or a no-op one when no brokers are configured.
func NewFromConfig(cfg config.KafkaConfig, logger logrus.FieldLogger) (events.Publisher, error) {
	if len(cfg.Brokers) == 0 {
		logger.Info("Kafka brokers not configured, domain events disabled")
		return events.Nop(), nil
	}

	producer, err := NewProducer(cfg)
	if err != nil {
		return nil, err
	}
	return NewPublisher(producer, cfg.Topic, logger), nil
}
