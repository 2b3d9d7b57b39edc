package repository

import (
	"context"

	"CredPulse/internal/domain/models"
	domrepo "CredPulse/internal/domain/repository"
	pkgkafka "CredPulse/pkg/kafka"
	applogger "CredPulse/pkg/logger"
)

// KafkaScorePublisher implements Publisher for Kafka. Events are keyed by
// symbol so each entity's score updates stay ordered within a partition.
type KafkaScorePublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaScorePublisher creates the score event publisher.
func NewKafkaScorePublisher(producer *pkgkafka.Producer, topic string) *KafkaScorePublisher {
	return &KafkaScorePublisher{producer: producer, topic: topic}
}

func (p *KafkaScorePublisher) Publish(ctx context.Context, ev models.ScoreEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(ev.Symbol), ev)
}

func (p *KafkaScorePublisher) PublishBatch(ctx context.Context, evs []models.ScoreEvent) error {
	if len(evs) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(evs))
	for i, ev := range evs {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(ev.Symbol),
			Value: ev,
		}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

// PublishMessage sends an arbitrary payload to an arbitrary topic. It lets
// the publisher double as the sink for the aggregated log collector.
func (p *KafkaScorePublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

func (p *KafkaScorePublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var (
	_ domrepo.Publisher   = (*KafkaScorePublisher)(nil)
	_ applogger.Publisher = (*KafkaScorePublisher)(nil)
)
