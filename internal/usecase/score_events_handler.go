package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"CredPulse/internal/domain/models"
	domrepo "CredPulse/internal/domain/repository"
	pkgkafka "CredPulse/pkg/kafka"
)

// Broadcaster fans one payload out to connected stream clients.
type Broadcaster interface {
	Broadcast(payload []byte)
}

// ScoreEventsHandler consumes score events from Kafka and pushes them to the
// live stream hub.
type ScoreEventsHandler struct {
	topic   string
	hub     Broadcaster
	metrics domrepo.Metrics
}

func NewScoreEventsHandler(topic string, hub Broadcaster, metrics domrepo.Metrics) *ScoreEventsHandler {
	return &ScoreEventsHandler{topic: topic, hub: hub, metrics: metrics}
}

func (h *ScoreEventsHandler) Topic() string { return h.topic }

// Handle validates the payload and forwards the original bytes, which are
// already in the wire shape the stream clients expect.
func (h *ScoreEventsHandler) Handle(ctx context.Context, b []byte) error {
	var ev models.ScoreEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if ev.Symbol == "" {
		h.metrics.RecordError("consumer_event_invalid")
		return fmt.Errorf("score event without symbol")
	}
	// E2E latency from scoring time to fan-out (approx)
	h.metrics.RecordLatency("score_event_e2e_seconds", time.Since(ev.Timestamp).Seconds())

	h.hub.Broadcast(b)
	return nil
}

var _ pkgkafka.MessageHandler = (*ScoreEventsHandler)(nil)
