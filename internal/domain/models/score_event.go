package models

import (
	"time"

	"github.com/google/uuid"
)

// ScoreEvent announces one persisted ScoreRecord on the stream.
type ScoreEvent struct {
	EventID      string    `json:"event_id"`
	EntityID     int64     `json:"entity_id"`
	Symbol       string    `json:"symbol"`
	Timestamp    time.Time `json:"timestamp"`
	Score        float64   `json:"score"`
	Confidence   float64   `json:"confidence"`
	ModelVersion string    `json:"model_version"`
}

// NewScoreEvent builds the stream event for a persisted record.
func NewScoreEvent(rec ScoreRecord, symbol string) ScoreEvent {
	return ScoreEvent{
		EventID:      uuid.NewString(),
		EntityID:     rec.EntityID,
		Symbol:       symbol,
		Timestamp:    rec.Timestamp,
		Score:        rec.Score,
		Confidence:   rec.Confidence,
		ModelVersion: rec.ModelVersion,
	}
}
