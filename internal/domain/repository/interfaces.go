package repository

import (
	"context"
	"errors"
	"time"

	"CredPulse/internal/domain/models"
)

// ErrNotFound is returned by readers when the requested row does not exist.
var ErrNotFound = errors.New("repository: not found")

// EntityStore resolves tracked entities.
type EntityStore interface {
	List(ctx context.Context) ([]models.Entity, error)
	Get(ctx context.Context, id int64) (models.Entity, error)
}

// ScoreStore persists and serves scoring results. UpsertScore writes the
// record and its full attribution set as one unit, keyed by (entity, time).
// ScoreHistory returns rows newest first.
type ScoreStore interface {
	UpsertScore(ctx context.Context, rec models.ScoreRecord, attrs []models.AttributionEntry) error
	LatestScore(ctx context.Context, entityID int64) (models.ScoreRecord, error)
	LatestScores(ctx context.Context) ([]models.ScoreRecord, error)
	ScoreHistory(ctx context.Context, entityID int64, from time.Time) ([]models.ScoreRecord, error)
	AttributionsAt(ctx context.Context, entityID int64, at time.Time) ([]models.AttributionEntry, error)
}

// EvaluationStore appends and lists model evaluation rows.
type EvaluationStore interface {
	AppendEvaluation(ctx context.Context, m models.EvaluationMetrics) error
	RecentEvaluations(ctx context.Context, limit int) ([]models.EvaluationMetrics, error)
}

// ArtifactStore persists model artifacts as opaque versioned documents.
// The active artifact is the one with the highest version token.
type ArtifactStore interface {
	Save(ctx context.Context, version string, doc []byte) error
	LoadLatest(ctx context.Context) (version string, doc []byte, err error)
	Versions(ctx context.Context) ([]string, error)
}

// Publisher emits score events to the stream backend.
type Publisher interface {
	Publish(ctx context.Context, ev models.ScoreEvent) error
	PublishBatch(ctx context.Context, evs []models.ScoreEvent) error
	Close() error
}

// Metrics records operational measurements.
type Metrics interface {
	RecordCycle(outcome string, seconds float64)
	RecordEntityScored(symbol string, score float64)
	RecordRetrain(outcome string, seconds float64)
	RecordEventPublished(topic string, count int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
