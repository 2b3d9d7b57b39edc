package service

import (
	"context"
	"time"

	"CredPulse/internal/domain/models"
)

// FeatureExtractor builds one fixed-schema feature vector per entity.
// Missing source data is recovered with documented defaults; only an
// unresolvable entity is an error.
type FeatureExtractor interface {
	Extract(ctx context.Context, entityID int64, at time.Time) (models.FeatureVector, error)
	// Schema returns the canonical ordered feature-name list the extractor
	// currently produces.
	Schema() []string
}

// Scorer owns the active model artifact: prediction and retraining.
// Retrain swaps the in-memory artifact only; callers persist the result
// through ExportActive so storage failures never roll back a swap.
type Scorer interface {
	Predict(vector models.FeatureVector, entityID int64) (*models.Prediction, error)
	Retrain(examples []models.TrainingExample) (*models.EvaluationMetrics, error)
	// ExportActive serializes the active artifact for persistence.
	ExportActive() (version string, doc []byte, err error)
	// ActiveVersion reports the version token of the loaded artifact,
	// or "" when none is loaded.
	ActiveVersion() string
}
