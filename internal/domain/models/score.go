package models

import "time"

// ScoreRecord is one persisted creditworthiness score.
// Score is bounded to [300,850], confidence to [50,95].
type ScoreRecord struct {
	EntityID     int64
	Timestamp    time.Time
	Score        float64
	Confidence   float64
	ModelVersion string
}

// AttributionEntry explains one feature's part of one ScoreRecord.
// Importance is always >= 0; SignedContribution is 0 when the explainer
// fell back to global importances (degraded mode).
type AttributionEntry struct {
	EntityID           int64
	Timestamp          time.Time
	FeatureName        string
	Importance         float64
	SignedContribution float64
	FeatureValue       float64
}

// Prediction is the full output of one scoring call: the record to persist
// plus its attribution set. Produced together or not at all.
type Prediction struct {
	Score        float64
	Confidence   float64
	ModelVersion string
	Attributions []AttributionEntry
	Degraded     bool // explainer fallback was used
}

// EvaluationMetrics is one append-only retraining evaluation row.
// Precision and recall equal accuracy under the tolerance rule; the
// duplication is kept because downstream consumers read all three.
type EvaluationMetrics struct {
	ModelVersion string
	Timestamp    time.Time
	Accuracy     float64
	Precision    float64
	Recall       float64
	F1           float64
	MSE          float64
	R2           float64
	NTrain       int
	NValidation  int
}
