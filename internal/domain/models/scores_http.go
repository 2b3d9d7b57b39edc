package models

import "time"

// Requests for scoring HTTP endpoints. Defined in domain for consistency and reuse.

type EntityScoreRequest struct {
	EntityID int64 `param:"id" json:"entity_id" validate:"required,gt=0"`
}

type ScoreHistoryRequest struct {
	EntityID int64 `param:"id" json:"entity_id" validate:"required,gt=0"`
	Days     int   `query:"days" json:"days" default:"30" validate:"gte=1,lte=365"`
}

type ModelMetricsRequest struct {
	Limit int `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=200"`
}

// Response shapes follow the JSON contract of the read API.

type ScoreResponse struct {
	EntityID     int64     `json:"entity_id"`
	Timestamp    time.Time `json:"timestamp"`
	Score        float64   `json:"score"`
	Confidence   float64   `json:"confidence"`
	ModelVersion string    `json:"model_version"`
}

type EntityResponse struct {
	ID     int64  `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Sector string `json:"sector"`
}

type ContributionResponse struct {
	Feature            string  `json:"feature"`
	Importance         float64 `json:"importance"`
	SignedContribution float64 `json:"signed_contribution"`
	CurrentValue       float64 `json:"current_value"`
}

type NewsEventResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Headline  string    `json:"headline"`
	Sentiment float64   `json:"sentiment"`
	Impact    float64   `json:"impact"`
	Category  string    `json:"category"`
}

type ExplanationResponse struct {
	Score         float64                `json:"score"`
	Confidence    float64                `json:"confidence"`
	Timestamp     time.Time              `json:"timestamp"`
	ModelVersion  string                 `json:"model_version"`
	Contributions []ContributionResponse `json:"feature_contributions"`
	RecentEvents  []NewsEventResponse    `json:"recent_events"`
	Summary       string                 `json:"summary"`
}

type ModelMetricsResponse struct {
	ModelVersion string    `json:"model_version"`
	Timestamp    time.Time `json:"timestamp"`
	Accuracy     float64   `json:"accuracy"`
	Precision    float64   `json:"precision"`
	Recall       float64   `json:"recall"`
	F1           float64   `json:"f1"`
	MSE          float64   `json:"mse"`
	R2           float64   `json:"r2"`
	NTrain       int       `json:"n_train"`
	NValidation  int       `json:"n_validation"`
}

type DashboardEntry struct {
	ID           int64     `json:"id"`
	Symbol       string    `json:"symbol"`
	Name         string    `json:"name"`
	Sector       string    `json:"sector"`
	CurrentScore float64   `json:"current_score"`
	Confidence   float64   `json:"confidence"`
	LastUpdated  time.Time `json:"last_updated"`
}

type DashboardAlert struct {
	Symbol      string    `json:"company_symbol"`
	Name        string    `json:"company_name"`
	ScoreChange float64   `json:"score_change"`
	Timestamp   time.Time `json:"timestamp"`
	Severity    string    `json:"severity"` // "medium" | "high"
}

type DashboardResponse struct {
	Companies      []DashboardEntry `json:"companies"`
	Alerts         []DashboardAlert `json:"alerts"`
	TotalCompanies int              `json:"total_companies"`
	LastUpdated    time.Time        `json:"last_updated"`
}
