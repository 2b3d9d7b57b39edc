package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"CredPulse/internal/domain/models"
	domrepo "CredPulse/internal/domain/repository"
	cachepkg "CredPulse/pkg/cache"
	applogger "CredPulse/pkg/logger"
)

const (
	defaultHistoryDays  = 30
	defaultMetricsLimit = 20

	explanationNewsDays  = 7
	explanationNewsLimit = 5

	alertWindow          = 24 * time.Hour
	alertChangeThreshold = 5.0
	alertHighThreshold   = 10.0
	alertWorkers         = 8
)

// ScoresQuery is the read side of the API: entity listings, score lookups,
// explanations, and the dashboard aggregation.
type ScoresQuery struct {
	entities domrepo.EntityStore
	signals  domrepo.SignalStore
	scores   domrepo.ScoreStore
	evals    domrepo.EvaluationStore
	cache    cachepkg.Service
	l        *applogger.Logger
}

type QueryOption func(*ScoresQuery)

// WithQueryCache serves latest-score reads from the write-through cache
// before falling back to storage.
func WithQueryCache(cache cachepkg.Service) QueryOption {
	return func(q *ScoresQuery) { q.cache = cache }
}

// WithQueryLogger sets the logger.
func WithQueryLogger(l *applogger.Logger) QueryOption {
	return func(q *ScoresQuery) { q.l = l }
}

// NewScoresQuery creates the read-side service.
func NewScoresQuery(
	entities domrepo.EntityStore,
	signals domrepo.SignalStore,
	scores domrepo.ScoreStore,
	evals domrepo.EvaluationStore,
	opts ...QueryOption,
) *ScoresQuery {
	q := &ScoresQuery{
		entities: entities,
		signals:  signals,
		scores:   scores,
		evals:    evals,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Entities lists all tracked entities.
func (q *ScoresQuery) Entities(ctx context.Context) ([]models.EntityResponse, error) {
	ents, err := q.entities.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	out := make([]models.EntityResponse, 0, len(ents))
	for _, ent := range ents {
		out = append(out, entityResponse(ent))
	}
	return out, nil
}

// LatestScore returns the most recent score for one entity.
// domrepo.ErrNotFound passes through for entities never scored.
func (q *ScoresQuery) LatestScore(ctx context.Context, entityID int64) (models.ScoreResponse, error) {
	if rec, ok := q.cachedLatest(ctx, entityID); ok {
		return scoreResponse(rec), nil
	}
	rec, err := q.scores.LatestScore(ctx, entityID)
	if err != nil {
		return models.ScoreResponse{}, err
	}
	return scoreResponse(rec), nil
}

// History returns the score series for the last days days, newest first.
func (q *ScoresQuery) History(ctx context.Context, entityID int64, days int) ([]models.ScoreResponse, error) {
	if days <= 0 {
		days = defaultHistoryDays
	}
	from := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := q.scores.ScoreHistory(ctx, entityID, from)
	if err != nil {
		return nil, fmt.Errorf("score history: %w", err)
	}
	out := make([]models.ScoreResponse, 0, len(rows))
	for _, rec := range rows {
		out = append(out, scoreResponse(rec))
	}
	return out, nil
}

// Explanation assembles the latest score, its stored feature attributions,
// and the recent news context. domrepo.ErrNotFound passes through when the
// entity has never been scored.
func (q *ScoresQuery) Explanation(ctx context.Context, entityID int64) (models.ExplanationResponse, error) {
	rec, err := q.scores.LatestScore(ctx, entityID)
	if err != nil {
		return models.ExplanationResponse{}, err
	}

	attrs, err := q.scores.AttributionsAt(ctx, entityID, rec.Timestamp)
	if err != nil {
		return models.ExplanationResponse{}, fmt.Errorf("attributions: %w", err)
	}
	contribs := make([]models.ContributionResponse, 0, len(attrs))
	for _, a := range attrs {
		contribs = append(contribs, models.ContributionResponse{
			Feature:            a.FeatureName,
			Importance:         a.Importance,
			SignedContribution: a.SignedContribution,
			CurrentValue:       a.FeatureValue,
		})
	}

	from := time.Now().UTC().AddDate(0, 0, -explanationNewsDays)
	news, err := q.signals.RecentNews(ctx, entityID, from, explanationNewsLimit)
	if err != nil {
		return models.ExplanationResponse{}, fmt.Errorf("recent news: %w", err)
	}
	events := make([]models.NewsEventResponse, 0, len(news))
	for _, n := range news {
		events = append(events, models.NewsEventResponse{
			Timestamp: n.Timestamp,
			Headline:  n.Headline,
			Sentiment: n.Sentiment,
			Impact:    n.Impact,
			Category:  n.Category,
		})
	}

	return models.ExplanationResponse{
		Score:         rec.Score,
		Confidence:    rec.Confidence,
		Timestamp:     rec.Timestamp,
		ModelVersion:  rec.ModelVersion,
		Contributions: contribs,
		RecentEvents:  events,
		Summary:       fmt.Sprintf("Credit score of %v with %v%% confidence", rec.Score, rec.Confidence),
	}, nil
}

// Dashboard aggregates the board view: every scored entity with its latest
// score, plus alerts for scores that moved sharply inside the alert window.
// TotalCompanies counts all tracked entities, scored or not.
func (q *ScoresQuery) Dashboard(ctx context.Context) (models.DashboardResponse, error) {
	now := time.Now().UTC()

	ents, err := q.entities.List(ctx)
	if err != nil {
		return models.DashboardResponse{}, fmt.Errorf("list entities: %w", err)
	}

	latest, err := q.latestByEntity(ctx, ents)
	if err != nil {
		return models.DashboardResponse{}, fmt.Errorf("latest scores: %w", err)
	}

	companies := make([]models.DashboardEntry, 0, len(ents))
	for _, ent := range ents {
		rec, ok := latest[ent.ID]
		if !ok {
			continue // never scored, stays off the board
		}
		companies = append(companies, models.DashboardEntry{
			ID:           ent.ID,
			Symbol:       ent.Symbol,
			Name:         ent.Name,
			Sector:       ent.Sector,
			CurrentScore: rec.Score,
			Confidence:   rec.Confidence,
			LastUpdated:  rec.Timestamp,
		})
	}

	return models.DashboardResponse{
		Companies:      companies,
		Alerts:         q.alerts(ctx, ents, now),
		TotalCompanies: len(ents),
		LastUpdated:    now,
	}, nil
}

// ModelMetrics lists recent evaluation rows, newest first.
func (q *ScoresQuery) ModelMetrics(ctx context.Context, limit int) ([]models.ModelMetricsResponse, error) {
	if limit <= 0 {
		limit = defaultMetricsLimit
	}
	rows, err := q.evals.RecentEvaluations(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recent evaluations: %w", err)
	}
	out := make([]models.ModelMetricsResponse, 0, len(rows))
	for _, m := range rows {
		out = append(out, models.ModelMetricsResponse{
			ModelVersion: m.ModelVersion,
			Timestamp:    m.Timestamp,
			Accuracy:     m.Accuracy,
			Precision:    m.Precision,
			Recall:       m.Recall,
			F1:           m.F1,
			MSE:          m.MSE,
			R2:           m.R2,
			NTrain:       m.NTrain,
			NValidation:  m.NValidation,
		})
	}
	return out, nil
}

// latestByEntity resolves the newest score per entity, serving from the
// cache when it covers everyone and hitting storage only for the misses.
func (q *ScoresQuery) latestByEntity(ctx context.Context, ents []models.Entity) (map[int64]models.ScoreRecord, error) {
	out := make(map[int64]models.ScoreRecord, len(ents))

	if q.cache != nil && len(ents) > 0 {
		keys := make([]string, 0, len(ents))
		byKey := make(map[string]int64, len(ents))
		for _, ent := range ents {
			k := latestScoreKey(ent.ID)
			keys = append(keys, k)
			byKey[k] = ent.ID
		}
		hits, err := cachepkg.MGetTyped[models.ScoreRecord](ctx, q.cache, keys...)
		if err != nil {
			q.warn("dashboard cache read", applogger.Error(err))
		}
		for k, rec := range hits {
			out[byKey[k]] = rec
		}
		if len(out) == len(ents) {
			return out, nil
		}
	}

	rows, err := q.scores.LatestScores(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range rows {
		if _, ok := out[rec.EntityID]; !ok {
			out[rec.EntityID] = rec
		}
	}
	return out, nil
}

// alerts flags entities whose score moved more than the threshold between
// the two newest records inside the alert window. History read failures
// drop that entity's alert, never the dashboard.
func (q *ScoresQuery) alerts(ctx context.Context, ents []models.Entity, now time.Time) []models.DashboardAlert {
	from := now.Add(-alertWindow)
	found := make([]*models.DashboardAlert, len(ents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(alertWorkers)
	for i, ent := range ents {
		i, ent := i, ent
		g.Go(func() error {
			rows, err := q.scores.ScoreHistory(gctx, ent.ID, from)
			if err != nil {
				q.warn("alert history",
					applogger.Int64("entity_id", ent.ID),
					applogger.Error(err))
				return nil
			}
			if len(rows) < 2 {
				return nil
			}
			change := rows[0].Score - rows[1].Score
			if math.Abs(change) <= alertChangeThreshold {
				return nil
			}
			severity := "medium"
			if math.Abs(change) > alertHighThreshold {
				severity = "high"
			}
			found[i] = &models.DashboardAlert{
				Symbol:      ent.Symbol,
				Name:        ent.Name,
				ScoreChange: change,
				Timestamp:   rows[0].Timestamp,
				Severity:    severity,
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]models.DashboardAlert, 0)
	for _, a := range found {
		if a != nil {
			out = append(out, *a)
		}
	}
	return out
}

func (q *ScoresQuery) cachedLatest(ctx context.Context, entityID int64) (models.ScoreRecord, bool) {
	if q.cache == nil {
		return models.ScoreRecord{}, false
	}
	var raw string
	if err := q.cache.Get(ctx, latestScoreKey(entityID), &raw); err != nil {
		return models.ScoreRecord{}, false
	}
	var rec models.ScoreRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return models.ScoreRecord{}, false
	}
	return rec, true
}

func scoreResponse(rec models.ScoreRecord) models.ScoreResponse {
	return models.ScoreResponse{
		EntityID:     rec.EntityID,
		Timestamp:    rec.Timestamp,
		Score:        rec.Score,
		Confidence:   rec.Confidence,
		ModelVersion: rec.ModelVersion,
	}
}

func entityResponse(ent models.Entity) models.EntityResponse {
	return models.EntityResponse{
		ID:     ent.ID,
		Symbol: ent.Symbol,
		Name:   ent.Name,
		Sector: ent.Sector,
	}
}

func (q *ScoresQuery) warn(msg string, fields ...applogger.Field) {
	if q.l != nil {
		q.l.Warn(msg, fields...)
	}
}
