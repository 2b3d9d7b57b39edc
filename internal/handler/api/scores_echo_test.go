package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "CredPulse/internal/domain/models"
	domrepo "CredPulse/internal/domain/repository"
	icache "CredPulse/internal/service/cache"
	"CredPulse/internal/usecase"
	xlogger "CredPulse/pkg/logger"
)

type stubEntityStore struct {
	ents []models.Entity
	err  error
}

func (s *stubEntityStore) List(ctx context.Context) ([]models.Entity, error) {
	return s.ents, s.err
}

func (s *stubEntityStore) Get(ctx context.Context, id int64) (models.Entity, error) {
	for _, e := range s.ents {
		if e.ID == id {
			return e, nil
		}
	}
	return models.Entity{}, domrepo.ErrNotFound
}

type stubSignalStore struct {
	news     []models.NewsEvent
	gotLimit int
}

func (s *stubSignalStore) RecentFundamentals(ctx context.Context, entityID int64, from time.Time) ([]models.FundamentalRecord, error) {
	return nil, nil
}

func (s *stubSignalStore) DailyBars(ctx context.Context, entityID int64, from time.Time) ([]models.MarketBar, error) {
	return nil, nil
}

func (s *stubSignalStore) RecentNews(ctx context.Context, entityID int64, from time.Time, limit int) ([]models.NewsEvent, error) {
	s.gotLimit = limit
	return s.news, nil
}

type stubScoreStore struct {
	mu        sync.Mutex
	latest    map[int64]models.ScoreRecord
	latestErr error
	latestAll []models.ScoreRecord
	history   map[int64][]models.ScoreRecord
	attrs     map[int64][]models.AttributionEntry
	gotFrom   time.Time
}

func (s *stubScoreStore) UpsertScore(ctx context.Context, rec models.ScoreRecord, attrs []models.AttributionEntry) error {
	return nil
}

func (s *stubScoreStore) LatestScore(ctx context.Context, entityID int64) (models.ScoreRecord, error) {
	if s.latestErr != nil {
		return models.ScoreRecord{}, s.latestErr
	}
	rec, ok := s.latest[entityID]
	if !ok {
		return models.ScoreRecord{}, domrepo.ErrNotFound
	}
	return rec, nil
}

func (s *stubScoreStore) LatestScores(ctx context.Context) ([]models.ScoreRecord, error) {
	return s.latestAll, nil
}

func (s *stubScoreStore) ScoreHistory(ctx context.Context, entityID int64, from time.Time) ([]models.ScoreRecord, error) {
	s.mu.Lock()
	s.gotFrom = from
	s.mu.Unlock()
	return s.history[entityID], nil
}

func (s *stubScoreStore) AttributionsAt(ctx context.Context, entityID int64, at time.Time) ([]models.AttributionEntry, error) {
	return s.attrs[entityID], nil
}

type stubEvalStore struct {
	recent   []models.EvaluationMetrics
	gotLimit int
}

func (s *stubEvalStore) AppendEvaluation(ctx context.Context, m models.EvaluationMetrics) error {
	return nil
}

func (s *stubEvalStore) RecentEvaluations(ctx context.Context, limit int) ([]models.EvaluationMetrics, error) {
	s.gotLimit = limit
	return s.recent, nil
}

type stubScorer struct {
	version string
}

func (s *stubScorer) Predict(vector models.FeatureVector, entityID int64) (*models.Prediction, error) {
	return nil, errors.New("not used")
}

func (s *stubScorer) Retrain(examples []models.TrainingExample) (*models.EvaluationMetrics, error) {
	return nil, errors.New("not used")
}

func (s *stubScorer) ExportActive() (string, []byte, error) {
	return "", nil, errors.New("not used")
}

func (s *stubScorer) ActiveVersion() string { return s.version }

func testLogger(t *testing.T) *xlogger.Logger {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return l
}

type apiFixture struct {
	entities *stubEntityStore
	signals  *stubSignalStore
	scores   *stubScoreStore
	evals    *stubEvalStore
	handler  *ScoresEchoHandler
	e        *echo.Echo
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	f := &apiFixture{
		entities: &stubEntityStore{ents: []models.Entity{
			{ID: 1, Symbol: "ACME", Name: "Acme Corp", Sector: "Industrials"},
			{ID: 2, Symbol: "GLOB", Name: "Globex", Sector: "Energy"},
		}},
		signals: &stubSignalStore{},
		scores: &stubScoreStore{
			latest:  map[int64]models.ScoreRecord{},
			history: map[int64][]models.ScoreRecord{},
			attrs:   map[int64][]models.AttributionEntry{},
		},
		evals: &stubEvalStore{},
	}
	q := usecase.NewScoresQuery(f.entities, f.signals, f.scores, f.evals)
	f.handler = NewScoresEchoHandler(testLogger(t), q, &stubScorer{version: "v1.0.7"})
	f.e = echo.New()
	f.handler.RegisterRoutes(f.e)
	return f
}

func (f *apiFixture) get(target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func TestHealthReportsActiveModel(t *testing.T) {
	f := newAPIFixture(t)

	env := decodeEnvelope(t, f.get("/health"))
	require.Equal(t, http.StatusOK, env.Status)

	var body struct {
		Status       string `json:"status"`
		ModelVersion string `json:"model_version"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "v1.0.7", body.ModelVersion)
}

func TestEntitiesListing(t *testing.T) {
	f := newAPIFixture(t)

	env := decodeEnvelope(t, f.get("/api/v1/entities"))
	require.Equal(t, http.StatusOK, env.Status)

	var body []models.EntityResponse
	require.NoError(t, json.Unmarshal(env.Data, &body))
	require.Len(t, body, 2)
	assert.Equal(t, "ACME", body[0].Symbol)
	assert.Equal(t, "Energy", body[1].Sector)
}

func TestLatestScore(t *testing.T) {
	f := newAPIFixture(t)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f.scores.latest[1] = models.ScoreRecord{
		EntityID: 1, Timestamp: ts, Score: 687.5, Confidence: 88, ModelVersion: "v1.0.7",
	}

	env := decodeEnvelope(t, f.get("/api/v1/entities/1/score"))
	require.Equal(t, http.StatusOK, env.Status)

	var body models.ScoreResponse
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, int64(1), body.EntityID)
	assert.Equal(t, 687.5, body.Score)
	assert.Equal(t, 88.0, body.Confidence)
	assert.Equal(t, "v1.0.7", body.ModelVersion)
}

func TestLatestScoreCachedReplay(t *testing.T) {
	f := newAPIFixture(t)
	f.handler.SetCache(icache.NewTTLCache())
	f.scores.latest[1] = models.ScoreRecord{
		EntityID: 1, Timestamp: time.Now().UTC(), Score: 701, Confidence: 82, ModelVersion: "v1.0.9",
	}

	first := decodeEnvelope(t, f.get("/api/v1/entities/1/score"))
	require.Equal(t, http.StatusOK, first.Status)

	// The store going away must not matter while the response is cached.
	f.scores.latestErr = errors.New("store down")

	second := decodeEnvelope(t, f.get("/api/v1/entities/1/score"))
	require.Equal(t, http.StatusOK, second.Status)
	assert.JSONEq(t, string(first.Data), string(second.Data))
}

func TestLatestScoreNotFound(t *testing.T) {
	f := newAPIFixture(t)

	env := decodeEnvelope(t, f.get("/api/v1/entities/9/score"))
	require.Equal(t, http.StatusNotFound, env.Status)

	var errs []apiError
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_NOT_FOUND", errs[0].Code)
}

func TestLatestScoreRejectsBadID(t *testing.T) {
	f := newAPIFixture(t)

	env := decodeEnvelope(t, f.get("/api/v1/entities/abc/score"))
	assert.Equal(t, http.StatusBadRequest, env.Status)
}

func TestHistoryDaysOutOfRange(t *testing.T) {
	f := newAPIFixture(t)

	env := decodeEnvelope(t, f.get("/api/v1/entities/1/scores?days=999"))
	require.Equal(t, http.StatusBadRequest, env.Status)

	var errs []struct {
		Code  string `json:"code"`
		Field string `json:"field"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &errs))
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_LTE", errs[0].Code)
	assert.Equal(t, "Days", errs[0].Field)
}

func TestHistoryDefaultsToThirtyDays(t *testing.T) {
	f := newAPIFixture(t)
	now := time.Now().UTC()
	f.scores.history[1] = []models.ScoreRecord{
		{EntityID: 1, Timestamp: now, Score: 690, Confidence: 80, ModelVersion: "v1.0.7"},
		{EntityID: 1, Timestamp: now.Add(-24 * time.Hour), Score: 684, Confidence: 79, ModelVersion: "v1.0.7"},
	}

	env := decodeEnvelope(t, f.get("/api/v1/entities/1/scores"))
	require.Equal(t, http.StatusOK, env.Status)

	var body []models.ScoreResponse
	require.NoError(t, json.Unmarshal(env.Data, &body))
	require.Len(t, body, 2)
	assert.WithinDuration(t, now.AddDate(0, 0, -30), f.scores.gotFrom, time.Minute)
}

func TestExplanation(t *testing.T) {
	f := newAPIFixture(t)
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f.scores.latest[1] = models.ScoreRecord{
		EntityID: 1, Timestamp: ts, Score: 687.5, Confidence: 88, ModelVersion: "v1.0.7",
	}
	f.scores.attrs[1] = []models.AttributionEntry{
		{EntityID: 1, Timestamp: ts, FeatureName: "debt_to_equity", Importance: 0.4, SignedContribution: -0.1, FeatureValue: 1.3},
		{EntityID: 1, Timestamp: ts, FeatureName: "roe", Importance: 0.2, SignedContribution: 0.05, FeatureValue: 0.18},
	}
	f.signals.news = []models.NewsEvent{
		{EntityID: 1, Timestamp: ts.Add(-time.Hour), Headline: "Debt downgrade", Sentiment: 30, Impact: 70, Category: "financial"},
	}

	env := decodeEnvelope(t, f.get("/api/v1/entities/1/explanation"))
	require.Equal(t, http.StatusOK, env.Status)

	var body models.ExplanationResponse
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "Credit score of 687.5 with 88% confidence", body.Summary)
	require.Len(t, body.Contributions, 2)
	assert.Equal(t, "debt_to_equity", body.Contributions[0].Feature)
	require.Len(t, body.RecentEvents, 1)
	assert.Equal(t, "Debt downgrade", body.RecentEvents[0].Headline)
	assert.Equal(t, 5, f.signals.gotLimit)
}

func TestExplanationNotFound(t *testing.T) {
	f := newAPIFixture(t)

	env := decodeEnvelope(t, f.get("/api/v1/entities/2/explanation"))
	assert.Equal(t, http.StatusNotFound, env.Status)
}

func TestDashboardCachedReplay(t *testing.T) {
	f := newAPIFixture(t)
	f.handler.SetCache(icache.NewTTLCache())
	now := time.Now().UTC()
	f.scores.latestAll = []models.ScoreRecord{
		{EntityID: 1, Timestamp: now, Score: 688, Confidence: 85, ModelVersion: "v1.0.7"},
		{EntityID: 2, Timestamp: now, Score: 612, Confidence: 77, ModelVersion: "v1.0.7"},
	}

	first := decodeEnvelope(t, f.get("/api/v1/dashboard"))
	require.Equal(t, http.StatusOK, first.Status)

	var body models.DashboardResponse
	require.NoError(t, json.Unmarshal(first.Data, &body))
	assert.Len(t, body.Companies, 2)
	assert.Equal(t, 2, body.TotalCompanies)

	f.entities.err = errors.New("store down")

	second := decodeEnvelope(t, f.get("/api/v1/dashboard"))
	require.Equal(t, http.StatusOK, second.Status)
	assert.JSONEq(t, string(first.Data), string(second.Data))
}

func TestDashboardRateLimited(t *testing.T) {
	f := newAPIFixture(t)

	var last envelope
	for i := 0; i < 4; i++ {
		last = decodeEnvelope(t, f.get("/api/v1/dashboard"))
	}
	require.Equal(t, http.StatusTooManyRequests, last.Status)

	var errs []apiError
	require.NoError(t, json.Unmarshal(last.Data, &errs))
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_RATE_LIMITED", errs[0].Code)
}

func TestModelMetricsDefaultLimit(t *testing.T) {
	f := newAPIFixture(t)
	f.evals.recent = []models.EvaluationMetrics{
		{ModelVersion: "v1.0.7", Timestamp: time.Now().UTC(), Accuracy: 0.91, R2: 0.42, NTrain: 80, NValidation: 20},
	}

	env := decodeEnvelope(t, f.get("/api/v1/models/metrics"))
	require.Equal(t, http.StatusOK, env.Status)

	var body []models.ModelMetricsResponse
	require.NoError(t, json.Unmarshal(env.Data, &body))
	require.Len(t, body, 1)
	assert.Equal(t, "v1.0.7", body[0].ModelVersion)
	assert.Equal(t, 20, f.evals.gotLimit)
}

func TestModelMetricsLimitTooLarge(t *testing.T) {
	f := newAPIFixture(t)

	env := decodeEnvelope(t, f.get("/api/v1/models/metrics?limit=500"))
	assert.Equal(t, http.StatusBadRequest, env.Status)
}
