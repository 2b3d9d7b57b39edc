package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CredPulse/internal/domain/models"
	domrepo "CredPulse/internal/domain/repository"
	mid "CredPulse/internal/middleware"
	cachepkg "CredPulse/pkg/cache"
)

type stubEntities struct {
	ents []models.Entity
	err  error
}

func (s *stubEntities) List(ctx context.Context) ([]models.Entity, error) {
	return s.ents, s.err
}

func (s *stubEntities) Get(ctx context.Context, id int64) (models.Entity, error) {
	for _, e := range s.ents {
		if e.ID == id {
			return e, nil
		}
	}
	return models.Entity{}, domrepo.ErrNotFound
}

type stubExtractor struct {
	vectors map[int64]models.FeatureVector
	errs    map[int64]error
	schema  []string
}

func (s *stubExtractor) Extract(ctx context.Context, entityID int64, at time.Time) (models.FeatureVector, error) {
	if err := s.errs[entityID]; err != nil {
		return nil, err
	}
	if vec, ok := s.vectors[entityID]; ok {
		return vec.Clone(), nil
	}
	return models.FeatureVector{"debt_to_equity": 0.5}, nil
}

func (s *stubExtractor) Schema() []string { return s.schema }

// stubScorer fabricates one prediction per entity and records retrain input.
type stubScorer struct {
	mu             sync.Mutex
	version        string
	predictErrs    map[int64]error
	gotExamples    []models.TrainingExample
	retrainMetrics *models.EvaluationMetrics
	retrainErr     error
	exportVersion  string
	exportDoc      []byte
	exportErr      error
}

func (s *stubScorer) Predict(vec models.FeatureVector, entityID int64) (*models.Prediction, error) {
	if err := s.predictErrs[entityID]; err != nil {
		return nil, err
	}
	attrs := make([]models.AttributionEntry, 0, len(vec))
	for _, name := range vec.Keys() {
		attrs = append(attrs, models.AttributionEntry{
			FeatureName:        name,
			Importance:         0.1,
			SignedContribution: 0.05,
			FeatureValue:       vec[name],
		})
	}
	return &models.Prediction{
		Score:        500 + float64(entityID),
		Confidence:   80,
		ModelVersion: s.version,
		Attributions: attrs,
	}, nil
}

func (s *stubScorer) Retrain(examples []models.TrainingExample) (*models.EvaluationMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gotExamples = examples
	if s.retrainErr != nil {
		return nil, s.retrainErr
	}
	return s.retrainMetrics, nil
}

func (s *stubScorer) ExportActive() (string, []byte, error) {
	return s.exportVersion, s.exportDoc, s.exportErr
}

func (s *stubScorer) ActiveVersion() string { return s.version }

type upsertCall struct {
	rec   models.ScoreRecord
	attrs []models.AttributionEntry
}

type stubScoreStore struct {
	mu        sync.Mutex
	upserts   []upsertCall
	upsertErr map[int64]error

	latest       map[int64]models.ScoreRecord
	latestErr    error
	latestAll    []models.ScoreRecord
	latestAllErr error

	history    map[int64][]models.ScoreRecord
	historyErr error
	gotFrom    time.Time

	attrsAt map[int64][]models.AttributionEntry
	gotAt   time.Time
}

func (s *stubScoreStore) UpsertScore(ctx context.Context, rec models.ScoreRecord, attrs []models.AttributionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.upsertErr[rec.EntityID]; err != nil {
		return err
	}
	s.upserts = append(s.upserts, upsertCall{rec: rec, attrs: attrs})
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
	return s.latestAll, s.latestAllErr
}

func (s *stubScoreStore) ScoreHistory(ctx context.Context, entityID int64, from time.Time) ([]models.ScoreRecord, error) {
	s.mu.Lock()
	s.gotFrom = from
	s.mu.Unlock()
	if s.historyErr != nil {
		return nil, s.historyErr
	}
	return s.history[entityID], nil
}

func (s *stubScoreStore) AttributionsAt(ctx context.Context, entityID int64, at time.Time) ([]models.AttributionEntry, error) {
	s.mu.Lock()
	s.gotAt = at
	s.mu.Unlock()
	return s.attrsAt[entityID], nil
}

func (s *stubScoreStore) upsertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.upserts)
}

type stubEvals struct {
	mu        sync.Mutex
	appended  []models.EvaluationMetrics
	appendErr error
	recent    []models.EvaluationMetrics
	recentErr error
	gotLimit  int
}

func (s *stubEvals) AppendEvaluation(ctx context.Context, m models.EvaluationMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.appended = append(s.appended, m)
	return nil
}

func (s *stubEvals) RecentEvaluations(ctx context.Context, limit int) ([]models.EvaluationMetrics, error) {
	s.mu.Lock()
	s.gotLimit = limit
	s.mu.Unlock()
	return s.recent, s.recentErr
}

type stubArtifacts struct {
	mu      sync.Mutex
	saved   map[string][]byte
	saveErr error
}

func (s *stubArtifacts) Save(ctx context.Context, version string, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	if s.saved == nil {
		s.saved = make(map[string][]byte)
	}
	s.saved[version] = append([]byte(nil), doc...)
	return nil
}

func (s *stubArtifacts) LoadLatest(ctx context.Context) (string, []byte, error) {
	return "", nil, domrepo.ErrNotFound
}

func (s *stubArtifacts) Versions(ctx context.Context) ([]string, error) { return nil, nil }

type stubSink struct {
	mu     sync.Mutex
	events []models.ScoreEvent
	err    error
}

func (s *stubSink) Publish(ctx context.Context, ev models.ScoreEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

// recordingMetrics counts calls; scoring workers hit it concurrently.
type recordingMetrics struct {
	mu        sync.Mutex
	cycles    []string
	retrains  []string
	scored    []string
	errors    map[string]int
	published int
	latencies map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		errors:    make(map[string]int),
		latencies: make(map[string]int),
	}
}

func (m *recordingMetrics) RecordCycle(outcome string, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles = append(m.cycles, outcome)
}

func (m *recordingMetrics) RecordEntityScored(symbol string, score float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scored = append(m.scored, symbol)
}

func (m *recordingMetrics) RecordRetrain(outcome string, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retrains = append(m.retrains, outcome)
}

func (m *recordingMetrics) RecordEventPublished(topic string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published += count
}

func (m *recordingMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *recordingMetrics) RecordLatency(op string, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies[op]++
}

func (m *recordingMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func threeEntities() *stubEntities {
	return &stubEntities{ents: []models.Entity{
		{ID: 1, Symbol: "ACME", Name: "Acme Corp", Sector: "Technology"},
		{ID: 2, Symbol: "GLOB", Name: "Globex", Sector: "Energy"},
		{ID: 3, Symbol: "INIT", Name: "Initech", Sector: "Technology"},
	}}
}

func testVectors() map[int64]models.FeatureVector {
	return map[int64]models.FeatureVector{
		1: {"debt_to_equity": 0.4, "roe": 0.2},
		2: {"debt_to_equity": 1.5, "roe": 0.05},
		3: {"debt_to_equity": 0.9, "roe": 0.12},
	}
}

func TestRunOnceScoresAllEntities(t *testing.T) {
	store := &stubScoreStore{}
	metrics := newRecordingMetrics()
	cycle := NewScoringCycle(
		threeEntities(),
		&stubExtractor{vectors: testVectors()},
		&stubScorer{version: "v1.0.7"},
		store,
		nil,
		metrics,
	)

	require.NoError(t, cycle.RunOnce(context.Background()))
	require.Equal(t, 3, store.upsertCount())

	// every entity is scored at the same instant, at second precision
	at := store.upserts[0].rec.Timestamp
	assert.Zero(t, at.Nanosecond())
	assert.Equal(t, time.UTC, at.Location())
	for _, up := range store.upserts {
		assert.True(t, up.rec.Timestamp.Equal(at))
		assert.Equal(t, "v1.0.7", up.rec.ModelVersion)
		require.NotEmpty(t, up.attrs)
		for _, a := range up.attrs {
			assert.Equal(t, up.rec.EntityID, a.EntityID)
			assert.True(t, a.Timestamp.Equal(at))
		}
	}

	assert.Equal(t, []string{"ok"}, metrics.cycles)
	assert.ElementsMatch(t, []string{"ACME", "GLOB", "INIT"}, metrics.scored)
}

func TestRunOnceSkipsFailingEntity(t *testing.T) {
	store := &stubScoreStore{}
	metrics := newRecordingMetrics()
	ex := &stubExtractor{
		vectors: testVectors(),
		errs:    map[int64]error{2: errors.New("no data")},
	}
	cycle := NewScoringCycle(threeEntities(), ex, &stubScorer{version: "v1.0.7"}, store, nil, metrics)

	require.NoError(t, cycle.RunOnce(context.Background()))
	assert.Equal(t, 2, store.upsertCount())
	assert.Equal(t, 1, metrics.errorCount("score_entity"))
	assert.Equal(t, []string{"ok"}, metrics.cycles)
}

func TestRunOnceSkipsFailedUpsert(t *testing.T) {
	store := &stubScoreStore{upsertErr: map[int64]error{3: errors.New("insert refused")}}
	metrics := newRecordingMetrics()
	cycle := NewScoringCycle(threeEntities(), &stubExtractor{vectors: testVectors()}, &stubScorer{version: "v1.0.7"}, store, nil, metrics)

	require.NoError(t, cycle.RunOnce(context.Background()))
	assert.Equal(t, 2, store.upsertCount())
	assert.Equal(t, 1, metrics.errorCount("score_entity"))
	assert.Len(t, metrics.scored, 2)
}

func TestRunOnceEntityListFailure(t *testing.T) {
	metrics := newRecordingMetrics()
	cycle := NewScoringCycle(
		&stubEntities{err: errors.New("connection refused")},
		&stubExtractor{},
		&stubScorer{version: "v1.0.7"},
		&stubScoreStore{},
		nil,
		metrics,
	)

	err := cycle.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"error"}, metrics.cycles)
}

func TestRunOnceNoEntities(t *testing.T) {
	metrics := newRecordingMetrics()
	cycle := NewScoringCycle(&stubEntities{}, &stubExtractor{}, &stubScorer{version: "v1.0.7"}, &stubScoreStore{}, nil, metrics)

	require.NoError(t, cycle.RunOnce(context.Background()))
	assert.Equal(t, []string{"empty"}, metrics.cycles)
}

func TestRunOncePublishesEvents(t *testing.T) {
	sink := &stubSink{}
	metrics := newRecordingMetrics()
	pipe := mid.NewScorePipeline(sink, metrics)
	cycle := NewScoringCycle(threeEntities(), &stubExtractor{vectors: testVectors()}, &stubScorer{version: "v1.0.7"}, &stubScoreStore{}, pipe, metrics)

	require.NoError(t, cycle.RunOnce(context.Background()))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.events, 3)
	symbols := make([]string, 0, 3)
	for _, ev := range sink.events {
		symbols = append(symbols, ev.Symbol)
		assert.NotEmpty(t, ev.EventID)
		assert.Equal(t, "v1.0.7", ev.ModelVersion)
		assert.InDelta(t, 500+float64(ev.EntityID), ev.Score, 1e-9)
	}
	assert.ElementsMatch(t, []string{"ACME", "GLOB", "INIT"}, symbols)
	assert.Equal(t, 3, metrics.published)
}

func TestRunOnceWritesThroughCache(t *testing.T) {
	cache := cachepkg.NewMemoryCache()
	cycle := NewScoringCycle(
		threeEntities(),
		&stubExtractor{vectors: testVectors()},
		&stubScorer{version: "v1.0.7"},
		&stubScoreStore{},
		nil,
		newRecordingMetrics(),
		WithScoreCache(cache),
	)

	require.NoError(t, cycle.RunOnce(context.Background()))

	var raw string
	require.NoError(t, cache.Get(context.Background(), latestScoreKey(2), &raw))
	var rec models.ScoreRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))
	assert.Equal(t, int64(2), rec.EntityID)
	assert.InDelta(t, 502, rec.Score, 1e-9)
	assert.Equal(t, "v1.0.7", rec.ModelVersion)
}

func TestRunOnceCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	metrics := newRecordingMetrics()
	cycle := NewScoringCycle(threeEntities(), &stubExtractor{vectors: testVectors()}, &stubScorer{version: "v1.0.7"}, &stubScoreStore{}, nil, metrics)

	err := cycle.RunOnce(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
