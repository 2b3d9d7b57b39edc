package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CredPulse/internal/domain/models"
	"CredPulse/internal/services/scoring"
)

func neutralVector() models.FeatureVector {
	return models.FeatureVector{
		"debt_to_equity":   0.5,
		"current_ratio":    1.2,
		"roe":              0.1,
		"price_change_30d": 0.0,
		"volatility_30d":   0.02,
		"avg_sentiment_7d": 50.0,
	}
}

func TestSyntheticLabelAdjustments(t *testing.T) {
	const seed = 42

	cases := []struct {
		name       string
		mutate     func(models.FeatureVector)
		adjustment float64
	}{
		{"neutral", func(v models.FeatureVector) {}, 0},
		{"high leverage", func(v models.FeatureVector) { v["debt_to_equity"] = 1.5 }, -0.1},
		{"weak liquidity", func(v models.FeatureVector) { v["current_ratio"] = 0.8 }, -0.1},
		{"strong returns", func(v models.FeatureVector) { v["roe"] = 0.2 }, 0.1},
		{"price crash", func(v models.FeatureVector) { v["price_change_30d"] = -0.3 }, -0.1},
		{"high volatility", func(v models.FeatureVector) { v["volatility_30d"] = 0.08 }, -0.05},
		{"bad news", func(v models.FeatureVector) { v["avg_sentiment_7d"] = 30 }, -0.1},
		{"good news", func(v models.FeatureVector) { v["avg_sentiment_7d"] = 70 }, 0.05},
		{"boundary leverage stays neutral", func(v models.FeatureVector) { v["debt_to_equity"] = 1.0 }, 0},
		{"everything wrong", func(v models.FeatureVector) {
			v["debt_to_equity"] = 2.0
			v["current_ratio"] = 0.5
			v["price_change_30d"] = -0.5
			v["volatility_30d"] = 0.1
			v["avg_sentiment_7d"] = 20
		}, -0.45},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			vec := neutralVector()
			tc.mutate(vec)

			noise := rand.New(rand.NewSource(seed)).NormFloat64() * 0.05
			want := clamp(0.6+tc.adjustment+noise, 0.1, 0.9)

			got := syntheticLabel(vec, rand.New(rand.NewSource(seed)))
			assert.InDelta(t, want, got, 1e-12)
		})
	}
}

func TestSyntheticLabelSentimentBranchesAreExclusive(t *testing.T) {
	// sentiment exactly on the boundaries adjusts nothing
	for _, s := range []float64{40, 50, 60} {
		vec := neutralVector()
		vec["avg_sentiment_7d"] = s
		noise := rand.New(rand.NewSource(7)).NormFloat64() * 0.05
		got := syntheticLabel(vec, rand.New(rand.NewSource(7)))
		assert.InDelta(t, clamp(0.6+noise, 0.1, 0.9), got, 1e-12, "sentiment %v", s)
	}
}

func TestSyntheticLabelDeterministicPerSeed(t *testing.T) {
	vec := neutralVector()
	a := syntheticLabel(vec, rand.New(rand.NewSource(3)))
	b := syntheticLabel(vec, rand.New(rand.NewSource(3)))
	c := syntheticLabel(vec, rand.New(rand.NewSource(4)))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestSyntheticLabelStaysInBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for i := 0; i < 500; i++ {
		vec := neutralVector()
		vec["debt_to_equity"] = rng.Float64() * 3
		vec["current_ratio"] = rng.Float64() * 2
		vec["roe"] = rng.Float64()*0.6 - 0.2
		vec["price_change_30d"] = rng.Float64() - 0.5
		vec["volatility_30d"] = rng.Float64() * 0.2
		vec["avg_sentiment_7d"] = rng.Float64() * 100
		label := syntheticLabel(vec, rng)
		assert.GreaterOrEqual(t, label, 0.1)
		assert.LessOrEqual(t, label, 0.9)
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.1, clamp(0.05, 0.1, 0.9))
	assert.Equal(t, 0.9, clamp(1.2, 0.1, 0.9))
	assert.Equal(t, 0.5, clamp(0.5, 0.1, 0.9))
}

func manyEntities(n int) *stubEntities {
	s := &stubEntities{}
	for i := 1; i <= n; i++ {
		s.ents = append(s.ents, models.Entity{ID: int64(i), Symbol: fmt.Sprintf("SYM%d", i)})
	}
	return s
}

func retrainFixture(ents *stubEntities, ex *stubExtractor, sc *stubScorer) (*Retraining, *stubArtifacts, *stubEvals, *recordingMetrics) {
	artifacts := &stubArtifacts{}
	evals := &stubEvals{}
	metrics := newRecordingMetrics()
	r := NewRetraining(ents, ex, sc, artifacts, evals, metrics, WithLabelSeed(42))
	return r, artifacts, evals, metrics
}

func TestRetrainRunOncePersists(t *testing.T) {
	sc := &stubScorer{
		version:        "v1.0.123",
		retrainMetrics: &models.EvaluationMetrics{ModelVersion: "v1.0.123", Accuracy: 0.8, NTrain: 9, NValidation: 3},
		exportVersion:  "v1.0.123",
		exportDoc:      []byte(`{"version":"v1.0.123"}`),
	}
	r, artifacts, evals, metrics := retrainFixture(manyEntities(12), &stubExtractor{}, sc)

	require.NoError(t, r.RunOnce(context.Background()))

	require.Len(t, sc.gotExamples, 12)
	for _, ex := range sc.gotExamples {
		assert.GreaterOrEqual(t, ex.Label, 0.1)
		assert.LessOrEqual(t, ex.Label, 0.9)
		assert.NotEmpty(t, ex.Vector)
	}

	assert.Equal(t, []byte(`{"version":"v1.0.123"}`), artifacts.saved["v1.0.123"])
	require.Len(t, evals.appended, 1)
	assert.Equal(t, "v1.0.123", evals.appended[0].ModelVersion)
	assert.Equal(t, []string{"ok"}, metrics.retrains)
}

func TestRetrainRunOnceInsufficientRows(t *testing.T) {
	sc := &stubScorer{
		retrainErr: fmt.Errorf("%w: have 3 rows, need 10", scoring.ErrInsufficientTrainingData),
	}
	r, artifacts, evals, metrics := retrainFixture(manyEntities(3), &stubExtractor{}, sc)

	require.NoError(t, r.RunOnce(context.Background()))
	assert.Empty(t, artifacts.saved)
	assert.Empty(t, evals.appended)
	assert.Equal(t, []string{"skipped"}, metrics.retrains)
}

func TestRetrainRunOnceScorerFailure(t *testing.T) {
	sc := &stubScorer{retrainErr: errors.New("fit exploded")}
	r, _, _, metrics := retrainFixture(manyEntities(12), &stubExtractor{}, sc)

	err := r.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"error"}, metrics.retrains)
}

func TestRetrainSkipsFailedExtractions(t *testing.T) {
	ex := &stubExtractor{errs: map[int64]error{2: errors.New("no data"), 4: errors.New("no data")}}
	sc := &stubScorer{
		retrainMetrics: &models.EvaluationMetrics{ModelVersion: "v1.0.5"},
		exportVersion:  "v1.0.5",
		exportDoc:      []byte(`{}`),
	}
	r, _, _, metrics := retrainFixture(manyEntities(5), ex, sc)

	require.NoError(t, r.RunOnce(context.Background()))
	assert.Len(t, sc.gotExamples, 3)
	assert.Equal(t, 2, metrics.errorCount("retrain_extract"))
}

func TestRetrainOverlappingRunSkipped(t *testing.T) {
	sc := &stubScorer{retrainMetrics: &models.EvaluationMetrics{}}
	r, _, _, metrics := retrainFixture(manyEntities(2), &stubExtractor{}, sc)

	r.mu.Lock()
	defer r.mu.Unlock()
	require.NoError(t, r.RunOnce(context.Background()))
	assert.Equal(t, []string{"skipped"}, metrics.retrains)
	assert.Empty(t, sc.gotExamples)
}

func TestRetrainEntityListFailure(t *testing.T) {
	sc := &stubScorer{}
	r, _, _, metrics := retrainFixture(&stubEntities{err: errors.New("connection refused")}, &stubExtractor{}, sc)

	err := r.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"error"}, metrics.retrains)
}

func TestRetrainPersistFailuresDoNotFailRun(t *testing.T) {
	sc := &stubScorer{
		retrainMetrics: &models.EvaluationMetrics{ModelVersion: "v1.0.9"},
		exportVersion:  "v1.0.9",
		exportDoc:      []byte(`{}`),
	}
	r, artifacts, evals, metrics := retrainFixture(manyEntities(12), &stubExtractor{}, sc)
	artifacts.saveErr = errors.New("disk full")
	evals.appendErr = errors.New("insert refused")

	require.NoError(t, r.RunOnce(context.Background()))
	assert.Equal(t, []string{"ok"}, metrics.retrains)
	assert.Equal(t, 1, metrics.errorCount("artifact_save"))
	assert.Equal(t, 1, metrics.errorCount("evaluation_append"))
}

func TestRetrainExportFailureStillAppendsEvaluation(t *testing.T) {
	sc := &stubScorer{
		retrainMetrics: &models.EvaluationMetrics{ModelVersion: "v1.0.9"},
		exportErr:      errors.New("encode failed"),
	}
	r, artifacts, evals, metrics := retrainFixture(manyEntities(12), &stubExtractor{}, sc)

	require.NoError(t, r.RunOnce(context.Background()))
	assert.Empty(t, artifacts.saved)
	assert.Len(t, evals.appended, 1)
	assert.Equal(t, 1, metrics.errorCount("artifact_export"))
	assert.Equal(t, []string{"ok"}, metrics.retrains)
}
