package scoring

import (
    "context"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "CredPulse/internal/domain/models"
    "CredPulse/internal/services/features"
)

// Fakes for an entity that exists but has produced no signals yet.

type oneEntityStore struct{ ent models.Entity }

func (s *oneEntityStore) List(context.Context) ([]models.Entity, error) {
    return []models.Entity{s.ent}, nil
}

func (s *oneEntityStore) Get(_ context.Context, id int64) (models.Entity, error) {
    return s.ent, nil
}

type emptySignalStore struct{}

func (emptySignalStore) RecentFundamentals(context.Context, int64, time.Time) ([]models.FundamentalRecord, error) {
    return nil, nil
}

func (emptySignalStore) DailyBars(context.Context, int64, time.Time) ([]models.MarketBar, error) {
    return nil, nil
}

func (emptySignalStore) RecentNews(context.Context, int64, time.Time, int) ([]models.NewsEvent, error) {
    return nil, nil
}

// A freshly onboarded entity with no fundamentals, no bars, and no news must
// still flow through extraction and prediction: full default vector, score
// and confidence inside their documented ranges, one attribution per
// schema feature.
func TestColdStartEntityScoresInRange(t *testing.T) {
    ctx := context.Background()
    ext := features.NewExtractor(
        &oneEntityStore{ent: models.Entity{ID: 7, Symbol: "NEWCO", Name: "New Co"}},
        emptySignalStore{},
    )

    vec, err := ext.Extract(ctx, 7, time.Now().UTC())
    require.NoError(t, err)
    require.Len(t, vec, len(ext.Schema()))
    for _, name := range ext.Schema() {
        _, ok := vec[name]
        assert.True(t, ok, "missing feature %s", name)
    }

    e, err := NewEngine(ctx, newMemArtifactStore(), ext.Schema())
    require.NoError(t, err)

    pred, err := e.Predict(vec, 7)
    require.NoError(t, err)
    assert.GreaterOrEqual(t, pred.Score, 300.0)
    assert.LessOrEqual(t, pred.Score, 850.0)
    assert.GreaterOrEqual(t, pred.Confidence, 50.0)
    assert.LessOrEqual(t, pred.Confidence, 95.0)
    assert.Len(t, pred.Attributions, len(ext.Schema()))
}
