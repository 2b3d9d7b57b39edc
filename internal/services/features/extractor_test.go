package features

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "CredPulse/internal/domain/models"
    "CredPulse/internal/domain/repository"
)

type stubEntityStore struct {
    entities map[int64]models.Entity
    err      error
}

func (s *stubEntityStore) List(ctx context.Context) ([]models.Entity, error) {
    out := make([]models.Entity, 0, len(s.entities))
    for _, e := range s.entities {
        out = append(out, e)
    }
    return out, nil
}

func (s *stubEntityStore) Get(ctx context.Context, id int64) (models.Entity, error) {
    if s.err != nil {
        return models.Entity{}, s.err
    }
    e, ok := s.entities[id]
    if !ok {
        return models.Entity{}, repository.ErrNotFound
    }
    return e, nil
}

type stubSignalStore struct {
    fundamentals []models.FundamentalRecord
    bars         []models.MarketBar
    news         []models.NewsEvent

    fundamentalsErr error
    barsErr         error
    newsErr         error
}

func (s *stubSignalStore) RecentFundamentals(ctx context.Context, entityID int64, from time.Time) ([]models.FundamentalRecord, error) {
    return s.fundamentals, s.fundamentalsErr
}

func (s *stubSignalStore) DailyBars(ctx context.Context, entityID int64, from time.Time) ([]models.MarketBar, error) {
    return s.bars, s.barsErr
}

func (s *stubSignalStore) RecentNews(ctx context.Context, entityID int64, from time.Time, limit int) ([]models.NewsEvent, error) {
    return s.news, s.newsErr
}

func testEntities() *stubEntityStore {
    return &stubEntityStore{entities: map[int64]models.Entity{
        1: {ID: 1, Symbol: "ACME", Name: "Acme Corp", Sector: "Technology", MarketCap: 3e9},
    }}
}

func TestExtractUnknownEntity(t *testing.T) {
    ex := NewExtractor(testEntities(), &stubSignalStore{})
    _, err := ex.Extract(context.Background(), 99, time.Now().UTC())
    require.Error(t, err)
    assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestExtractEntityStoreFailure(t *testing.T) {
    boom := errors.New("connection refused")
    ex := NewExtractor(&stubEntityStore{err: boom}, &stubSignalStore{})
    _, err := ex.Extract(context.Background(), 1, time.Now().UTC())
    require.Error(t, err)
    assert.ErrorIs(t, err, boom)
    assert.NotErrorIs(t, err, ErrUnknownEntity)
}

func TestExtractKeySetStableAcrossDataAvailability(t *testing.T) {
    at := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)

    full := &stubSignalStore{
        fundamentals: genFundamentals(map[string]float64{"roe": 0.15, "total_revenue": 1e9}),
        bars:         genBars(risingCloses(31, 100, 1), 1e6),
        news:         genNews([]float64{60, 55, 45}, []float64{40, 75, 20}, nil),
    }

    tests := []struct {
        name    string
        signals *stubSignalStore
    }{
        {"all groups present", full},
        {"no data at all", &stubSignalStore{}},
        {"fundamentals only", &stubSignalStore{fundamentals: full.fundamentals}},
        {"market only", &stubSignalStore{bars: full.bars}},
        {"news only", &stubSignalStore{news: full.news}},
        {"all reads failing", &stubSignalStore{
            fundamentalsErr: errors.New("timeout"),
            barsErr:         errors.New("timeout"),
            newsErr:         errors.New("timeout"),
        }},
    }

    ex := NewExtractor(testEntities(), full)
    want := ex.Schema()

    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            ex := NewExtractor(testEntities(), tt.signals)
            v, err := ex.Extract(context.Background(), 1, at)
            require.NoError(t, err)
            assert.ElementsMatch(t, want, v.Keys())
        })
    }
}

func TestExtractNoDataYieldsDocumentedDefaults(t *testing.T) {
    at := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
    ex := NewExtractor(testEntities(), &stubSignalStore{})

    v, err := ex.Extract(context.Background(), 1, at)
    require.NoError(t, err)

    want := models.FeatureVector{}
    want.Merge(DefaultFundamentalFeatures())
    want.Merge(DefaultMarketFeatures())
    want.Merge(DefaultSentimentFeatures())
    want.Merge(ContextFeatures(models.Entity{ID: 1, Symbol: "ACME", Name: "Acme Corp", Sector: "Technology", MarketCap: 3e9}, at))

    require.Equal(t, len(want), len(v))
    for k, expected := range want {
        assert.InDelta(t, expected, v[k], 1e-12, k)
    }
}

func TestSchemaMatchesGroupSizes(t *testing.T) {
    ex := NewExtractor(testEntities(), &stubSignalStore{})
    schema := ex.Schema()

    require.Len(t, schema, len(fundamentalKeys)+len(marketKeys)+len(sentimentKeys)+len(contextKeys))

    seen := map[string]bool{}
    for _, k := range schema {
        require.False(t, seen[k], "duplicate feature name %q", k)
        seen[k] = true
    }
}
