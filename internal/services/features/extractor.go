package features

import (
    "context"
    "errors"
    "fmt"
    "time"

    "CredPulse/internal/domain/models"
    "CredPulse/internal/domain/repository"
    domsvc "CredPulse/internal/domain/service"
    xlogger "CredPulse/pkg/logger"
)

// ErrUnknownEntity is returned when the entity identity cannot be resolved.
// Missing signal data is never an error; it falls back to defaults.
var ErrUnknownEntity = errors.New("features: unknown entity")

// Extractor fuses the fundamentals, market, sentiment, and context signal
// groups into one fixed-schema feature vector per entity.
type Extractor struct {
    entities repository.EntityStore
    signals  repository.SignalStore
    lookback repository.Lookback
    logger   *xlogger.Logger
    newsCap  int
}

type ExtractorOption func(*Extractor)

// WithLookback overrides the read windows.
func WithLookback(lb repository.Lookback) ExtractorOption {
    return func(e *Extractor) { e.lookback = lb.Normalize() }
}

// WithExtractorLogger attaches a logger.
func WithExtractorLogger(l *xlogger.Logger) ExtractorOption {
    return func(e *Extractor) { e.logger = l }
}

// WithNewsCap bounds the number of news events read per entity.
func WithNewsCap(n int) ExtractorOption {
    return func(e *Extractor) {
        if n > 0 {
            e.newsCap = n
        }
    }
}

func NewExtractor(entities repository.EntityStore, signals repository.SignalStore, opts ...ExtractorOption) *Extractor {
    e := &Extractor{
        entities: entities,
        signals:  signals,
        lookback: repository.DefaultLookback(),
        newsCap:  200,
    }
    for _, opt := range opts {
        opt(e)
    }
    return e
}

// Extract builds the feature vector for one entity at the given instant.
// It fails only when the entity cannot be resolved; any missing or unreadable
// signal group degrades to its documented default sub-vector.
func (e *Extractor) Extract(ctx context.Context, entityID int64, at time.Time) (models.FeatureVector, error) {
    ent, err := e.entities.Get(ctx, entityID)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return nil, fmt.Errorf("%w: id %d", ErrUnknownEntity, entityID)
        }
        return nil, fmt.Errorf("resolve entity %d: %w", entityID, err)
    }

    vector := make(models.FeatureVector, len(fundamentalKeys)+len(marketKeys)+len(sentimentKeys)+len(contextKeys))

    fundamentals, err := e.signals.RecentFundamentals(ctx, entityID, e.lookback.FundamentalsFrom(at))
    if err != nil {
        e.warn("fundamentals read failed, using defaults", entityID, err)
        fundamentals = nil
    }
    vector.Merge(FundamentalFeatures(fundamentals))

    bars, err := e.signals.DailyBars(ctx, entityID, e.lookback.MarketFrom(at))
    if err != nil {
        e.warn("market read failed, using defaults", entityID, err)
        bars = nil
    }
    vector.Merge(MarketFeatures(bars))

    news, err := e.signals.RecentNews(ctx, entityID, e.lookback.NewsFrom(at), e.newsCap)
    if err != nil {
        e.warn("news read failed, using defaults", entityID, err)
        news = nil
    }
    vector.Merge(SentimentFeatures(news))

    vector.Merge(ContextFeatures(ent, at))
    return vector, nil
}

// Schema returns the canonical ordered feature-name list.
func (e *Extractor) Schema() []string {
    out := make([]string, 0, len(fundamentalKeys)+len(marketKeys)+len(sentimentKeys)+len(contextKeys))
    out = append(out, fundamentalKeys...)
    out = append(out, marketKeys...)
    out = append(out, sentimentKeys...)
    out = append(out, contextKeys...)
    return out
}

func (e *Extractor) warn(msg string, entityID int64, err error) {
    if e.logger == nil {
        return
    }
    e.logger.Warn(msg, xlogger.Int64("entity_id", entityID), xlogger.Error(err))
}

var _ domsvc.FeatureExtractor = (*Extractor)(nil)
