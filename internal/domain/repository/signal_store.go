package repository

import (
	"context"
	"time"

	"CredPulse/internal/domain/models"
)

// SignalStore provides windowed read access to the raw signals the feature
// extractor consumes. Collectors write these tables; this side only reads.
type SignalStore interface {
	// RecentFundamentals returns metric rows reported at or after from,
	// newest first.
	RecentFundamentals(ctx context.Context, entityID int64, from time.Time) ([]models.FundamentalRecord, error)
	// DailyBars returns daily bars at or after from in ascending day order.
	DailyBars(ctx context.Context, entityID int64, from time.Time) ([]models.MarketBar, error)
	// RecentNews returns news events at or after from, newest first.
	RecentNews(ctx context.Context, entityID int64, from time.Time, limit int) ([]models.NewsEvent, error)
}
