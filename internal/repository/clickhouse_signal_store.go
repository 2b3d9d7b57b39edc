package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"CredPulse/internal/domain/models"
	domrepo "CredPulse/internal/domain/repository"
	pkgch "CredPulse/pkg/clickhouse"
	applogger "CredPulse/pkg/logger"
)

// CHSignalStore implements SignalStore backed by ClickHouse. Collectors
// outside this system load the three signal tables; this store only reads
// lookback windows from them.
type CHSignalStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHSignalStore(ch *pkgch.Client, database string) *CHSignalStore {
	return &CHSignalStore{db: ch.DB(), database: database}
}

// SetLogger injects a structured logger.
func (s *CHSignalStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHSignalStore) RecentFundamentals(ctx context.Context, entityID int64, from time.Time) ([]models.FundamentalRecord, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT entity_id, reported_at, metric, value
        FROM %s.fundamentals
        WHERE entity_id = ? AND reported_at >= ?
        ORDER BY reported_at DESC
    `, s.database)
	rows, err := s.db.QueryContext(ctx, q, entityID, from)
	if err != nil {
		s.logQueryError("fundamentals", entityID, err)
		return nil, fmt.Errorf("recent fundamentals: %w", err)
	}
	defer rows.Close()

	out := make([]models.FundamentalRecord, 0, 128)
	for rows.Next() {
		var r models.FundamentalRecord
		if err := rows.Scan(&r.EntityID, &r.ReportedAt, &r.Metric, &r.Value); err != nil {
			return nil, fmt.Errorf("scan fundamental: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.logQueryOK("fundamentals", entityID, len(out), start)
	return out, nil
}

func (s *CHSignalStore) DailyBars(ctx context.Context, entityID int64, from time.Time) ([]models.MarketBar, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT entity_id, day, close, volume
        FROM %s.market_bars FINAL
        WHERE entity_id = ? AND day >= ?
        ORDER BY day ASC
    `, s.database)
	rows, err := s.db.QueryContext(ctx, q, entityID, from)
	if err != nil {
		s.logQueryError("market_bars", entityID, err)
		return nil, fmt.Errorf("daily bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.MarketBar, 0, 64)
	for rows.Next() {
		var b models.MarketBar
		if err := rows.Scan(&b.EntityID, &b.Day, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.logQueryOK("market_bars", entityID, len(out), start)
	return out, nil
}

func (s *CHSignalStore) RecentNews(ctx context.Context, entityID int64, from time.Time, limit int) ([]models.NewsEvent, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT entity_id, ts, headline, sentiment, impact, category
        FROM %s.news_events
        WHERE entity_id = ? AND ts >= ?
        ORDER BY ts DESC
        LIMIT ?
    `, s.database)
	rows, err := s.db.QueryContext(ctx, q, entityID, from, limit)
	if err != nil {
		s.logQueryError("news_events", entityID, err)
		return nil, fmt.Errorf("recent news: %w", err)
	}
	defer rows.Close()

	out := make([]models.NewsEvent, 0, limit)
	for rows.Next() {
		var n models.NewsEvent
		if err := rows.Scan(&n.EntityID, &n.Timestamp, &n.Headline, &n.Sentiment, &n.Impact, &n.Category); err != nil {
			return nil, fmt.Errorf("scan news event: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.logQueryOK("news_events", entityID, len(out), start)
	return out, nil
}

func (s *CHSignalStore) logQueryError(table string, entityID int64, err error) {
	if s.l == nil {
		return
	}
	s.l.Error("clickhouse signal query error",
		applogger.String("table", table),
		applogger.Int64("entity_id", entityID),
		applogger.Error(err),
	)
}

func (s *CHSignalStore) logQueryOK(table string, entityID int64, rows int, start time.Time) {
	if s.l == nil {
		return
	}
	s.l.Debug("clickhouse signal query ok",
		applogger.String("table", table),
		applogger.Int64("entity_id", entityID),
		applogger.Int("rows", rows),
		applogger.Duration("duration_ms", time.Since(start)),
	)
}

var _ domrepo.SignalStore = (*CHSignalStore)(nil)
