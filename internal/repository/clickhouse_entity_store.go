package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"CredPulse/internal/domain/models"
	domrepo "CredPulse/internal/domain/repository"
	pkgch "CredPulse/pkg/clickhouse"
	applogger "CredPulse/pkg/logger"
)

// CHEntityStore implements EntityStore backed by ClickHouse.
type CHEntityStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHEntityStore(ch *pkgch.Client, database string) *CHEntityStore {
	return &CHEntityStore{db: ch.DB(), database: database}
}

// SetLogger injects a structured logger.
func (s *CHEntityStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHEntityStore) List(ctx context.Context) ([]models.Entity, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT id, symbol, name, sector, market_cap
        FROM %s.entities FINAL
        ORDER BY id ASC
    `, s.database)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse list_entities query error", applogger.Error(err))
		}
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	out := make([]models.Entity, 0, 64)
	for rows.Next() {
		var e models.Entity
		if err := rows.Scan(&e.ID, &e.Symbol, &e.Name, &e.Sector, &e.MarketCap); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse list_entities ok",
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHEntityStore) Get(ctx context.Context, id int64) (models.Entity, error) {
	q := fmt.Sprintf(`
        SELECT id, symbol, name, sector, market_cap
        FROM %s.entities FINAL
        WHERE id = ?
        LIMIT 1
    `, s.database)
	var e models.Entity
	err := s.db.QueryRowContext(ctx, q, id).Scan(&e.ID, &e.Symbol, &e.Name, &e.Sector, &e.MarketCap)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Entity{}, fmt.Errorf("entity %d: %w", id, domrepo.ErrNotFound)
	}
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse get_entity query error",
				applogger.Int64("entity_id", id),
				applogger.Error(err),
			)
		}
		return models.Entity{}, fmt.Errorf("get entity %d: %w", id, err)
	}
	return e, nil
}

var _ domrepo.EntityStore = (*CHEntityStore)(nil)
