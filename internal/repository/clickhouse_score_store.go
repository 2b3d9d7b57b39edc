package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"CredPulse/internal/domain/models"
	domrepo "CredPulse/internal/domain/repository"
	pkgch "CredPulse/pkg/clickhouse"
	applogger "CredPulse/pkg/logger"
)

// CHScoreStore implements ScoreStore backed by ClickHouse. Scores and
// attributions live in ReplacingMergeTree tables keyed by (entity, ts), so
// a re-run of the same instant replaces rows instead of duplicating them.
type CHScoreStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHScoreStore(ch *pkgch.Client, database string) *CHScoreStore {
	return &CHScoreStore{db: ch.DB(), database: database}
}

// SetLogger injects a structured logger.
func (s *CHScoreStore) SetLogger(l *applogger.Logger) { s.l = l }

// UpsertScore writes the attribution set first and the score row last, so a
// reader that sees a score always finds its attributions already present.
func (s *CHScoreStore) UpsertScore(ctx context.Context, rec models.ScoreRecord, attrs []models.AttributionEntry) error {
	start := time.Now()
	if err := s.insertAttributions(ctx, attrs); err != nil {
		return err
	}

	q := fmt.Sprintf(`
        INSERT INTO %s.scores (entity_id, ts, score, confidence, model_version)
        VALUES (?, ?, ?, ?, ?)
    `, s.database)
	if _, err := s.db.ExecContext(ctx, q,
		rec.EntityID, rec.Timestamp, rec.Score, rec.Confidence, rec.ModelVersion,
	); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse upsert_score insert error",
				applogger.Int64("entity_id", rec.EntityID),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("insert score: %w", err)
	}

	if s.l != nil {
		s.l.Debug("clickhouse upsert_score ok",
			applogger.Int64("entity_id", rec.EntityID),
			applogger.Int("attributions", len(attrs)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHScoreStore) insertAttributions(ctx context.Context, attrs []models.AttributionEntry) error {
	if len(attrs) == 0 {
		return nil
	}
	const chunkSize = 2000
	for startIdx := 0; startIdx < len(attrs); startIdx += chunkSize {
		end := startIdx + chunkSize
		if end > len(attrs) {
			end = len(attrs)
		}
		values := make([]string, 0, end-startIdx)
		args := make([]interface{}, 0, (end-startIdx)*6)
		for _, a := range attrs[startIdx:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?)")
			args = append(args,
				a.EntityID, a.Timestamp, a.FeatureName,
				a.Importance, a.SignedContribution, a.FeatureValue,
			)
		}
		q := fmt.Sprintf(
			"INSERT INTO %s.score_attributions (entity_id, ts, feature, importance, signed_contribution, feature_value) VALUES %s",
			s.database, strings.Join(values, ","),
		)
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse insert_attributions error",
					applogger.Int("count", end-startIdx),
					applogger.Error(err),
				)
			}
			return fmt.Errorf("insert attributions: %w", err)
		}
	}
	return nil
}

func (s *CHScoreStore) LatestScore(ctx context.Context, entityID int64) (models.ScoreRecord, error) {
	q := fmt.Sprintf(`
        SELECT entity_id, ts, score, confidence, model_version
        FROM %s.scores FINAL
        WHERE entity_id = ?
        ORDER BY ts DESC
        LIMIT 1
    `, s.database)
	var rec models.ScoreRecord
	err := s.db.QueryRowContext(ctx, q, entityID).Scan(
		&rec.EntityID, &rec.Timestamp, &rec.Score, &rec.Confidence, &rec.ModelVersion,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ScoreRecord{}, fmt.Errorf("latest score for entity %d: %w", entityID, domrepo.ErrNotFound)
	}
	if err != nil {
		return models.ScoreRecord{}, fmt.Errorf("latest score: %w", err)
	}
	return rec, nil
}

func (s *CHScoreStore) LatestScores(ctx context.Context) ([]models.ScoreRecord, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT entity_id,
               argMax(score, ts),
               argMax(confidence, ts),
               argMax(model_version, ts),
               max(ts)
        FROM %s.scores FINAL
        GROUP BY entity_id
        ORDER BY entity_id ASC
    `, s.database)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse latest_scores query error", applogger.Error(err))
		}
		return nil, fmt.Errorf("latest scores: %w", err)
	}
	defer rows.Close()

	out := make([]models.ScoreRecord, 0, 64)
	for rows.Next() {
		var rec models.ScoreRecord
		if err := rows.Scan(&rec.EntityID, &rec.Score, &rec.Confidence, &rec.ModelVersion, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan latest score: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse latest_scores ok",
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

// ScoreHistory returns the window newest first.
func (s *CHScoreStore) ScoreHistory(ctx context.Context, entityID int64, from time.Time) ([]models.ScoreRecord, error) {
	q := fmt.Sprintf(`
        SELECT entity_id, ts, score, confidence, model_version
        FROM %s.scores FINAL
        WHERE entity_id = ? AND ts >= ?
        ORDER BY ts DESC
    `, s.database)
	rows, err := s.db.QueryContext(ctx, q, entityID, from)
	if err != nil {
		return nil, fmt.Errorf("score history: %w", err)
	}
	defer rows.Close()

	out := make([]models.ScoreRecord, 0, 128)
	for rows.Next() {
		var rec models.ScoreRecord
		if err := rows.Scan(&rec.EntityID, &rec.Timestamp, &rec.Score, &rec.Confidence, &rec.ModelVersion); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AttributionsAt returns the attribution set of one score row, strongest
// features first.
func (s *CHScoreStore) AttributionsAt(ctx context.Context, entityID int64, at time.Time) ([]models.AttributionEntry, error) {
	q := fmt.Sprintf(`
        SELECT entity_id, ts, feature, importance, signed_contribution, feature_value
        FROM %s.score_attributions FINAL
        WHERE entity_id = ? AND ts = ?
        ORDER BY importance DESC, feature ASC
    `, s.database)
	rows, err := s.db.QueryContext(ctx, q, entityID, at)
	if err != nil {
		return nil, fmt.Errorf("attributions: %w", err)
	}
	defer rows.Close()

	out := make([]models.AttributionEntry, 0, 64)
	for rows.Next() {
		var a models.AttributionEntry
		if err := rows.Scan(&a.EntityID, &a.Timestamp, &a.FeatureName, &a.Importance, &a.SignedContribution, &a.FeatureValue); err != nil {
			return nil, fmt.Errorf("scan attribution: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

var _ domrepo.ScoreStore = (*CHScoreStore)(nil)
