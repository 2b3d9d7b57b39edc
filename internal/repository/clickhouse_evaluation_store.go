package repository

import (
	"context"
	"database/sql"
	"fmt"

	"CredPulse/internal/domain/models"
	domrepo "CredPulse/internal/domain/repository"
	pkgch "CredPulse/pkg/clickhouse"
	applogger "CredPulse/pkg/logger"
)

// CHEvaluationStore implements EvaluationStore backed by ClickHouse. The
// table is append-only; every retraining run adds exactly one row.
type CHEvaluationStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHEvaluationStore(ch *pkgch.Client, database string) *CHEvaluationStore {
	return &CHEvaluationStore{db: ch.DB(), database: database}
}

// SetLogger injects a structured logger.
func (s *CHEvaluationStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHEvaluationStore) AppendEvaluation(ctx context.Context, m models.EvaluationMetrics) error {
	q := fmt.Sprintf(`
        INSERT INTO %s.model_evaluations
            (model_version, ts, accuracy, precision, recall, f1, mse, r2, n_train, n_validation)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, s.database)
	if _, err := s.db.ExecContext(ctx, q,
		m.ModelVersion, m.Timestamp,
		m.Accuracy, m.Precision, m.Recall, m.F1, m.MSE, m.R2,
		uint32(m.NTrain), uint32(m.NValidation),
	); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse append_evaluation error",
				applogger.String("model_version", m.ModelVersion),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("append evaluation: %w", err)
	}
	return nil
}

func (s *CHEvaluationStore) RecentEvaluations(ctx context.Context, limit int) ([]models.EvaluationMetrics, error) {
	q := fmt.Sprintf(`
        SELECT model_version, ts, accuracy, precision, recall, f1, mse, r2, n_train, n_validation
        FROM %s.model_evaluations
        ORDER BY ts DESC
        LIMIT ?
    `, s.database)
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("recent evaluations: %w", err)
	}
	defer rows.Close()

	out := make([]models.EvaluationMetrics, 0, limit)
	for rows.Next() {
		var m models.EvaluationMetrics
		var nTrain, nValidation uint32
		if err := rows.Scan(
			&m.ModelVersion, &m.Timestamp,
			&m.Accuracy, &m.Precision, &m.Recall, &m.F1, &m.MSE, &m.R2,
			&nTrain, &nValidation,
		); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		m.NTrain = int(nTrain)
		m.NValidation = int(nValidation)
		out = append(out, m)
	}
	return out, rows.Err()
}

var _ domrepo.EvaluationStore = (*CHEvaluationStore)(nil)
