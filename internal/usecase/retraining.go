package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"CredPulse/internal/domain/models"
	domrepo "CredPulse/internal/domain/repository"
	domsvc "CredPulse/internal/domain/service"
	"CredPulse/internal/services/scoring"
	applogger "CredPulse/pkg/logger"
)

const defaultRetrainInterval = 6 * time.Hour

// Retraining periodically rebuilds the model from current feature vectors.
// The swap is in-memory first; persisting the artifact and the evaluation row
// happens after and never rolls the swap back.
type Retraining struct {
	entities  domrepo.EntityStore
	extractor domsvc.FeatureExtractor
	scorer    domsvc.Scorer
	artifacts domrepo.ArtifactStore
	evals     domrepo.EvaluationStore
	metrics   domrepo.Metrics
	l         *applogger.Logger

	interval     time.Duration
	initialDelay time.Duration
	workers      int
	labelSeed    int64

	mu sync.Mutex // one run at a time; late ticks are skipped, not queued
}

type RetrainOption func(*Retraining)

// WithRetrainInterval sets the time between retraining runs.
func WithRetrainInterval(d time.Duration) RetrainOption {
	return func(r *Retraining) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithRetrainDelay sets the delay before the first run after startup.
func WithRetrainDelay(d time.Duration) RetrainOption {
	return func(r *Retraining) {
		if d >= 0 {
			r.initialDelay = d
		}
	}
}

// WithRetrainWorkers bounds concurrent feature extraction.
func WithRetrainWorkers(n int) RetrainOption {
	return func(r *Retraining) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithLabelSeed fixes the label noise seed. Zero keeps time seeding.
func WithLabelSeed(seed int64) RetrainOption {
	return func(r *Retraining) { r.labelSeed = seed }
}

// WithRetrainLogger sets the logger.
func WithRetrainLogger(l *applogger.Logger) RetrainOption {
	return func(r *Retraining) { r.l = l }
}

// NewRetraining creates the retraining orchestrator.
func NewRetraining(
	entities domrepo.EntityStore,
	extractor domsvc.FeatureExtractor,
	scorer domsvc.Scorer,
	artifacts domrepo.ArtifactStore,
	evals domrepo.EvaluationStore,
	metrics domrepo.Metrics,
	opts ...RetrainOption,
) *Retraining {
	r := &Retraining{
		entities:     entities,
		extractor:    extractor,
		scorer:       scorer,
		artifacts:    artifacts,
		evals:        evals,
		metrics:      metrics,
		interval:     defaultRetrainInterval,
		initialDelay: defaultInitialDelay,
		workers:      defaultWorkerLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the periodic loop. The first run happens right after the
// initial delay so a fresh deployment trains a model without waiting a full
// interval.
func (r *Retraining) Start(ctx context.Context) {
	go r.run(ctx)
}

func (r *Retraining) run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(r.initialDelay):
	}
	if err := r.RunOnce(ctx); err != nil {
		r.warn("retraining failed", applogger.Error(err))
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				r.warn("retraining failed", applogger.Error(err))
			}
		}
	}
}

// RunOnce builds a training set from current vectors and retrains the model.
// Too few usable rows is a routine skip, not an error.
func (r *Retraining) RunOnce(ctx context.Context) error {
	if !r.mu.TryLock() {
		r.warn("retraining already running, skipping")
		r.metrics.RecordRetrain("skipped", 0)
		return nil
	}
	defer r.mu.Unlock()

	start := time.Now()
	at := start.UTC().Truncate(time.Second)

	examples, err := r.buildTrainingSet(ctx, at)
	if err != nil {
		r.metrics.RecordError("retrain_dataset")
		r.metrics.RecordRetrain("error", time.Since(start).Seconds())
		return fmt.Errorf("build training set: %w", err)
	}

	m, err := r.scorer.Retrain(examples)
	if err != nil {
		if errors.Is(err, scoring.ErrInsufficientTrainingData) {
			r.warn("not enough rows to retrain",
				applogger.Int("rows", len(examples)),
				applogger.Error(err))
			r.metrics.RecordRetrain("skipped", time.Since(start).Seconds())
			return nil
		}
		r.metrics.RecordError("retrain")
		r.metrics.RecordRetrain("error", time.Since(start).Seconds())
		return fmt.Errorf("retrain: %w", err)
	}

	r.persist(ctx, m)

	r.metrics.RecordRetrain("ok", time.Since(start).Seconds())
	r.info("model retrained",
		applogger.String("model_version", m.ModelVersion),
		applogger.Int("rows", len(examples)),
		applogger.Float64("accuracy", m.Accuracy),
		applogger.Float64("r2", m.R2),
		applogger.Float64("mse", m.MSE),
		applogger.Duration("took", time.Since(start)))
	return nil
}

// persist saves the new artifact and appends the evaluation row. The swap
// already happened, so failures here are logged and the run still counts.
func (r *Retraining) persist(ctx context.Context, m *models.EvaluationMetrics) {
	version, doc, err := r.scorer.ExportActive()
	if err != nil {
		r.error("export artifact", applogger.Error(err))
		r.metrics.RecordError("artifact_export")
	} else if err := r.artifacts.Save(ctx, version, doc); err != nil {
		r.error("save artifact",
			applogger.String("model_version", version),
			applogger.Error(err))
		r.metrics.RecordError("artifact_save")
	}

	if err := r.evals.AppendEvaluation(ctx, *m); err != nil {
		r.error("append evaluation",
			applogger.String("model_version", m.ModelVersion),
			applogger.Error(err))
		r.metrics.RecordError("evaluation_append")
	}
}

// buildTrainingSet extracts vectors for all entities concurrently, then
// labels the survivors in entity order with a single noise source.
func (r *Retraining) buildTrainingSet(ctx context.Context, at time.Time) ([]models.TrainingExample, error) {
	ents, err := r.entities.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}

	vecs := make([]models.FeatureVector, len(ents))
	got := make([]bool, len(ents))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, ent := range ents {
		i, ent := i, ent
		g.Go(func() error {
			vec, err := r.extractor.Extract(gctx, ent.ID, at)
			if err != nil {
				r.warn("skip entity in training set",
					applogger.Int64("entity_id", ent.ID),
					applogger.Error(err))
				r.metrics.RecordError("retrain_extract")
				return nil
			}
			vecs[i], got[i] = vec, true
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(r.seed()))
	examples := make([]models.TrainingExample, 0, len(ents))
	for i, ent := range ents {
		if !got[i] {
			continue
		}
		examples = append(examples, models.TrainingExample{
			EntityID: ent.ID,
			Vector:   vecs[i],
			Label:    syntheticLabel(vecs[i], rng),
		})
	}
	return examples, nil
}

func (r *Retraining) seed() int64 {
	if r.labelSeed != 0 {
		return r.labelSeed
	}
	return time.Now().UnixNano()
}

// syntheticLabel derives a bootstrap training label from the vector itself.
// Until real default outcomes are wired in, the model trains against this
// heuristic; the noise term keeps the ensemble from memorizing it exactly.
func syntheticLabel(vec models.FeatureVector, rng *rand.Rand) float64 {
	label := 0.6
	if vec["debt_to_equity"] > 1.0 {
		label -= 0.1
	}
	if vec["current_ratio"] < 1.0 {
		label -= 0.1
	}
	if vec["roe"] > 0.15 {
		label += 0.1
	}
	if vec["price_change_30d"] < -0.2 {
		label -= 0.1
	}
	if vec["volatility_30d"] > 0.05 {
		label -= 0.05
	}
	switch s := vec["avg_sentiment_7d"]; {
	case s < 40:
		label -= 0.1
	case s > 60:
		label += 0.05
	}
	label += rng.NormFloat64() * 0.05
	return clamp(label, 0.1, 0.9)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func (r *Retraining) info(msg string, fields ...applogger.Field) {
	if r.l != nil {
		r.l.Info(msg, fields...)
	}
}

func (r *Retraining) warn(msg string, fields ...applogger.Field) {
	if r.l != nil {
		r.l.Warn(msg, fields...)
	}
}

func (r *Retraining) error(msg string, fields ...applogger.Field) {
	if r.l != nil {
		r.l.Error(msg, fields...)
	}
}
