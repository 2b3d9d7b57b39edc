package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"CredPulse/internal/domain/models"
	domrepo "CredPulse/internal/domain/repository"
	domsvc "CredPulse/internal/domain/service"
	mid "CredPulse/internal/middleware"
	cachepkg "CredPulse/pkg/cache"
	applogger "CredPulse/pkg/logger"
)

const (
	defaultCycleInterval = 10 * time.Minute
	defaultInitialDelay  = 30 * time.Second
	defaultWorkerLimit   = 4
)

// latestScoreKey is the cache key for an entity's most recent score record.
func latestScoreKey(entityID int64) string {
	return cachepkg.GenerateKey("score:latest", strconv.FormatInt(entityID, 10))
}

// ScoringCycle periodically scores every tracked entity: extract features,
// predict, persist the record with its attributions, publish the event.
// One entity failing never aborts the cycle; it is logged and skipped.
type ScoringCycle struct {
	entities  domrepo.EntityStore
	extractor domsvc.FeatureExtractor
	scorer    domsvc.Scorer
	scores    domrepo.ScoreStore
	pipe      *mid.ScorePipeline
	metrics   domrepo.Metrics
	cache     cachepkg.Service
	l         *applogger.Logger

	interval     time.Duration
	initialDelay time.Duration
	workers      int
	cacheTTL     time.Duration
}

type CycleOption func(*ScoringCycle)

// WithCycleInterval sets the time between scoring cycles.
func WithCycleInterval(d time.Duration) CycleOption {
	return func(c *ScoringCycle) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithCycleDelay sets the delay before the first cycle after startup.
func WithCycleDelay(d time.Duration) CycleOption {
	return func(c *ScoringCycle) {
		if d >= 0 {
			c.initialDelay = d
		}
	}
}

// WithCycleWorkers bounds how many entities are scored concurrently.
func WithCycleWorkers(n int) CycleOption {
	return func(c *ScoringCycle) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithScoreCache enables write-through caching of the latest score per entity.
func WithScoreCache(cache cachepkg.Service) CycleOption {
	return func(c *ScoringCycle) { c.cache = cache }
}

// WithCycleLogger sets the logger.
func WithCycleLogger(l *applogger.Logger) CycleOption {
	return func(c *ScoringCycle) { c.l = l }
}

// NewScoringCycle creates the orchestrator. pipe may be nil when no stream
// backend is configured.
func NewScoringCycle(
	entities domrepo.EntityStore,
	extractor domsvc.FeatureExtractor,
	scorer domsvc.Scorer,
	scores domrepo.ScoreStore,
	pipe *mid.ScorePipeline,
	metrics domrepo.Metrics,
	opts ...CycleOption,
) *ScoringCycle {
	c := &ScoringCycle{
		entities:     entities,
		extractor:    extractor,
		scorer:       scorer,
		scores:       scores,
		pipe:         pipe,
		metrics:      metrics,
		interval:     defaultCycleInterval,
		initialDelay: defaultInitialDelay,
		workers:      defaultWorkerLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	// cached entries must outlive one cycle so readers never see a gap
	c.cacheTTL = 2 * c.interval
	return c
}

// Start launches the periodic loop. It returns immediately; the loop stops
// when ctx is canceled.
func (c *ScoringCycle) Start(ctx context.Context) {
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	go c.run(ctx)
}

func (c *ScoringCycle) run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(c.initialDelay):
	}
	if err := c.RunOnce(ctx); err != nil {
		c.warn("scoring cycle failed", applogger.Error(err))
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.RunOnce(ctx); err != nil {
				c.warn("scoring cycle failed", applogger.Error(err))
			}
		}
	}
}

// Shutdown stops the publish pipeline. The cycle loop itself stops with the
// context passed to Start.
func (c *ScoringCycle) Shutdown() {
	if c.pipe != nil {
		c.pipe.Stop()
	}
}

// RunOnce scores every entity once at a single shared instant.
func (c *ScoringCycle) RunOnce(ctx context.Context) error {
	start := time.Now()
	// second precision matches the score tables, so the attribution join
	// key round-trips exactly
	at := start.UTC().Truncate(time.Second)

	ents, err := c.entities.List(ctx)
	if err != nil {
		c.metrics.RecordError("cycle_entities")
		c.metrics.RecordCycle("error", time.Since(start).Seconds())
		return fmt.Errorf("list entities: %w", err)
	}
	if len(ents) == 0 {
		c.info("no entities to score")
		c.metrics.RecordCycle("empty", time.Since(start).Seconds())
		return nil
	}

	var scored atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, ent := range ents {
		ent := ent
		g.Go(func() error {
			if err := c.scoreEntity(gctx, ent, at); err != nil {
				c.warn("score entity failed",
					applogger.Int64("entity_id", ent.ID),
					applogger.String("symbol", ent.Symbol),
					applogger.Error(err))
				c.metrics.RecordError("score_entity")
				return nil // keep the cycle going
			}
			scored.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		c.metrics.RecordCycle("canceled", time.Since(start).Seconds())
		return err
	}

	c.metrics.RecordCycle("ok", time.Since(start).Seconds())
	c.info("scoring cycle complete",
		applogger.Int("entities", len(ents)),
		applogger.Int64("scored", scored.Load()),
		applogger.Duration("took", time.Since(start)))
	return nil
}

func (c *ScoringCycle) scoreEntity(ctx context.Context, ent models.Entity, at time.Time) error {
	start := time.Now()

	vec, err := c.extractor.Extract(ctx, ent.ID, at)
	if err != nil {
		return fmt.Errorf("extract features: %w", err)
	}

	pred, err := c.scorer.Predict(vec, ent.ID)
	if err != nil {
		return fmt.Errorf("predict: %w", err)
	}

	rec := models.ScoreRecord{
		EntityID:     ent.ID,
		Timestamp:    at,
		Score:        pred.Score,
		Confidence:   pred.Confidence,
		ModelVersion: pred.ModelVersion,
	}
	attrs := pred.Attributions
	for i := range attrs {
		attrs[i].EntityID = ent.ID
		attrs[i].Timestamp = at
	}

	if err := c.scores.UpsertScore(ctx, rec, attrs); err != nil {
		return fmt.Errorf("persist score: %w", err)
	}
	c.metrics.RecordEntityScored(ent.Symbol, rec.Score)
	c.cacheLatest(ctx, rec)

	if c.pipe != nil {
		if err := c.pipe.Process(ctx, models.NewScoreEvent(rec, ent.Symbol)); err != nil {
			// the pipeline already buffered the event for retry
			c.warn("publish score event",
				applogger.String("symbol", ent.Symbol),
				applogger.Error(err))
		}
	}

	c.metrics.RecordLatency("score_entity", time.Since(start).Seconds())
	c.debug("entity scored",
		applogger.String("symbol", ent.Symbol),
		applogger.Float64("score", rec.Score),
		applogger.Float64("confidence", rec.Confidence),
		applogger.String("model_version", rec.ModelVersion))
	return nil
}

// cacheLatest writes the record through to the cache as a JSON string, the
// value form both cache backends serve back unchanged.
func (c *ScoringCycle) cacheLatest(ctx context.Context, rec models.ScoreRecord) {
	if c.cache == nil {
		return
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, latestScoreKey(rec.EntityID), string(b), c.cacheTTL); err != nil {
		c.warn("cache latest score",
			applogger.Int64("entity_id", rec.EntityID),
			applogger.Error(err))
	}
}

func (c *ScoringCycle) info(msg string, fields ...applogger.Field) {
	if c.l != nil {
		c.l.Info(msg, fields...)
	}
}

func (c *ScoringCycle) warn(msg string, fields ...applogger.Field) {
	if c.l != nil {
		c.l.Warn(msg, fields...)
	}
}

func (c *ScoringCycle) debug(msg string, fields ...applogger.Field) {
	if c.l != nil {
		c.l.Debug(msg, fields...)
	}
}
