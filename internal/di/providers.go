package di

import (
    "context"
    "fmt"
    "net"
    "strconv"
    "time"

    "CredPulse/internal/domain/repository"
    domsvc "CredPulse/internal/domain/service"
    "CredPulse/internal/handler/api"
    mid "CredPulse/internal/middleware"
    internalrepo "CredPulse/internal/repository"
    icache "CredPulse/internal/service/cache"
    "CredPulse/internal/service/stream"
    "CredPulse/internal/services/features"
    "CredPulse/internal/services/scoring"
    "CredPulse/internal/usecase"
    cachepkg "CredPulse/pkg/cache"
    pkgch "CredPulse/pkg/clickhouse"
    "CredPulse/pkg/config"
    pkgkafka "CredPulse/pkg/kafka"
    applogger "CredPulse/pkg/logger"
    "CredPulse/pkg/metrics"
    "CredPulse/pkg/queue"
    "CredPulse/pkg/server"

    goredis "github.com/redis/go-redis/v9"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	lc := &applogger.Config{Level: "info", Format: "console", Output: "stdout"}
	if cfg.Environment == "production" {
		lc.Format = "json"
	}
	l, err := applogger.New(lc)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, schemaDDL(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// schemaDDL returns the statements that bring the database up to the layout
// the repositories expect. Tables read with FINAL are ReplacingMergeTree;
// append-only history stays on plain MergeTree.
func schemaDDL(db string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.entities (
            id Int64, symbol String, name String, sector String, market_cap Float64
        ) ENGINE=ReplacingMergeTree ORDER BY id`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.fundamentals (
            entity_id Int64, reported_at DateTime, metric String, value Float64
        ) ENGINE=MergeTree ORDER BY (entity_id, reported_at)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.market_bars (
            entity_id Int64, day Date, close Float64, volume Float64
        ) ENGINE=ReplacingMergeTree ORDER BY (entity_id, day)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.news_events (
            entity_id Int64, ts DateTime, headline String, sentiment Float64, impact Float64, category String
        ) ENGINE=MergeTree ORDER BY (entity_id, ts)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.scores (
            entity_id Int64, ts DateTime, score Float64, confidence Float64, model_version String
        ) ENGINE=ReplacingMergeTree ORDER BY (entity_id, ts)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.score_attributions (
            entity_id Int64, ts DateTime, feature String, importance Float64, signed_contribution Float64, feature_value Float64
        ) ENGINE=ReplacingMergeTree ORDER BY (entity_id, ts, feature)`, db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.model_evaluations (
            model_version String, ts DateTime, accuracy Float64, precision Float64, recall Float64,
            f1 Float64, mse Float64, r2 Float64, n_train UInt32, n_validation UInt32
        ) ENGINE=MergeTree ORDER BY ts`, db),
	}
}

// ProvideKafkaProducer creates a Kafka producer, or nil when no brokers are
// configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML, or nil
// when no brokers are configured.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideEntityStore creates the ClickHouse entity repository.
func ProvideEntityStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.EntityStore {
	s := internalrepo.NewCHEntityStore(chClient, cfg.ClickHouse.Database)
	s.SetLogger(l)
	return s
}

// ProvideSignalStore creates the ClickHouse signal repository.
func ProvideSignalStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.SignalStore {
	s := internalrepo.NewCHSignalStore(chClient, cfg.ClickHouse.Database)
	s.SetLogger(l)
	return s
}

// ProvideScoreStore creates the ClickHouse score repository.
func ProvideScoreStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.ScoreStore {
	s := internalrepo.NewCHScoreStore(chClient, cfg.ClickHouse.Database)
	s.SetLogger(l)
	return s
}

// ProvideEvaluationStore creates the ClickHouse evaluation repository.
func ProvideEvaluationStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.EvaluationStore {
	s := internalrepo.NewCHEvaluationStore(chClient, cfg.ClickHouse.Database)
	s.SetLogger(l)
	return s
}

// ProvideArtifactStore creates the file-backed model artifact repository.
func ProvideArtifactStore(cfg *config.Config, l *applogger.Logger) repository.ArtifactStore {
	s := internalrepo.NewFileArtifactStore(cfg.Scoring.ArtifactDir)
	s.SetLogger(l)
	return s
}

// ProvideScorePublisher creates the Kafka score event publisher, or nil when
// no producer is available.
func ProvideScorePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaScorePublisher(producer, cfg.Kafka.ScoresTopic)
}

// ProvideScorePipeline builds the throttled buffer between the scoring cycle
// and Kafka. A nil publisher means scores stay local, so no pipeline either.
func ProvideScorePipeline(pub repository.Publisher, m repository.Metrics) *mid.ScorePipeline {
	if pub == nil {
		return nil
	}
	return mid.NewScorePipeline(pub, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
}

// ProvideCacheService builds the write-through score cache. Redis gets a
// memory layer in front of it; without Redis the memory cache stands alone.
func ProvideCacheService(cfg *config.Config, l *applogger.Logger) cachepkg.Service {
	if cfg.API.Redis.Enabled {
		host, port := splitHostPort(cfg.API.Redis.Addr)
		rc, err := cachepkg.NewRedisCache(
			cachepkg.WithRedisHost(host),
			cachepkg.WithRedisPort(port),
			cachepkg.WithRedisPassword(cfg.API.Redis.Password),
			cachepkg.WithRedisDB(cfg.API.Redis.DB),
		)
		if err != nil {
			l.Warn("redis cache unavailable, falling back to memory", applogger.Error(err))
		} else {
			return cachepkg.NewLayeredCache(rc)
		}
	}
	return cachepkg.NewMemoryCache()
}

func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}

// ProvideBytesCache builds the API response cache.
func ProvideBytesCache(cfg *config.Config) icache.BytesCache {
	if cfg.API.Redis.Enabled {
		return icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.API.Redis.Addr,
			Password: cfg.API.Redis.Password,
			DB:       cfg.API.Redis.DB,
		})
	}
	return icache.NewTTLCache()
}

// ProvideExtractor creates the feature extraction service.
func ProvideExtractor(entities repository.EntityStore, signals repository.SignalStore, cfg *config.Config, l *applogger.Logger) domsvc.FeatureExtractor {
	return features.NewExtractor(entities, signals,
		features.WithLookback(repository.Lookback{
			FundamentalsDays: cfg.Scoring.FundamentalsDays,
			MarketDays:       cfg.Scoring.MarketDays,
			NewsDays:         cfg.Scoring.NewsDays,
		}),
		features.WithExtractorLogger(l),
	)
}

// ProvideScorer creates the scoring engine, restoring the latest persisted
// model artifact when one exists.
func ProvideScorer(cfg *config.Config, artifacts repository.ArtifactStore, extractor domsvc.FeatureExtractor, l *applogger.Logger) (domsvc.Scorer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	eng, err := scoring.NewEngine(ctx, artifacts, extractor.Schema(),
		scoring.WithMinTrainingRows(cfg.Scoring.MinTrainingRows),
		scoring.WithTolerance(cfg.Scoring.ErrorTolerance),
		scoring.WithEngineLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("scoring engine: %w", err)
	}
	return eng, nil
}

// ProvideScoringCycle creates the periodic scoring orchestrator.
func ProvideScoringCycle(
	entities repository.EntityStore,
	extractor domsvc.FeatureExtractor,
	scorer domsvc.Scorer,
	scores repository.ScoreStore,
	pipe *mid.ScorePipeline,
	m repository.Metrics,
	cache cachepkg.Service,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.ScoringCycle {
	return usecase.NewScoringCycle(entities, extractor, scorer, scores, pipe, m,
		usecase.WithCycleInterval(cfg.Scoring.CycleInterval),
		usecase.WithCycleDelay(cfg.Scoring.InitialDelay),
		usecase.WithCycleWorkers(cfg.Scoring.WorkerLimit),
		usecase.WithScoreCache(cache),
		usecase.WithCycleLogger(l),
	)
}

// ProvideRetraining creates the periodic retraining orchestrator.
func ProvideRetraining(
	entities repository.EntityStore,
	extractor domsvc.FeatureExtractor,
	scorer domsvc.Scorer,
	artifacts repository.ArtifactStore,
	evals repository.EvaluationStore,
	m repository.Metrics,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.Retraining {
	return usecase.NewRetraining(entities, extractor, scorer, artifacts, evals, m,
		usecase.WithRetrainInterval(cfg.Scoring.RetrainInterval),
		usecase.WithRetrainDelay(cfg.Scoring.InitialDelay),
		usecase.WithRetrainWorkers(cfg.Scoring.WorkerLimit),
		usecase.WithRetrainLogger(l),
	)
}

// ProvideScoresQuery creates the read-side query service.
func ProvideScoresQuery(
	entities repository.EntityStore,
	signals repository.SignalStore,
	scores repository.ScoreStore,
	evals repository.EvaluationStore,
	cache cachepkg.Service,
	l *applogger.Logger,
) *usecase.ScoresQuery {
	return usecase.NewScoresQuery(entities, signals, scores, evals,
		usecase.WithQueryCache(cache),
		usecase.WithQueryLogger(l),
	)
}

// ProvideHub creates the websocket broadcast hub.
func ProvideHub(l *applogger.Logger) *stream.Hub {
	return stream.NewHub(stream.WithHubLogger(l))
}

// ProvideScoreEventsHandler registers the handler for the scores topic.
func ProvideScoreEventsHandler(cfg *config.Config, hub *stream.Hub, m repository.Metrics) *usecase.ScoreEventsHandler {
	return usecase.NewScoreEventsHandler(cfg.Kafka.ScoresTopic, hub, m)
}

// ProvideScoresHandler creates the REST API handler.
func ProvideScoresHandler(
	l *applogger.Logger,
	query *usecase.ScoresQuery,
	scorer domsvc.Scorer,
	bc icache.BytesCache,
	cfg *config.Config,
) *api.ScoresEchoHandler {
	h := api.NewScoresEchoHandler(l, query, scorer)
	h.SetCache(bc)
	h.SetCacheTTLs(cfg.API.CacheTTL.LatestScore, cfg.API.CacheTTL.Dashboard)
	return h
}

// ProvideStreamHandler creates the websocket API handler.
func ProvideStreamHandler(l *applogger.Logger, hub *stream.Hub) *api.StreamHandler {
	return api.NewStreamHandler(l, hub)
}

// ProvideApp creates the application server.
func ProvideApp(
    cfg *config.Config,
    l *applogger.Logger,
    cycle *usecase.ScoringCycle,
    retrain *usecase.Retraining,
    hub *stream.Hub,
    consumer *pkgkafka.Consumer,
    kh *usecase.ScoreEventsHandler,
    chClient *pkgch.Client,
    producer *pkgkafka.Producer,
    pub repository.Publisher,
    scores *api.ScoresEchoHandler,
    streamAPI *api.StreamHandler,
) *server.App {
    // Attach hook to consumer: example NoopHook for now; can be replaced via config
    if consumer != nil {
        consumer.WithConsumerHook(pkgkafka.NoopHook{})
    }
    attachLogCollector(cfg, l, pub)
    return server.New(cfg, l, cycle, retrain, hub, consumer, kh, chClient, producer, scores, streamAPI)
}

// attachLogCollector wires aggregated log batches to Kafka when a producer
// exists, to the Redis queue otherwise. Without either the logs stay on
// stdout only.
func attachLogCollector(cfg *config.Config, l *applogger.Logger, pub repository.Publisher) {
    if cfg.Kafka.LogsTopic == "" {
        return
    }
    if lp, ok := pub.(applogger.Publisher); ok {
        l.AddCollector(&applogger.CollectionConfig{
            TimeInterval:   30 * time.Second,
            CountThreshold: 100,
            Topic:          cfg.Kafka.LogsTopic,
            Publisher:      lp,
        })
        return
    }
    if cfg.API.Redis.Enabled {
        rdb := goredis.NewClient(&goredis.Options{
            Addr:     cfg.API.Redis.Addr,
            Password: cfg.API.Redis.Password,
            DB:       cfg.API.Redis.DB,
        })
        l.AddCollector(&applogger.CollectionConfig{
            TimeInterval:   30 * time.Second,
            CountThreshold: 100,
            Topic:          cfg.Kafka.LogsTopic,
            Publisher:      queue.NewRedisPublisher(l, rdb),
        })
    }
}
