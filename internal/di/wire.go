//go:build wireinject
// +build wireinject

package di

import (
	"CredPulse/pkg/config"
	"CredPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
    wire.Build(
        // Ambient services
        ProvideLogger,
        ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories (with business logic)
		ProvideEntityStore,
		ProvideSignalStore,
		ProvideScoreStore,
		ProvideEvaluationStore,
		ProvideArtifactStore,
		ProvideScorePublisher,

		// Caches
		ProvideCacheService,
		ProvideBytesCache,

		// Domain services
		ProvideExtractor,
		ProvideScorer,
		ProvideScorePipeline,

        // Use cases
        ProvideScoringCycle,
        ProvideRetraining,
        ProvideScoresQuery,
        ProvideScoreEventsHandler,

        // Transport
        ProvideHub,
        ProvideScoresHandler,
        ProvideStreamHandler,

        // Application server
        ProvideApp,
    )
    return &server.App{}, nil
}
