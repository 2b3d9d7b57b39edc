package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"CredPulse/internal/handler/api"
	"CredPulse/internal/service/stream"
	"CredPulse/internal/usecase"
	pkgch "CredPulse/pkg/clickhouse"
	"CredPulse/pkg/config"
	xhttp "CredPulse/pkg/http"
	pkgkafka "CredPulse/pkg/kafka"
	applogger "CredPulse/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	cycle      *usecase.ScoringCycle
	retrain    *usecase.Retraining
	hub        *stream.Hub
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	chClient   *pkgch.Client
	producer   *pkgkafka.Producer
	scores     *api.ScoresEchoHandler
	streamAPI  *api.StreamHandler
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	cycle *usecase.ScoringCycle,
	retrain *usecase.Retraining,
	hub *stream.Hub,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	scores *api.ScoresEchoHandler,
	streamAPI *api.StreamHandler,
) *App {
	return &App{
		cfg:       cfg,
		l:         l,
		cycle:     cycle,
		retrain:   retrain,
		hub:       hub,
		consumer:  consumer,
		kh:        kh,
		chClient:  chClient,
		producer:  producer,
		scores:    scores,
		streamAPI: streamAPI,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup Echo HTTP server using pkg/http and register routes via handler
	a.httpServer = xhttp.NewServer(a.scores,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if a.streamAPI != nil {
		// NewServer takes a single route registrar; the websocket routes
		// attach to the same Echo instance.
		a.streamAPI.RegisterRoutes(a.httpServer.Echo())
		go a.hub.Run()
	}

	// Start scoring and retraining loops
	a.cycle.Start(ctx)
	a.l.Info("scoring cycle started",
		applogger.Duration("interval", a.cfg.Scoring.CycleInterval),
		applogger.Int("workers", a.cfg.Scoring.WorkerLimit))

	a.retrain.Start(ctx)
	a.l.Info("retraining loop started",
		applogger.Duration("interval", a.cfg.Scoring.RetrainInterval))

	// Start consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	cancel()
	return a.shutdown(context.Background())
}

// shutdown gracefully stops all services. The run context is already
// canceled, so the cycle and retraining loops are winding down on their own.
func (a *App) shutdown(ctx context.Context) error {
	// Flush scores still sitting in the publish pipeline
	a.cycle.Shutdown()

	// Disconnect websocket clients
	if a.hub != nil {
		a.hub.Stop()
	}

	// Shutdown HTTP server
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	// Stop consumer before closing the producer it may republish through
	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.l.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	// Close infrastructure clients
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	// Flush any buffered log batches last
	a.l.RemoveCollector()
	return nil
}
