package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/oguidomingos/datagem2/pkg/api/auth"
	"github.com/oguidomingos/datagem2/pkg/api/middleware"
	"github.com/oguidomingos/datagem2/pkg/common/config"
	"github.com/oguidomingos/datagem2/pkg/common/database"
	"github.com/oguidomingos/datagem2/pkg/common/kafka"
	"github.com/oguidomingos/datagem2/pkg/common/logger"
	"github.com/oguidomingos/datagem2/pkg/common/models"
	"github.com/oguidomingos/datagem2/pkg/connection"
	"github.com/oguidomingos/datagem2/pkg/connector"
	"github.com/oguidomingos/datagem2/pkg/observability/metrics"
	"github.com/oguidomingos/datagem2/pkg/sync"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	connRepo := connection.NewRepository(db)
	if err := connRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate connection tables")
	}
	runRepo := sync.NewRepository(db)
	if err := runRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate sync run tables")
	}

	registry, err := connector.LoadRegistry(cfg.ConnectorRegistry)
	if err != nil {
		if registry == nil {
			logger.Log.WithError(err).Fatal("invalid connector registry")
		}
		logger.Log.WithError(err).Warn("Connector registry unreadable, using built-in connectors")
	}
	logger.Log.WithField("types", registry.Types()).Info("Connector registry loaded")

	if err := os.MkdirAll(cfg.WorkspaceRoot, 0o755); err != nil {
		logger.Log.WithError(err).Fatal("failed to create workspace root")
	}

	lock := sync.NewLock(database.GetRedis(cfg), cfg.SyncLockTTL)

	var publisher sync.Publisher
	if cfg.SyncEventsTopic != "" {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.SyncEventsTopic)
		defer producer.Close()
		publisher = producer
	}

	svc := sync.NewService(connRepo, runRepo, registry, lock, publisher, sync.Options{
		WorkspaceRoot: cfg.WorkspaceRoot,
		ChunkSize:     cfg.PersistChunkSize,
		RunTimeout:    cfg.ExtractorRunTimeout,
	})
	handler := sync.NewHTTPHandler(svc, runRepo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Syncs can be requested over the event bus as well as over HTTP.
	if cfg.SyncRequestsTopic != "" {
		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.SyncRequestsTopic, cfg.KafkaGroupID)
		defer consumer.Close()

		go func() {
			if err := consumer.Consume(ctx, syncRequestHandler(svc)); err != nil && ctx.Err() == nil {
				logger.Log.WithError(err).Fatal("Consumer error")
			}
		}()
	}

	oidcAuth, err := auth.NewAuthenticator(cfg.OIDCIssuer)
	if err != nil {
		logger.Log.WithError(err).Warn("OIDC authentication not configured, running without auth")
	}

	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.CORS)
	router.Use(middleware.RateLimit(50, 100)) // basic per-process limiter
	router.Use(middleware.BodyLimit(cfg.MaxRequestBody))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	if oidcAuth != nil {
		api.Use(middleware.Authenticate(oidcAuth))
	}
	handler.Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Extractor Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Extractor Service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	if err := database.ClosePostgres(); err != nil {
		logger.Log.WithError(err).Error("failed to close postgres")
	}
	if err := database.CloseRedis(); err != nil {
		logger.Log.WithError(err).Error("failed to close redis")
	}

	logger.Log.Info("Extractor Service stopped")
}

// syncRequestHandler turns sync.requested events into runs. The message is
// committed whatever the outcome: a failed run is recorded in run history
// and as a sync.failed event, not retried through the topic.
func syncRequestHandler(svc *sync.Service) kafka.EventHandler {
	return func(ctx context.Context, event models.Event) error {
		if event.Type != sync.EventSyncRequested {
			return nil
		}
		connectionID, _ := event.Data["connection_id"].(string)
		if connectionID == "" {
			logger.Log.WithField("event_id", event.ID).Warn("sync.requested event without connection_id")
			return nil
		}

		if _, err := svc.Sync(ctx, connectionID); err != nil {
			logger.Log.WithError(err).WithField("connection_id", connectionID).Error("Requested sync failed")
		}
		return nil
	}
}
