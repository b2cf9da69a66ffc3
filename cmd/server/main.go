package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openbi/dataforge/internal/audit"
	"github.com/openbi/dataforge/internal/config"
	"github.com/openbi/dataforge/internal/db"
	"github.com/openbi/dataforge/internal/ingest"
	"github.com/openbi/dataforge/internal/middleware"
	"github.com/openbi/dataforge/internal/repository"
	"github.com/openbi/dataforge/internal/schema"
	"github.com/openbi/dataforge/internal/storage"

	"github.com/rs/cors"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(".")
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := db.NewConnection(ctx, cfg.DB, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer conn.Close()

	if err := db.RunMigrations(cfg.DB, "./migrations", logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	files, err := storage.NewStore(cfg.Upload.Dir)
	if err != nil {
		logger.Fatal("failed to prepare upload storage", zap.Error(err))
	}

	modelRepo := repository.NewDataModelRepository(conn.Pool)
	relationshipRepo := repository.NewRelationshipRepository(conn.Pool)
	ingestionRepo := repository.NewIngestionRepository(conn.Pool)
	tableRepo := repository.NewDynamicTableRepository(conn.Pool)
	auditSink := audit.NewPGSink(conn.Pool, logger)

	registry := schema.NewRegistry(modelRepo, relationshipRepo, tableRepo, auditSink, logger)
	ingestService := ingest.NewService(
		modelRepo, ingestionRepo, tableRepo, conn, files, cfg.Upload, auditSink, logger,
	)

	mux := http.NewServeMux()
	schema.NewHTTPHandler(registry).Register(mux)
	ingest.NewHTTPHandler(ingestService).Register(mux)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      corsHandler.Handler(middleware.Logging(logger)(mux)),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}
